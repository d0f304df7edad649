package comms_test

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/comms/commstest"
	"github.com/robotalks/ecu.go/pkg/hal"
)

func encode(t *testing.T, p comms.Packet) []byte {
	var buf [comms.MaxSerializeLength]byte
	n, err := comms.Encode(p, buf[:])
	require.NoError(t, err)
	return buf[:n]
}

func seal(b ...byte) []byte {
	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], crc32.ChecksumIEEE(b))
	return append(b, sum[:]...)
}

func TestRoundTrip(t *testing.T) {
	for _, p := range commstest.Packets() {
		t.Run(comms.TagOf(p).String(), func(t *testing.T) {
			encoded := encode(t, p)
			require.Equal(t, comms.EncodedLen(p), len(encoded))
			require.True(t, len(encoded) >= 1 && len(encoded) < comms.MaxSerializeLength)
			require.Equal(t, byte(comms.TagOf(p)), encoded[0])
			decoded, err := comms.Decode(encoded)
			require.NoError(t, err)
			require.Equal(t, p, decoded)
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	encoded := encode(t, comms.SetValve{Valve: hal.IgniterGOxMain, State: 200})
	require.Equal(t, seal(0, 3, 200), encoded)

	encoded = encode(t, comms.ConfigureIgniterTiming{Timing: hal.IgniterTimingConfig{Prefire: 0x0102, Fire: 0x0304, Purge: 0x0506}})
	require.Equal(t, seal(4, 2, 1, 4, 3, 6, 5), encoded)

	encoded = encode(t, comms.ControllerAborted{Address: comms.EngineController(2)})
	require.Equal(t, seal(9, 23), encoded)
}

func TestEncodeErrors(t *testing.T) {
	testCases := []struct {
		name   string
		packet comms.Packet
		err    error
	}{
		{"nil", nil, comms.ErrUnknown},
		{"pointer", &comms.Abort{}, comms.ErrUnknown},
		{"valve out of range", comms.SetValve{Valve: hal.MaxValves}, comms.ErrBadEncoding},
		{"sensor out of range", comms.ConfigureSensor{Sensor: hal.MaxSensors}, comms.ErrBadEncoding},
		{"unknown address", comms.ControllerAborted{}, comms.ErrBadEncoding},
		{"controller out of range", comms.ControllerAborted{Address: comms.EngineController(comms.MaxEngineControllers)}, comms.ErrBadEncoding},
		{"igniter state", comms.RecordedData{Frame: hal.ECUDataFrame{IgniterState: 4}}, comms.ErrBadEncoding},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf [comms.MaxSerializeLength]byte
			_, err := comms.Encode(tc.packet, buf[:])
			require.Equal(t, tc.err, err)
		})
	}
}

func TestEncodeShortBuffer(t *testing.T) {
	for _, p := range commstest.Packets() {
		n := comms.EncodedLen(p)
		for size := 0; size < n; size++ {
			buf := make([]byte, size)
			_, err := comms.Encode(p, buf)
			require.Equalf(t, comms.ErrPacketTooLong, err, "%s into %d bytes", comms.TagOf(p), size)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, p := range commstest.Packets() {
		encoded := encode(t, p)
		for size := 0; size < len(encoded); size++ {
			_, err := comms.Decode(encoded[:size])
			require.Equalf(t, comms.ErrUnexpectedEnd, err, "%s truncated to %d", comms.TagOf(p), size)
		}
	}
}

func TestDecodeTrailing(t *testing.T) {
	for _, p := range commstest.Packets() {
		encoded := append(encode(t, p), 0)
		_, err := comms.Decode(encoded)
		require.Equal(t, comms.ErrBadEncoding, err)
	}
}

func TestDecodeCorrupted(t *testing.T) {
	for _, p := range commstest.Packets() {
		encoded := encode(t, p)
		for pos := 1; pos < len(encoded); pos++ {
			corrupted := append([]byte(nil), encoded...)
			corrupted[pos] ^= 0x40
			_, err := comms.Decode(corrupted)
			require.Equalf(t, comms.ErrCorrupted, err, "%s byte %d", comms.TagOf(p), pos)
		}
	}
}

func TestDecodeBadEncoding(t *testing.T) {
	frame := make([]byte, 32)
	badFrame := append([]byte{byte(comms.TagRecordedData)}, frame...)
	badFrame[1] = 4
	badSpark := append([]byte{byte(comms.TagRecordedData)}, frame...)
	badSpark[len(badSpark)-1] = 2

	testCases := []struct {
		name string
		data []byte
	}{
		{"unknown tag", seal(0xff)},
		{"tag past end", seal(11)},
		{"valve out of range", seal(0, hal.MaxValves, 1)},
		{"sensor out of range", seal(3, hal.MaxSensors, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)},
		{"bool", seal(6, 2)},
		{"unknown address", seal(9, 5)},
		{"igniter state", seal(badFrame...)},
		{"sparking", seal(badSpark...)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := comms.Decode(tc.data)
			require.Nil(t, p)
			require.Equal(t, comms.ErrBadEncoding, err)
		})
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	var buf [comms.MaxSerializeLength]byte
	for tag := 0; tag < 256; tag++ {
		buf[0] = byte(tag)
		for size := 0; size <= len(buf); size++ {
			require.NotPanics(t, func() { comms.Decode(buf[:size]) })
		}
	}
}
