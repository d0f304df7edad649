package comms

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"time"

	"github.com/robotalks/ecu.go/pkg/hal"
)

// MaxSerializeLength bounds the encoded length of any packet.
const MaxSerializeLength = 60

const (
	crcLen   = 4
	frameLen = 1 + 2*hal.MaxSensors + hal.MaxValves + 1
)

var payloadLens = [tagCount]int{
	TagSetValve:               2,
	TagSetSparking:            8,
	TagFireIgniter:            0,
	TagConfigureSensor:        1 + 4*4,
	TagConfigureIgniterTiming: 3 * 2,
	TagAbort:                  0,
	TagSetRecording:           1,
	TagTransferData:           0,
	TagECUTelemetry:           frameLen + 8,
	TagControllerAborted:      1,
	TagRecordedData:           frameLen,
}

// EncodedLen returns the exact encoded length of p, 0 if p can't be encoded.
func EncodedLen(p Packet) int {
	tag := TagOf(p)
	if tag >= tagCount {
		return 0
	}
	return 1 + payloadLens[tag] + crcLen
}

// Encode writes p into buf and returns the number of bytes written.
// Encoding layout is tag, fixed little-endian payload, CRC-32 (IEEE) of both.
func Encode(p Packet, buf []byte) (int, error) {
	n := EncodedLen(p)
	if n == 0 {
		return 0, ErrUnknown
	}
	if len(buf) < n {
		return 0, ErrPacketTooLong
	}
	body := buf[1 : n-crcLen]
	switch v := p.(type) {
	case SetValve:
		if int(v.Valve) >= hal.MaxValves {
			return 0, ErrBadEncoding
		}
		body[0], body[1] = byte(v.Valve), v.State
	case SetSparking:
		binary.LittleEndian.PutUint64(body, uint64(v.Duration))
	case FireIgniter, Abort, TransferData:
	case ConfigureSensor:
		if int(v.Sensor) >= hal.MaxSensors {
			return 0, ErrBadEncoding
		}
		body[0] = byte(v.Sensor)
		putFloat32(body[1:], v.Config.PreMin)
		putFloat32(body[5:], v.Config.PreMax)
		putFloat32(body[9:], v.Config.PostMin)
		putFloat32(body[13:], v.Config.PostMax)
	case ConfigureIgniterTiming:
		binary.LittleEndian.PutUint16(body, v.Timing.Prefire)
		binary.LittleEndian.PutUint16(body[2:], v.Timing.Fire)
		binary.LittleEndian.PutUint16(body[4:], v.Timing.Purge)
	case SetRecording:
		body[0] = boolByte(v.Enabled)
	case ECUTelemetry:
		if !putFrame(body, &v.Frame) {
			return 0, ErrBadEncoding
		}
		binary.LittleEndian.PutUint64(body[frameLen:], uint64(v.MaxLoopTime))
	case ControllerAborted:
		if !v.Address.Valid() {
			return 0, ErrBadEncoding
		}
		body[0] = byte(v.Address.ID())
	case RecordedData:
		if !putFrame(body, &v.Frame) {
			return 0, ErrBadEncoding
		}
	default:
		return 0, ErrUnknown
	}
	buf[0] = byte(TagOf(p))
	binary.LittleEndian.PutUint32(buf[n-crcLen:], crc32.ChecksumIEEE(buf[:n-crcLen]))
	return n, nil
}

// Decode parses exactly one encoded packet from buf.
func Decode(buf []byte) (Packet, error) {
	if len(buf) == 0 {
		return nil, ErrUnexpectedEnd
	}
	tag := PacketTag(buf[0])
	if tag >= tagCount {
		return nil, ErrBadEncoding
	}
	n := 1 + payloadLens[tag] + crcLen
	if len(buf) < n {
		return nil, ErrUnexpectedEnd
	}
	if len(buf) > n {
		return nil, ErrBadEncoding
	}
	if crc32.ChecksumIEEE(buf[:n-crcLen]) != binary.LittleEndian.Uint32(buf[n-crcLen:]) {
		return nil, ErrCorrupted
	}
	body := buf[1 : n-crcLen]
	switch tag {
	case TagSetValve:
		if int(body[0]) >= hal.MaxValves {
			return nil, ErrBadEncoding
		}
		return SetValve{Valve: hal.Valve(body[0]), State: body[1]}, nil
	case TagSetSparking:
		return SetSparking{Duration: time.Duration(binary.LittleEndian.Uint64(body))}, nil
	case TagFireIgniter:
		return FireIgniter{}, nil
	case TagConfigureSensor:
		if int(body[0]) >= hal.MaxSensors {
			return nil, ErrBadEncoding
		}
		return ConfigureSensor{
			Sensor: hal.Sensor(body[0]),
			Config: hal.SensorConfig{
				PreMin:  getFloat32(body[1:]),
				PreMax:  getFloat32(body[5:]),
				PostMin: getFloat32(body[9:]),
				PostMax: getFloat32(body[13:]),
			},
		}, nil
	case TagConfigureIgniterTiming:
		return ConfigureIgniterTiming{Timing: hal.IgniterTimingConfig{
			Prefire: binary.LittleEndian.Uint16(body),
			Fire:    binary.LittleEndian.Uint16(body[2:]),
			Purge:   binary.LittleEndian.Uint16(body[4:]),
		}}, nil
	case TagAbort:
		return Abort{}, nil
	case TagSetRecording:
		enabled, ok := getBool(body[0])
		if !ok {
			return nil, ErrBadEncoding
		}
		return SetRecording{Enabled: enabled}, nil
	case TagTransferData:
		return TransferData{}, nil
	case TagECUTelemetry:
		var t ECUTelemetry
		if !getFrame(body, &t.Frame) {
			return nil, ErrBadEncoding
		}
		t.MaxLoopTime = time.Duration(binary.LittleEndian.Uint64(body[frameLen:]))
		return t, nil
	case TagControllerAborted:
		addr := AddressFromID(uint16(body[0]))
		if !addr.Valid() {
			return nil, ErrBadEncoding
		}
		return ControllerAborted{Address: addr}, nil
	case TagRecordedData:
		var r RecordedData
		if !getFrame(body, &r.Frame) {
			return nil, ErrBadEncoding
		}
		return r, nil
	}
	return nil, ErrUnknown
}

func putFrame(b []byte, f *hal.ECUDataFrame) bool {
	if !f.IgniterState.IsValid() {
		return false
	}
	b[0] = byte(f.IgniterState)
	off := 1
	for _, v := range f.SensorStates {
		binary.LittleEndian.PutUint16(b[off:], v)
		off += 2
	}
	copy(b[off:off+hal.MaxValves], f.ValveStates[:])
	off += hal.MaxValves
	b[off] = boolByte(f.Sparking)
	return true
}

func getFrame(b []byte, f *hal.ECUDataFrame) bool {
	f.IgniterState = hal.IgniterState(b[0])
	if !f.IgniterState.IsValid() {
		return false
	}
	off := 1
	for n := range f.SensorStates {
		f.SensorStates[n] = binary.LittleEndian.Uint16(b[off:])
		off += 2
	}
	copy(f.ValveStates[:], b[off:off+hal.MaxValves])
	off += hal.MaxValves
	var ok bool
	f.Sparking, ok = getBool(b[off])
	return ok
}

func putFloat32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func getFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func getBool(b byte) (bool, bool) {
	switch b {
	case 0:
		return false, true
	case 1:
		return true, true
	}
	return false, false
}
