package msgs

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/ecu.go/pkg/hal"
)

func TestFrameConversion(t *testing.T) {
	f := hal.ECUDataFrame{IgniterState: hal.IgniterPurge, Sparking: true}
	f.SensorStates[hal.IgniterChamberPressure] = 1500
	f.SensorStates[hal.MaxSensors-1] = 65535
	f.ValveStates[hal.IgniterFuelPurge] = 255
	m := FromFrame(f)
	require.Len(t, m.Sensors, hal.MaxSensors)
	require.Len(t, m.Valves, hal.MaxValves)
	require.Equal(t, f, m.DataFrame())

	short := &Frame{Sensors: []uint32{7}}
	require.Equal(t, uint16(7), short.DataFrame().SensorStates[0])
}

func TestDecode(t *testing.T) {
	f := hal.ECUDataFrame{IgniterState: hal.IgniterFiring}
	f.SensorStates[2] = 321
	msg := &Telemetry{Engine: 3, Frame: FromFrame(f), MaxLoopTimeUs: 1200, Calibrated: []float32{1.5, 2}}
	payload, err := proto.Marshal(msg)
	require.NoError(t, err)

	decoded, err := Decode(KindTelemetry, payload)
	require.NoError(t, err)
	telemetry, ok := decoded.(*Telemetry)
	require.True(t, ok)
	require.Equal(t, uint32(3), telemetry.Engine)
	require.Equal(t, int64(1200), telemetry.MaxLoopTimeUs)
	require.Equal(t, []float32{1.5, 2}, telemetry.Calibrated)
	require.Equal(t, f, telemetry.Frame.DataFrame())

	payload, err = proto.Marshal(&Aborted{Engine: 4})
	require.NoError(t, err)
	decoded, err = Decode(KindAborted, payload)
	require.NoError(t, err)
	require.Equal(t, uint32(4), decoded.(*Aborted).Engine)

	_, err = Decode("bogus", payload)
	require.EqualError(t, err, `unknown message kind "bogus"`)
	_, err = Decode(KindRecorded, []byte{0xff})
	require.Error(t, err)
}
