package hal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSensorConfigRemap(t *testing.T) {
	testCases := []struct {
		name   string
		config SensorConfig
		raw    uint16
		expect float32
	}{
		{"identity", SensorConfig{0, 100, 0, 100}, 42, 42},
		{"scaled", SensorConfig{0, 4095, 0, 5}, 4095, 5},
		{"offset", SensorConfig{409, 3685, 0, 300}, 409, 0},
		{"degenerate", SensorConfig{10, 10, 7, 9}, 123, 7},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.expect, tc.config.Remap(tc.raw), 1e-3)
		})
	}
}

func TestParseNames(t *testing.T) {
	for _, v := range Valves {
		parsed, err := ParseValve(v.String())
		require.NoError(t, err)
		require.Equal(t, v, parsed)
	}
	for _, s := range Sensors {
		parsed, err := ParseSensor(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	_, err := ParseValve("nope")
	require.Error(t, err)
	_, err = ParseSensor("nope")
	require.Error(t, err)
}

func TestIgniterStateString(t *testing.T) {
	require.Equal(t, "Firing", IgniterFiring.String())
	require.False(t, IgniterState(9).IsValid())
	require.Equal(t, "IgniterState(9)", IgniterState(9).String())
}

func TestSimIgnition(t *testing.T) {
	s := NewSim()
	require.Equal(t, uint16(SimZeroCounts), s.Readings[IgniterChamberPressure])

	s.SetValve(IgniterGOxMain, ValveOpen)
	s.SetSparking(true)
	s.Step(time.Millisecond)
	require.False(t, s.Lit())

	s.SetValve(IgniterFuelMain, ValveOpen)
	for i := 0; i < 500; i++ {
		s.Step(time.Millisecond)
	}
	require.True(t, s.Lit())
	require.True(t, s.Readings[IgniterChamberPressure] > 1000)

	s.SetSparking(false)
	s.Step(time.Millisecond)
	require.True(t, s.Lit(), "flame is self-sustaining once lit")

	s.SetValve(IgniterFuelMain, ValveClosed)
	for i := 0; i < 500; i++ {
		s.Step(time.Millisecond)
	}
	require.False(t, s.Lit())
	require.True(t, s.Readings[IgniterChamberPressure] < 500)
}
