package ecu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/hal"
)

func requireOutputs(t *testing.T, hw *hal.Mock, state hal.IgniterState) {
	out := igniterStateOutputs[state]
	require.Equalf(t, out.spark, hw.Spark, "spark in %s", state)
	require.Equalf(t, out.fuelMain, hw.Valves[hal.IgniterFuelMain], "fuel main in %s", state)
	require.Equalf(t, out.goxMain, hw.Valves[hal.IgniterGOxMain], "gox main in %s", state)
	require.Equalf(t, out.fuelPurge, hw.Valves[hal.IgniterFuelPurge], "fuel purge in %s", state)
}

func ticks(ig *Igniter, hw hal.Hardware, n int) {
	for i := 0; i < n; i++ {
		ig.Update(time.Millisecond, hw)
	}
}

func TestIgniterOutputTable(t *testing.T) {
	require.Equal(t, igniterOutputs{false, 0, 0, 0}, igniterStateOutputs[hal.IgniterIdle])
	require.Equal(t, igniterOutputs{true, 0, 255, 0}, igniterStateOutputs[hal.IgniterPrefire])
	require.Equal(t, igniterOutputs{true, 255, 255, 0}, igniterStateOutputs[hal.IgniterFiring])
	require.Equal(t, igniterOutputs{false, 0, 255, 255}, igniterStateOutputs[hal.IgniterPurge])
}

func TestIgniterTimeline(t *testing.T) {
	hw := hal.NewMock()
	ig := NewIgniter()
	require.Equal(t, DefaultIgniterTiming, ig.Timing())

	ig.OnPacket(comms.FireIgniter{}, hw)
	require.Equal(t, hal.IgniterPrefire, ig.State())
	requireOutputs(t, hw, hal.IgniterPrefire)

	steps := []struct {
		duration int
		next     hal.IgniterState
	}{
		{250, hal.IgniterFiring},
		{1000, hal.IgniterPurge},
		{2000, hal.IgniterIdle},
	}
	current := hal.IgniterPrefire
	for _, step := range steps {
		ticks(ig, hw, step.duration-1)
		require.Equal(t, current, ig.State())
		requireOutputs(t, hw, current)
		ticks(ig, hw, 1)
		require.Equal(t, step.next, ig.State())
		require.Equal(t, time.Duration(0), ig.InState())
		requireOutputs(t, hw, step.next)
		current = step.next
	}
}

func TestIgniterIdleIsImmune(t *testing.T) {
	hw := hal.NewMock()
	ig := NewIgniter()
	ticks(ig, hw, 100)
	require.Equal(t, hal.IgniterIdle, ig.State())
	require.Equal(t, [hal.MaxValves]int{}, hw.ValveWrites)

	ig.OnPacket(comms.SetValve{Valve: hal.IgniterFuelMain, State: 255}, hw)
	ig.OnPacket(comms.TransferData{}, hw)
	ticks(ig, hw, 100)
	require.Equal(t, hal.IgniterIdle, ig.State())
	require.Equal(t, [hal.MaxValves]int{}, hw.ValveWrites)
}

func TestIgniterFireIgnoredWhenBusy(t *testing.T) {
	hw := hal.NewMock()
	ig := NewIgniter()
	ig.OnPacket(comms.FireIgniter{}, hw)
	ticks(ig, hw, 250)
	require.Equal(t, hal.IgniterFiring, ig.State())
	ticks(ig, hw, 10)
	ig.OnPacket(comms.FireIgniter{}, hw)
	require.Equal(t, hal.IgniterFiring, ig.State())
	require.Equal(t, 10*time.Millisecond, ig.InState())
}

func TestIgniterAbort(t *testing.T) {
	reach := map[hal.IgniterState]int{
		hal.IgniterIdle:    -1,
		hal.IgniterPrefire: 0,
		hal.IgniterFiring:  250,
		hal.IgniterPurge:   1250,
	}
	for state, n := range reach {
		t.Run(state.String(), func(t *testing.T) {
			hw := hal.NewMock()
			ig := NewIgniter()
			if n >= 0 {
				ig.OnPacket(comms.FireIgniter{}, hw)
				ticks(ig, hw, n)
			}
			require.Equal(t, state, ig.State())
			writes := hw.ValveWrites[hal.IgniterGOxMain]
			ig.Abort(hw)
			require.Equal(t, hal.IgniterIdle, ig.State())
			requireOutputs(t, hw, hal.IgniterIdle)
			require.Equal(t, writes+1, hw.ValveWrites[hal.IgniterGOxMain])

			ig.Abort(hw)
			require.Equal(t, hal.IgniterIdle, ig.State())
			requireOutputs(t, hw, hal.IgniterIdle)
		})
	}
}

func TestIgniterTimingLive(t *testing.T) {
	hw := hal.NewMock()
	ig := NewIgniter()
	ig.OnPacket(comms.FireIgniter{}, hw)
	ticks(ig, hw, 100)

	timing := hal.IgniterTimingConfig{Prefire: 50, Fire: 20, Purge: 30}
	ig.OnPacket(comms.ConfigureIgniterTiming{Timing: timing}, hw)
	require.Equal(t, timing, ig.Timing())
	require.Equal(t, hal.IgniterPrefire, ig.State())

	ticks(ig, hw, 1)
	require.Equal(t, hal.IgniterFiring, ig.State())
	ticks(ig, hw, 20)
	require.Equal(t, hal.IgniterPurge, ig.State())
	ticks(ig, hw, 29)
	require.Equal(t, hal.IgniterPurge, ig.State())
	ticks(ig, hw, 1)
	require.Equal(t, hal.IgniterIdle, ig.State())
}

func TestIgniterZeroDurations(t *testing.T) {
	hw := hal.NewMock()
	ig := NewIgniter()
	ig.OnPacket(comms.ConfigureIgniterTiming{}, hw)
	ig.OnPacket(comms.FireIgniter{}, hw)
	// one transition per tick
	ticks(ig, hw, 1)
	require.Equal(t, hal.IgniterFiring, ig.State())
	ticks(ig, hw, 1)
	require.Equal(t, hal.IgniterPurge, ig.State())
	ticks(ig, hw, 1)
	require.Equal(t, hal.IgniterIdle, ig.State())
}
