package ecu

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/hal"
)

// DefaultIgniterTiming is the igniter timing until configured.
var DefaultIgniterTiming = hal.IgniterTimingConfig{
	Prefire: 250,
	Fire:    1000,
	Purge:   2000,
}

type igniterOutputs struct {
	spark     bool
	fuelMain  uint8
	goxMain   uint8
	fuelPurge uint8
}

var igniterStateOutputs = [...]igniterOutputs{
	hal.IgniterIdle:    {spark: false, fuelMain: hal.ValveClosed, goxMain: hal.ValveClosed, fuelPurge: hal.ValveClosed},
	hal.IgniterPrefire: {spark: true, fuelMain: hal.ValveClosed, goxMain: hal.ValveOpen, fuelPurge: hal.ValveClosed},
	hal.IgniterFiring:  {spark: true, fuelMain: hal.ValveOpen, goxMain: hal.ValveOpen, fuelPurge: hal.ValveClosed},
	hal.IgniterPurge:   {spark: false, fuelMain: hal.ValveClosed, goxMain: hal.ValveOpen, fuelPurge: hal.ValveOpen},
}

// Igniter implements the igniter sequence Idle -> Prefire -> Firing -> Purge -> Idle.
type Igniter struct {
	state   hal.IgniterState
	elapsed time.Duration
	timing  hal.IgniterTimingConfig
}

// NewIgniter creates an Igniter in Idle with default timing.
// Outputs are not touched until the first transition.
func NewIgniter() *Igniter {
	return &Igniter{timing: DefaultIgniterTiming}
}

// State returns the current state.
func (ig *Igniter) State() hal.IgniterState {
	return ig.state
}

// Timing returns the live timing config.
func (ig *Igniter) Timing() hal.IgniterTimingConfig {
	return ig.timing
}

// InState returns the time spent in the current state.
func (ig *Igniter) InState() time.Duration {
	return ig.elapsed
}

// Update advances the sequence by elapsed. At most one transition
// happens per call.
func (ig *Igniter) Update(elapsed time.Duration, hw hal.Hardware) {
	if ig.state == hal.IgniterIdle {
		return
	}
	ig.elapsed += elapsed
	switch ig.state {
	case hal.IgniterPrefire:
		if ig.elapsed >= ig.timing.PrefireDuration() {
			ig.transition(hal.IgniterFiring, hw)
		}
	case hal.IgniterFiring:
		if ig.elapsed >= ig.timing.FireDuration() {
			ig.transition(hal.IgniterPurge, hw)
		}
	case hal.IgniterPurge:
		if ig.elapsed >= ig.timing.PurgeDuration() {
			ig.transition(hal.IgniterIdle, hw)
		}
	}
}

// OnPacket handles FireIgniter and ConfigureIgniterTiming, other packets
// are ignored. FireIgniter outside Idle is a no-op.
func (ig *Igniter) OnPacket(p comms.Packet, hw hal.Hardware) {
	switch v := p.(type) {
	case comms.FireIgniter:
		if ig.state == hal.IgniterIdle {
			ig.transition(hal.IgniterPrefire, hw)
		} else {
			glog.V(2).Infof("igniter: ignore fire in %s", ig.state)
		}
	case comms.ConfigureIgniterTiming:
		ig.timing = v.Timing
		glog.Infof("igniter: timing prefire=%dms fire=%dms purge=%dms", v.Timing.Prefire, v.Timing.Fire, v.Timing.Purge)
	}
}

// Abort forces Idle from any state, re-applying the Idle outputs.
func (ig *Igniter) Abort(hw hal.Hardware) {
	ig.transition(hal.IgniterIdle, hw)
}

func (ig *Igniter) transition(state hal.IgniterState, hw hal.Hardware) {
	if state != ig.state {
		glog.V(2).Infof("igniter: %s -> %s after %s", ig.state, state, ig.elapsed)
	}
	ig.state = state
	ig.elapsed = 0
	out := igniterStateOutputs[state]
	hw.SetSparking(out.spark)
	hw.SetValve(hal.IgniterFuelMain, out.fuelMain)
	hw.SetValve(hal.IgniterGOxMain, out.goxMain)
	hw.SetValve(hal.IgniterFuelPurge, out.fuelPurge)
}
