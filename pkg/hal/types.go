// Package hal defines the hardware capability consumed by the ECU and the
// fixed-size data shared with the ground station.
package hal

import (
	"fmt"
	"time"
)

// Fixed array bounds. They bound the serialized size of every packet.
const (
	MaxSensors = 12
	MaxValves  = 6
)

// IgniterState is the state of the igniter sequence.
type IgniterState uint8

// Igniter states.
const (
	IgniterIdle IgniterState = iota
	IgniterPrefire
	IgniterFiring
	IgniterPurge
)

var igniterStateNames = [...]string{"Idle", "Prefire", "Firing", "Purge"}

// IsValid indicates the state is one of the known states.
func (s IgniterState) IsValid() bool {
	return s <= IgniterPurge
}

// String implements fmt.Stringer.
func (s IgniterState) String() string {
	if s.IsValid() {
		return igniterStateNames[s]
	}
	return fmt.Sprintf("IgniterState(%d)", uint8(s))
}

// ECUDataFrame is a fixed-size snapshot of the controller.
type ECUDataFrame struct {
	IgniterState IgniterState
	SensorStates [MaxSensors]uint16
	ValveStates  [MaxValves]uint8
	Sparking     bool
}

// IgniterTimingConfig defines the igniter sequence durations in milliseconds.
type IgniterTimingConfig struct {
	Prefire uint16 `yaml:"prefire_ms" json:"prefireMs"`
	Fire    uint16 `yaml:"fire_ms" json:"fireMs"`
	Purge   uint16 `yaml:"purge_ms" json:"purgeMs"`
}

// PrefireDuration returns Prefire as time.Duration.
func (c IgniterTimingConfig) PrefireDuration() time.Duration {
	return time.Duration(c.Prefire) * time.Millisecond
}

// FireDuration returns Fire as time.Duration.
func (c IgniterTimingConfig) FireDuration() time.Duration {
	return time.Duration(c.Fire) * time.Millisecond
}

// PurgeDuration returns Purge as time.Duration.
func (c IgniterTimingConfig) PurgeDuration() time.Duration {
	return time.Duration(c.Purge) * time.Millisecond
}
