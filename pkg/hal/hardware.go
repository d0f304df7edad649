package hal

import (
	"fmt"
	"strings"
)

// Valve identifies a valve output.
type Valve uint8

// Valves.
const (
	FuelPress Valve = iota
	FuelVent
	IgniterFuelMain
	IgniterGOxMain
	IgniterFuelPurge

	// ValveCount is the number of valves wired on the controller.
	ValveCount = 5
)

// Valve positions.
const (
	ValveClosed uint8 = 0
	ValveOpen   uint8 = 255
)

// Valves lists all valves in id order.
var Valves = [ValveCount]Valve{FuelPress, FuelVent, IgniterFuelMain, IgniterGOxMain, IgniterFuelPurge}

var valveNames = [ValveCount]string{"fuel_press", "fuel_vent", "fuel_main", "gox_main", "fuel_purge"}

// IsValid indicates the valve is wired.
func (v Valve) IsValid() bool {
	return v < ValveCount
}

// String implements fmt.Stringer.
func (v Valve) String() string {
	if v.IsValid() {
		return valveNames[v]
	}
	return fmt.Sprintf("valve(%d)", uint8(v))
}

// ParseValve finds a valve by name.
func ParseValve(name string) (Valve, error) {
	for n, s := range valveNames {
		if strings.EqualFold(s, name) {
			return Valve(n), nil
		}
	}
	return 0, fmt.Errorf("unknown valve %q", name)
}

// Sensor identifies an analog input.
type Sensor uint8

// Sensors.
const (
	IgniterThroatTemp Sensor = iota
	IgniterFuelInjectorPressure
	IgniterGOxInjectorPressure
	IgniterChamberPressure
	FuelTankPressure

	// SensorCount is the number of sensors wired on the controller.
	SensorCount = 5
)

// Sensors lists all sensors in id order.
var Sensors = [SensorCount]Sensor{
	IgniterThroatTemp,
	IgniterFuelInjectorPressure,
	IgniterGOxInjectorPressure,
	IgniterChamberPressure,
	FuelTankPressure,
}

var sensorNames = [SensorCount]string{"throat_temp", "fuel_inj", "gox_inj", "chamber", "fuel_tank"}

// IsValid indicates the sensor is wired.
func (s Sensor) IsValid() bool {
	return s < SensorCount
}

// String implements fmt.Stringer.
func (s Sensor) String() string {
	if s.IsValid() {
		return sensorNames[s]
	}
	return fmt.Sprintf("sensor(%d)", uint8(s))
}

// ParseSensor finds a sensor by name.
func ParseSensor(name string) (Sensor, error) {
	for n, s := range sensorNames {
		if strings.EqualFold(s, name) {
			return Sensor(n), nil
		}
	}
	return 0, fmt.Errorf("unknown sensor %q", name)
}

// SensorConfig maps raw ADC counts linearly from [PreMin, PreMax]
// to [PostMin, PostMax].
type SensorConfig struct {
	PreMin  float32 `yaml:"pre_min" json:"preMin"`
	PreMax  float32 `yaml:"pre_max" json:"preMax"`
	PostMin float32 `yaml:"post_min" json:"postMin"`
	PostMax float32 `yaml:"post_max" json:"postMax"`
}

// Remap converts a raw reading. A degenerate input range yields PostMin.
func (c SensorConfig) Remap(raw uint16) float32 {
	span := c.PreMax - c.PreMin
	if span == 0 {
		return c.PostMin
	}
	return (float32(raw)-c.PreMin)/span*(c.PostMax-c.PostMin) + c.PostMin
}

// Hardware is the capability the ECU drives.
// Implementations must not block.
type Hardware interface {
	// SetValve moves a valve. 0 is closed, 255 fully open; solenoid valves
	// treat any nonzero value as open.
	SetValve(valve Valve, state uint8)
	SetSparking(on bool)
	Sparking() bool
	RawSensorReadings() [MaxSensors]uint16
	ValveStates() [MaxValves]uint8
	ConfigureSensor(sensor Sensor, config SensorConfig)
}
