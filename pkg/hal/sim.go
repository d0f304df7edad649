package hal

import (
	"math"
	"time"
)

// ADC characteristics of the simulated plant (12-bit, 5V reference,
// transducers output 0.5V at zero).
const (
	ADCMax          = 4095
	SimZeroCounts   = 409
	SimTimeConstant = 50 * time.Millisecond
)

// Sim is a host-side plant model. Raw readings follow the valve and spark
// outputs with a first order lag so the ground tools see a plausible
// igniter firing. Sim is driven from the control loop only.
type Sim struct {
	Mock

	// TankCounts is the steady fuel tank reading while pressurized.
	TankCounts float64

	levels [MaxSensors]float64
	lit    bool
}

// NewSim creates a Sim at ambient conditions.
func NewSim() *Sim {
	s := &Sim{TankCounts: 2800}
	for n := range s.levels {
		s.levels[n] = SimZeroCounts
	}
	s.publish()
	return s
}

// Step advances the plant by elapsed.
func (s *Sim) Step(elapsed time.Duration) {
	fuelMain := s.Valves[IgniterFuelMain] > 0
	goxMain := s.Valves[IgniterGOxMain] > 0
	purge := s.Valves[IgniterFuelPurge] > 0

	switch {
	case !fuelMain || !goxMain:
		s.lit = false
	case s.Spark:
		s.lit = true
	}

	var targets [MaxSensors]float64
	for n := range targets {
		targets[n] = SimZeroCounts
	}
	if s.Valves[FuelPress] > 0 && s.Valves[FuelVent] == 0 {
		targets[FuelTankPressure] = s.TankCounts
	} else {
		targets[FuelTankPressure] = s.levels[FuelTankPressure]
		if s.Valves[FuelVent] > 0 {
			targets[FuelTankPressure] = SimZeroCounts
		}
	}
	if fuelMain || purge {
		targets[IgniterFuelInjectorPressure] = 1800
	}
	if goxMain {
		targets[IgniterGOxInjectorPressure] = 2200
	}
	if s.lit {
		targets[IgniterChamberPressure] = 1500
		targets[IgniterThroatTemp] = 3200
	}

	k := math.Min(1, float64(elapsed)/float64(SimTimeConstant))
	for n := range s.levels {
		s.levels[n] += (targets[n] - s.levels[n]) * k
	}
	s.publish()
}

// Lit indicates the simulated igniter is burning.
func (s *Sim) Lit() bool {
	return s.lit
}

func (s *Sim) publish() {
	for n, v := range s.levels {
		s.Readings[n] = uint16(math.Max(0, math.Min(ADCMax, math.Round(v))))
	}
	for n := SensorCount; n < MaxSensors; n++ {
		s.Readings[n] = 0
	}
}
