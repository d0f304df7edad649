package hal

// Mock is an in-memory Hardware for host tests.
type Mock struct {
	Spark    bool
	Valves   [MaxValves]uint8
	Readings [MaxSensors]uint16
	Configs  [MaxSensors]SensorConfig

	// ValveWrites counts SetValve calls per valve.
	ValveWrites [MaxValves]int
}

// NewMock creates a Mock with every output off.
func NewMock() *Mock {
	return &Mock{}
}

// SetValve implements Hardware.
func (m *Mock) SetValve(valve Valve, state uint8) {
	if int(valve) >= MaxValves {
		return
	}
	m.Valves[valve] = state
	m.ValveWrites[valve]++
}

// SetSparking implements Hardware.
func (m *Mock) SetSparking(on bool) { m.Spark = on }

// Sparking implements Hardware.
func (m *Mock) Sparking() bool { return m.Spark }

// RawSensorReadings implements Hardware.
func (m *Mock) RawSensorReadings() [MaxSensors]uint16 { return m.Readings }

// ValveStates implements Hardware.
func (m *Mock) ValveStates() [MaxValves]uint8 { return m.Valves }

// ConfigureSensor implements Hardware.
func (m *Mock) ConfigureSensor(sensor Sensor, config SensorConfig) {
	if int(sensor) < MaxSensors {
		m.Configs[sensor] = config
	}
}

// SensorValue returns the calibrated reading of a sensor.
func (m *Mock) SensorValue(sensor Sensor) float32 {
	return m.Configs[sensor].Remap(m.Readings[sensor])
}
