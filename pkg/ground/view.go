package ground

import (
	"sort"
	"sync"
	"time"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/hal"
)

// DefaultMaxRecorded is the default number of recorded frames kept per engine.
const DefaultMaxRecorded = 4096

// TransceiverNode is the watchdog name fed by pulses.
const TransceiverNode = "transceiver"

// NodeName returns the watchdog name of the sender of ev.
func NodeName(ev Event) string {
	if ev.Pulse {
		return TransceiverNode
	}
	return ev.From.String()
}

// EngineStatus is the latest known state of an engine controller.
type EngineStatus struct {
	Address     string             `json:"address"`
	Index       uint8              `json:"index"`
	Igniter     string             `json:"igniter"`
	Sparking    bool               `json:"sparking"`
	Valves      map[string]uint8   `json:"valves"`
	Sensors     map[string]float32 `json:"sensors"`
	MaxLoopTime time.Duration      `json:"maxLoopTime"`
	Aborted     bool               `json:"aborted"`
	Telemetry   uint64             `json:"telemetry"`
	Recorded    int                `json:"recorded"`
	LastSeen    time.Time          `json:"lastSeen"`
}

// Snapshot is the state of the View.
type Snapshot struct {
	Engines []EngineStatus `json:"engines"`
	Pulses  uint64         `json:"pulses"`
	Nodes   []Liveness     `json:"nodes,omitempty"`
}

type engineState struct {
	frame       hal.ECUDataFrame
	maxLoopTime time.Duration
	aborted     bool
	telemetry   uint64
	recorded    []hal.ECUDataFrame
	lastSeen    time.Time
}

// View aggregates the packets received from the engine controllers.
type View struct {
	// MaxRecorded bounds the recorded frames kept per engine, oldest
	// frames are discarded first.
	MaxRecorded int

	lock    sync.RWMutex
	sensors map[hal.Sensor]hal.SensorConfig
	engines map[uint8]*engineState
	pulses  uint64
}

// NewView creates a View calibrating readings with sensors, keyed by
// sensor name. Unknown names are ignored.
func NewView(sensors map[string]hal.SensorConfig) *View {
	v := &View{
		MaxRecorded: DefaultMaxRecorded,
		sensors:     make(map[hal.Sensor]hal.SensorConfig),
		engines:     make(map[uint8]*engineState),
	}
	for name, sc := range sensors {
		if sensor, err := hal.ParseSensor(name); err == nil {
			v.sensors[sensor] = sc
		}
	}
	return v
}

// ConfigureSensor replaces the calibration of a sensor.
func (v *View) ConfigureSensor(sensor hal.Sensor, sc hal.SensorConfig) {
	v.lock.Lock()
	v.sensors[sensor] = sc
	v.lock.Unlock()
}

func (v *View) engine(index uint8) *engineState {
	e := v.engines[index]
	if e == nil {
		e = &engineState{}
		v.engines[index] = e
	}
	return e
}

// Apply updates the view with an event. It returns false for events
// not concerning the view.
func (v *View) Apply(ev Event) bool {
	v.lock.Lock()
	defer v.lock.Unlock()
	if ev.Pulse {
		v.pulses++
		return true
	}
	if ev.From.Kind != comms.KindEngineController {
		return false
	}
	switch ev.Packet.(type) {
	case comms.ECUTelemetry, comms.ControllerAborted, comms.RecordedData:
	default:
		return false
	}
	e := v.engine(ev.From.Index)
	switch p := ev.Packet.(type) {
	case comms.ECUTelemetry:
		// a new sequence clears a previous abort
		if p.Frame.IgniterState == hal.IgniterPrefire {
			e.aborted = false
		}
		e.frame, e.maxLoopTime = p.Frame, p.MaxLoopTime
		e.telemetry++
	case comms.ControllerAborted:
		e.aborted = true
	case comms.RecordedData:
		if max := v.MaxRecorded; max > 0 && len(e.recorded) >= max {
			copy(e.recorded, e.recorded[1:])
			e.recorded = e.recorded[:len(e.recorded)-1]
		}
		e.recorded = append(e.recorded, p.Frame)
	}
	e.lastSeen = ev.At
	return true
}

// Recorded returns a copy of the recorded frames of an engine.
func (v *View) Recorded(index uint8) []hal.ECUDataFrame {
	v.lock.RLock()
	defer v.lock.RUnlock()
	e := v.engines[index]
	if e == nil {
		return nil
	}
	return append([]hal.ECUDataFrame(nil), e.recorded...)
}

// ClearRecorded discards the recorded frames of an engine.
func (v *View) ClearRecorded(index uint8) {
	v.lock.Lock()
	if e := v.engines[index]; e != nil {
		e.recorded = nil
	}
	v.lock.Unlock()
}

// Engine returns the status of an engine.
func (v *View) Engine(index uint8) (EngineStatus, bool) {
	v.lock.RLock()
	defer v.lock.RUnlock()
	e := v.engines[index]
	if e == nil {
		return EngineStatus{}, false
	}
	return v.status(index, e), true
}

// Snapshot returns the status of all engines ordered by index.
func (v *View) Snapshot() Snapshot {
	v.lock.RLock()
	defer v.lock.RUnlock()
	s := Snapshot{Pulses: v.pulses, Engines: make([]EngineStatus, 0, len(v.engines))}
	for index, e := range v.engines {
		s.Engines = append(s.Engines, v.status(index, e))
	}
	sort.Slice(s.Engines, func(i, j int) bool { return s.Engines[i].Index < s.Engines[j].Index })
	return s
}

func (v *View) status(index uint8, e *engineState) EngineStatus {
	st := EngineStatus{
		Address:     comms.EngineController(index).String(),
		Index:       index,
		Igniter:     e.frame.IgniterState.String(),
		Sparking:    e.frame.Sparking,
		Valves:      make(map[string]uint8, hal.ValveCount),
		Sensors:     make(map[string]float32, hal.SensorCount),
		MaxLoopTime: e.maxLoopTime,
		Aborted:     e.aborted,
		Telemetry:   e.telemetry,
		Recorded:    len(e.recorded),
		LastSeen:    e.lastSeen,
	}
	for _, valve := range hal.Valves {
		st.Valves[valve.String()] = e.frame.ValveStates[valve]
	}
	for _, sensor := range hal.Sensors {
		raw := e.frame.SensorStates[sensor]
		if sc, ok := v.sensors[sensor]; ok {
			st.Sensors[sensor.String()] = sc.Remap(raw)
		} else {
			st.Sensors[sensor.String()] = float32(raw)
		}
	}
	return st
}
