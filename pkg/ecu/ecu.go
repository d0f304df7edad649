// Package ecu implements the engine controller: the igniter sequence,
// the data recorder and the control loop tying them to the hardware and
// the transport.
package ecu

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/hal"
	"github.com/robotalks/ecu.go/pkg/spsc"
)

// ECU is the engine controller. All methods must be called from the
// control loop.
type ECU struct {
	cfg      Config
	addr     comms.NetworkAddress
	hw       hal.Hardware
	t        comms.Transport
	igniter  *Igniter
	recorder *Recorder

	telemetryAcc time.Duration
	maxLoopTime  time.Duration
	sparkLeft    time.Duration
	sparkArmed   bool
	txErrors     uint64
}

// New creates an ECU. Hardware is put into the safe state first.
func New(cfg Config, hw hal.Hardware, t comms.Transport) (*ECU, error) {
	for _, v := range hal.Valves {
		hw.SetValve(v, hal.ValveClosed)
	}
	hw.SetSparking(false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	recorder, err := NewRecorder(spsc.New[hal.ECUDataFrame](cfg.StorageSize), cfg.RecordPeriod, cfg.TransferPeriod)
	if err != nil {
		return nil, err
	}
	e := &ECU{
		cfg:      cfg,
		addr:     cfg.Address(),
		hw:       hw,
		t:        t,
		igniter:  NewIgniter(),
		recorder: recorder,
	}
	e.igniter.timing = cfg.IgniterTiming
	e.igniter.Abort(hw)
	for name, sc := range cfg.Sensors {
		sensor, _ := hal.ParseSensor(name)
		hw.ConfigureSensor(sensor, sc)
	}
	glog.Infof("ecu: %s ready, telemetry every %s", e.addr, cfg.TelemetryPeriod)
	return e, nil
}

// Address returns the network address of the ECU.
func (e *ECU) Address() comms.NetworkAddress {
	return e.addr
}

// Igniter returns the igniter.
func (e *ECU) Igniter() *Igniter {
	return e.igniter
}

// Recorder returns the recorder.
func (e *ECU) Recorder() *Recorder {
	return e.recorder
}

// TxErrors returns the number of failed transmissions.
func (e *ECU) TxErrors() uint64 {
	return e.txErrors
}

// SparkTimer returns the remaining test spark time, 0 when not armed.
func (e *ECU) SparkTimer() time.Duration {
	if !e.sparkArmed {
		return 0
	}
	return e.sparkLeft
}

// Snapshot builds a data frame from the live state.
func (e *ECU) Snapshot() hal.ECUDataFrame {
	return hal.ECUDataFrame{
		IgniterState: e.igniter.State(),
		SensorStates: e.hw.RawSensorReadings(),
		ValveStates:  e.hw.ValveStates(),
		Sparking:     e.hw.Sparking(),
	}
}

// Update runs one control loop iteration. It implements framework.Tickable.
func (e *ECU) Update(elapsed time.Duration) {
	e.telemetryAcc += elapsed
	if elapsed > e.maxLoopTime {
		e.maxLoopTime = elapsed
	}
	for n := 0; e.telemetryAcc >= e.cfg.TelemetryPeriod; n++ {
		if n >= MaxCatchUp {
			e.telemetryAcc %= e.cfg.TelemetryPeriod
			break
		}
		e.telemetryAcc -= e.cfg.TelemetryPeriod
		e.transmit(comms.ECUTelemetry{Frame: e.Snapshot(), MaxLoopTime: e.maxLoopTime}, comms.MissionControl)
		e.maxLoopTime = 0
	}

	if e.sparkArmed {
		e.sparkLeft -= elapsed
		if e.sparkLeft <= 0 {
			e.sparkArmed, e.sparkLeft = false, 0
			if e.igniter.State() == hal.IgniterIdle {
				e.hw.SetSparking(false)
			}
		}
	}

	for {
		p, from, ok := e.t.Receive()
		if !ok {
			break
		}
		e.OnPacket(p, from)
	}

	e.igniter.Update(elapsed, e.hw)
	e.recorder.Update(elapsed, e.Snapshot, e.t)
}

// OnPacket dispatches an inbound packet.
func (e *ECU) OnPacket(p comms.Packet, from comms.NetworkAddress) {
	glog.V(4).Infof("ecu: %s from %s", comms.TagOf(p), from)
	switch v := p.(type) {
	case comms.SetValve:
		e.hw.SetValve(v.Valve, v.State)
	case comms.ConfigureSensor:
		e.hw.ConfigureSensor(v.Sensor, v.Config)
	case comms.SetSparking:
		e.sparkLeft, e.sparkArmed = v.Duration, true
		e.hw.SetSparking(true)
	case comms.Abort:
		e.Abort()
		return
	case comms.SetRecording:
		e.recorder.SetRecording(v.Enabled)
	case comms.TransferData:
		e.recorder.TransferData()
	}
	e.igniter.OnPacket(p, e.hw)
}

// Abort puts the igniter in Idle, disarms the test spark and announces
// the abort to every node.
func (e *ECU) Abort() {
	glog.Warningf("ecu: %s abort", e.addr)
	e.sparkArmed, e.sparkLeft = false, 0
	e.igniter.Abort(e.hw)
	e.transmit(comms.ControllerAborted{Address: e.addr}, comms.Broadcast)
}

func (e *ECU) transmit(p comms.Packet, to comms.NetworkAddress) {
	if err := e.t.Transmit(p, to); err != nil {
		e.txErrors++
		if comms.IsTransient(err) {
			glog.V(2).Infof("ecu: %s to %s: %v", comms.TagOf(p), to, err)
		} else {
			glog.Errorf("ecu: %s to %s: %v", comms.TagOf(p), to, err)
		}
	}
}
