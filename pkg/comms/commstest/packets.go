// Package commstest provides packet fixtures shared by transport tests.
package commstest

import (
	"time"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/hal"
)

// Frame returns a data frame with every field populated.
func Frame() hal.ECUDataFrame {
	f := hal.ECUDataFrame{IgniterState: hal.IgniterFiring, Sparking: true}
	for n := range f.SensorStates {
		f.SensorStates[n] = uint16(0x1234 + n*0x111)
	}
	for n := range f.ValveStates {
		f.ValveStates[n] = uint8(40 * n)
	}
	return f
}

// Packets returns one instance of every packet type.
func Packets() []comms.Packet {
	return []comms.Packet{
		comms.SetValve{Valve: hal.IgniterGOxMain, State: 200},
		comms.SetSparking{Duration: 1500 * time.Millisecond},
		comms.FireIgniter{},
		comms.ConfigureSensor{
			Sensor: hal.IgniterChamberPressure,
			Config: hal.SensorConfig{PreMin: 409, PreMax: 3685, PostMin: 0, PostMax: 300},
		},
		comms.ConfigureIgniterTiming{Timing: hal.IgniterTimingConfig{Prefire: 100, Fire: 2500, Purge: 65535}},
		comms.Abort{},
		comms.SetRecording{Enabled: true},
		comms.TransferData{},
		comms.ECUTelemetry{Frame: Frame(), MaxLoopTime: 123456 * time.Nanosecond},
		comms.ControllerAborted{Address: comms.EngineController(3)},
		comms.RecordedData{Frame: Frame()},
	}
}

// Addresses returns every valid address.
func Addresses() []comms.NetworkAddress {
	addrs := []comms.NetworkAddress{comms.Broadcast, comms.MissionControl}
	for i := uint8(0); i < comms.MaxEngineControllers; i++ {
		addrs = append(addrs, comms.EngineController(i))
	}
	return addrs
}
