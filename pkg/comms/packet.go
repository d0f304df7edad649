package comms

import (
	"fmt"
	"time"

	"github.com/robotalks/ecu.go/pkg/hal"
)

// Packet is a message exchanged between controllers and mission control.
// The set of packets is closed: only the types in this package implement it.
type Packet interface {
	tag() PacketTag
}

// PacketTag is the first byte of an encoded packet.
type PacketTag byte

// Packet tags.
const (
	TagSetValve PacketTag = iota
	TagSetSparking
	TagFireIgniter
	TagConfigureSensor
	TagConfigureIgniterTiming
	TagAbort
	TagSetRecording
	TagTransferData
	TagECUTelemetry
	TagControllerAborted
	TagRecordedData
	tagCount
)

var tagNames = [tagCount]string{
	"SetValve",
	"SetSparking",
	"FireIgniter",
	"ConfigureSensor",
	"ConfigureIgniterTiming",
	"Abort",
	"SetRecording",
	"TransferData",
	"ECUTelemetry",
	"ControllerAborted",
	"RecordedData",
}

// String implements fmt.Stringer.
func (t PacketTag) String() string {
	if t < tagCount {
		return tagNames[t]
	}
	return fmt.Sprintf("PacketTag(%d)", byte(t))
}

// SetValve moves a valve.
type SetValve struct {
	Valve hal.Valve
	State uint8
}

// SetSparking turns the spark on for Duration.
type SetSparking struct {
	Duration time.Duration
}

// FireIgniter starts the igniter sequence.
type FireIgniter struct{}

// ConfigureSensor replaces the calibration of a sensor.
type ConfigureSensor struct {
	Sensor hal.Sensor
	Config hal.SensorConfig
}

// ConfigureIgniterTiming replaces the igniter sequence timing.
type ConfigureIgniterTiming struct {
	Timing hal.IgniterTimingConfig
}

// Abort stops any sequence and returns to the safe state.
type Abort struct{}

// SetRecording starts or stops the data recorder.
type SetRecording struct {
	Enabled bool
}

// TransferData requests the recorded frames.
type TransferData struct{}

// ECUTelemetry is the periodic controller status.
type ECUTelemetry struct {
	Frame       hal.ECUDataFrame
	MaxLoopTime time.Duration
}

// ControllerAborted announces a controller went to the safe state.
type ControllerAborted struct {
	Address NetworkAddress
}

// RecordedData carries one recorded frame.
type RecordedData struct {
	Frame hal.ECUDataFrame
}

func (SetValve) tag() PacketTag               { return TagSetValve }
func (SetSparking) tag() PacketTag            { return TagSetSparking }
func (FireIgniter) tag() PacketTag            { return TagFireIgniter }
func (ConfigureSensor) tag() PacketTag        { return TagConfigureSensor }
func (ConfigureIgniterTiming) tag() PacketTag { return TagConfigureIgniterTiming }
func (Abort) tag() PacketTag                  { return TagAbort }
func (SetRecording) tag() PacketTag           { return TagSetRecording }
func (TransferData) tag() PacketTag           { return TagTransferData }
func (ECUTelemetry) tag() PacketTag           { return TagECUTelemetry }
func (ControllerAborted) tag() PacketTag      { return TagControllerAborted }
func (RecordedData) tag() PacketTag           { return TagRecordedData }

// TagOf returns the tag of a packet. Values that are not one of the packet
// structs (nil, pointers) get an invalid tag.
func TagOf(p Packet) PacketTag {
	switch p.(type) {
	case SetValve, SetSparking, FireIgniter, ConfigureSensor, ConfigureIgniterTiming,
		Abort, SetRecording, TransferData, ECUTelemetry, ControllerAborted, RecordedData:
		return p.tag()
	}
	return tagCount
}
