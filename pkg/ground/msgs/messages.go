// Package msgs defines the protobuf messages published by the telemetry
// bridge.
package msgs

import (
	"fmt"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/ecu.go/pkg/hal"
)

// Message kinds, also the last topic level.
const (
	KindTelemetry = "telemetry"
	KindAborted   = "aborted"
	KindRecorded  = "recorded"
)

// Frame is hal.ECUDataFrame on the wire.
type Frame struct {
	IgniterState uint32   `protobuf:"varint,1,opt,name=igniter_state,proto3" json:"igniter_state,omitempty"`
	Sensors      []uint32 `protobuf:"varint,2,rep,packed,name=sensors,proto3" json:"sensors,omitempty"`
	Valves       []uint32 `protobuf:"varint,3,rep,packed,name=valves,proto3" json:"valves,omitempty"`
	Sparking     bool     `protobuf:"varint,4,opt,name=sparking,proto3" json:"sparking,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Frame) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Frame) Reset() { *m = Frame{} }

// String implements proto.Message.
func (m *Frame) String() string { return proto.CompactTextString(m) }

// FromFrame converts a data frame.
func FromFrame(f hal.ECUDataFrame) *Frame {
	m := &Frame{
		IgniterState: uint32(f.IgniterState),
		Sensors:      make([]uint32, len(f.SensorStates)),
		Valves:       make([]uint32, len(f.ValveStates)),
		Sparking:     f.Sparking,
	}
	for n, v := range f.SensorStates {
		m.Sensors[n] = uint32(v)
	}
	for n, v := range f.ValveStates {
		m.Valves[n] = uint32(v)
	}
	return m
}

// DataFrame converts back to a data frame. Extra readings are ignored.
func (m *Frame) DataFrame() hal.ECUDataFrame {
	f := hal.ECUDataFrame{IgniterState: hal.IgniterState(m.IgniterState), Sparking: m.Sparking}
	for n := 0; n < len(m.Sensors) && n < len(f.SensorStates); n++ {
		f.SensorStates[n] = uint16(m.Sensors[n])
	}
	for n := 0; n < len(m.Valves) && n < len(f.ValveStates); n++ {
		f.ValveStates[n] = uint8(m.Valves[n])
	}
	return f
}

// Telemetry is a periodic engine status.
type Telemetry struct {
	Engine        uint32    `protobuf:"varint,1,opt,name=engine,proto3" json:"engine,omitempty"`
	Frame         *Frame    `protobuf:"bytes,2,opt,name=frame,proto3" json:"frame,omitempty"`
	MaxLoopTimeUs int64     `protobuf:"varint,3,opt,name=max_loop_time_us,proto3" json:"max_loop_time_us,omitempty"`
	Calibrated    []float32 `protobuf:"fixed32,4,rep,packed,name=calibrated,proto3" json:"calibrated,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Telemetry) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Telemetry) Reset() { *m = Telemetry{} }

// String implements proto.Message.
func (m *Telemetry) String() string { return proto.CompactTextString(m) }

// Aborted reports an engine controller abort.
type Aborted struct {
	Engine uint32 `protobuf:"varint,1,opt,name=engine,proto3" json:"engine,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Aborted) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Aborted) Reset() { *m = Aborted{} }

// String implements proto.Message.
func (m *Aborted) String() string { return proto.CompactTextString(m) }

// Recorded is one frame transferred from the recorder.
type Recorded struct {
	Engine uint32 `protobuf:"varint,1,opt,name=engine,proto3" json:"engine,omitempty"`
	Seq    uint64 `protobuf:"varint,2,opt,name=seq,proto3" json:"seq,omitempty"`
	Frame  *Frame `protobuf:"bytes,3,opt,name=frame,proto3" json:"frame,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Recorded) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Recorded) Reset() { *m = Recorded{} }

// String implements proto.Message.
func (m *Recorded) String() string { return proto.CompactTextString(m) }

// ErrUnknownKind indicates an unknown message kind.
type ErrUnknownKind struct {
	Kind string
}

// Error implements error.
func (e *ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown message kind %q", e.Kind)
}

// New creates an empty message of kind.
func New(kind string) (proto.Message, error) {
	switch kind {
	case KindTelemetry:
		return &Telemetry{}, nil
	case KindAborted:
		return &Aborted{}, nil
	case KindRecorded:
		return &Recorded{}, nil
	}
	return nil, &ErrUnknownKind{Kind: kind}
}

// Decode unmarshals payload as a message of kind.
func Decode(kind string, payload []byte) (proto.Message, error) {
	msg, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return msg, nil
}
