package mqtt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/ground"
	"github.com/robotalks/ecu.go/pkg/ground/msgs"
	"github.com/robotalks/ecu.go/pkg/hal"
)

// DefaultPublishTimeout is the default Bridge.Timeout.
const DefaultPublishTimeout = time.Second

// ErrPublishTimeout indicates the broker did not acknowledge in time.
var ErrPublishTimeout = errors.New("publish timeout")

// Publisher publishes payloads on relative topics. Queue implements it.
type Publisher interface {
	Pub(topic string, payload []byte) paho.Token
}

// Topic returns the topic of a message kind from an engine.
func Topic(index uint8, kind string) string {
	return "ecu/" + strconv.Itoa(int(index)) + "/" + kind
}

// ParseTopic splits a topic built by Topic.
func ParseTopic(topic string) (uint8, string, error) {
	items := strings.Split(topic, "/")
	if len(items) != 3 || items[0] != "ecu" {
		return 0, "", fmt.Errorf("invalid topic %q", topic)
	}
	n, err := strconv.ParseUint(items[1], 10, 8)
	if err != nil || n >= comms.MaxEngineControllers {
		return 0, "", fmt.Errorf("invalid engine in topic %q", topic)
	}
	return uint8(n), items[2], nil
}

// Bridge publishes engine controller packets as protobuf messages.
// It implements ground.Handler and must be fed from one goroutine.
type Bridge struct {
	Publisher Publisher
	Timeout   time.Duration

	sensors   map[hal.Sensor]hal.SensorConfig
	seq       [comms.MaxEngineControllers]uint64
	published atomic.Uint64
	failed    atomic.Uint64
}

// NewBridge creates a Bridge calibrating telemetry with sensors.
func NewBridge(pub Publisher, sensors map[string]hal.SensorConfig) *Bridge {
	b := &Bridge{
		Publisher: pub,
		Timeout:   DefaultPublishTimeout,
		sensors:   make(map[hal.Sensor]hal.SensorConfig),
	}
	for name, sc := range sensors {
		if sensor, err := hal.ParseSensor(name); err == nil {
			b.sensors[sensor] = sc
		}
	}
	return b
}

// Published returns the number of messages published.
func (b *Bridge) Published() uint64 {
	return b.published.Load()
}

// Failed returns the number of failed publishes.
func (b *Bridge) Failed() uint64 {
	return b.failed.Load()
}

// Message converts an event, ok is false for events not bridged.
func (b *Bridge) Message(ev ground.Event) (topic string, msg proto.Message, ok bool) {
	if ev.Pulse || ev.From.Kind != comms.KindEngineController {
		return "", nil, false
	}
	index := ev.From.Index
	switch p := ev.Packet.(type) {
	case comms.ECUTelemetry:
		m := &msgs.Telemetry{
			Engine:        uint32(index),
			Frame:         msgs.FromFrame(p.Frame),
			MaxLoopTimeUs: p.MaxLoopTime.Microseconds(),
			Calibrated:    make([]float32, len(hal.Sensors)),
		}
		for n, sensor := range hal.Sensors {
			raw := p.Frame.SensorStates[sensor]
			if sc, ok := b.sensors[sensor]; ok {
				m.Calibrated[n] = sc.Remap(raw)
			} else {
				m.Calibrated[n] = float32(raw)
			}
		}
		return Topic(index, msgs.KindTelemetry), m, true
	case comms.ControllerAborted:
		return Topic(index, msgs.KindAborted), &msgs.Aborted{Engine: uint32(index)}, true
	case comms.RecordedData:
		b.seq[index]++
		return Topic(index, msgs.KindRecorded), &msgs.Recorded{
			Engine: uint32(index),
			Seq:    b.seq[index],
			Frame:  msgs.FromFrame(p.Frame),
		}, true
	}
	return "", nil, false
}

// Publish publishes the message of ev and waits for the broker.
// Events not bridged are ignored.
func (b *Bridge) Publish(ev ground.Event) error {
	topic, msg, ok := b.Message(ev)
	if !ok {
		return nil
	}
	if err := b.publish(topic, msg); err != nil {
		b.failed.Add(1)
		return err
	}
	b.published.Add(1)
	return nil
}

func (b *Bridge) publish(topic string, msg proto.Message) error {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	token := b.Publisher.Pub(topic, payload)
	if b.Timeout > 0 && !token.WaitTimeout(b.Timeout) {
		return fmt.Errorf("%s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}
	return nil
}

// HandleEvent implements ground.Handler. Only the first failure is
// logged as an error.
func (b *Bridge) HandleEvent(ev ground.Event) {
	if err := b.Publish(ev); err != nil {
		if b.Failed() == 1 {
			glog.Errorf("mqtt: publish: %v", err)
		} else {
			glog.V(2).Infof("mqtt: publish: %v", err)
		}
	}
}

// MessageHandler receives decoded bridge messages.
type MessageHandler func(index uint8, kind string, msg proto.Message)

// Subscribe subscribes all bridge topics on q.
func Subscribe(q *Queue, handler MessageHandler) *Subscription {
	return q.Sub("ecu/+/+", func(topic string, payload []byte) {
		index, kind, err := ParseTopic(topic)
		if err != nil {
			glog.V(2).Infof("mqtt: %v", err)
			return
		}
		msg, err := msgs.Decode(kind, payload)
		if err != nil {
			glog.Warningf("mqtt: %s: %v", topic, err)
			return
		}
		handler(index, kind, msg)
	})
}
