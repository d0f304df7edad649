// Package ground implements mission control: the UDP station talking to
// the engine controllers, liveness tracking and the status view.
package ground

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/comms/ethernet"
	"github.com/robotalks/ecu.go/pkg/framework"
)

// Station defaults.
const (
	DefaultAnnounceInterval = 500 * time.Millisecond
	EventQueueSize          = 256
)

// Event is a datagram received by the station.
type Event struct {
	Packet comms.Packet
	From   comms.NetworkAddress
	// Pulse is set for heartbeat datagrams, which carry no packet.
	Pulse bool
	// Peer is the socket address of the sender.
	Peer net.Addr
	At   time.Time
}

// Station is the mission control end of the UDP link.
type Station struct {
	// AnnounceInterval is the period of the pulses announcing the station
	// to the transceiver, 0 disables.
	AnnounceInterval time.Duration

	conn    net.PacketConn
	remote  net.Addr
	events  chan Event
	dropped atomic.Uint64
	invalid atomic.Uint64
}

// NewStation creates a Station on conn sending to remote.
func NewStation(conn net.PacketConn, remote net.Addr) *Station {
	return &Station{
		AnnounceInterval: DefaultAnnounceInterval,
		conn:             conn,
		remote:           remote,
		events:           make(chan Event, EventQueueSize),
	}
}

// Dial binds listen and creates a Station sending to remote.
func Dial(listen, remote string) (*Station, error) {
	raddr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", remote, err)
	}
	conn, err := net.ListenPacket("udp", listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", listen, err)
	}
	return NewStation(conn, raddr), nil
}

// MustDial is Dial failing on error.
func MustDial(listen, remote string) *Station {
	s, err := Dial(listen, remote)
	if err != nil {
		glog.Fatalf("station: %v", err)
	}
	return s
}

// LocalAddr returns the bound address.
func (s *Station) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Events returns the channel of received datagrams.
func (s *Station) Events() <-chan Event {
	return s.events
}

// Dropped returns the number of events dropped because nobody was reading.
func (s *Station) Dropped() uint64 {
	return s.dropped.Load()
}

// Invalid returns the number of undecodable datagrams.
func (s *Station) Invalid() uint64 {
	return s.invalid.Load()
}

// Send transmits p from mission control to an ECU.
func (s *Station) Send(p comms.Packet, to comms.NetworkAddress) error {
	var buf [ethernet.BufferSize]byte
	n, err := ethernet.EncodeDatagram(p, comms.MissionControl, to, buf[:])
	if err != nil {
		return comms.SerializeFailure(err)
	}
	glog.V(4).Infof("station: %s to %s", comms.TagOf(p), to)
	return s.write(buf[:n])
}

// Announce sends a pulse so the transceiver learns the station address.
func (s *Station) Announce() error {
	var buf [ethernet.HeaderLen]byte
	return s.write(buf[:ethernet.EncodePulse(buf[:])])
}

func (s *Station) write(data []byte) error {
	if _, err := s.conn.WriteTo(data, s.remote); err != nil {
		return comms.TransportFailure(fmt.Errorf("%w: %v", comms.ErrUnknownTransport, err))
	}
	return nil
}

// Run implements framework.Runnable. It announces the station and reads
// datagrams until ctx is done.
func (s *Station) Run(ctx context.Context) error {
	if s.AnnounceInterval > 0 {
		go s.announce(ctx)
	}
	return framework.RunWithContextCloser(ctx, s.conn, func() error {
		var buf [ethernet.BufferSize + 1]byte
		for {
			n, addr, err := s.conn.ReadFrom(buf[:])
			if err != nil {
				return err
			}
			if ev, ok := s.parse(buf[:n], addr); ok {
				s.emit(ev)
			}
		}
	})
}

func (s *Station) announce(ctx context.Context) {
	ticker := time.NewTicker(s.AnnounceInterval)
	defer ticker.Stop()
	for {
		if err := s.Announce(); err != nil {
			glog.V(2).Infof("station: announce: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Station) parse(data []byte, addr net.Addr) (Event, bool) {
	ev := Event{Peer: addr, At: time.Now()}
	if len(data) > ethernet.BufferSize {
		s.invalid.Add(1)
		return ev, false
	}
	if ethernet.IsPulse(data) {
		ev.Pulse = true
		return ev, true
	}
	p, src, dst, err := ethernet.DecodeDatagram(data)
	if err != nil {
		glog.V(2).Infof("station: drop datagram from %s: %v", addr, err)
		s.invalid.Add(1)
		return ev, false
	}
	if dst != comms.MissionControl && dst != comms.Broadcast {
		glog.V(4).Infof("station: drop datagram for %s", dst)
		return ev, false
	}
	ev.Packet, ev.From = p, src
	return ev, true
}

func (s *Station) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		if s.dropped.Add(1) == 1 {
			glog.Warning("station: event queue full, dropping")
		}
	}
}
