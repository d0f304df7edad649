// Package transceiver bridges a CAN-FD bus and the mission control UDP
// link. Frames for mission control become datagrams, datagrams become
// frames, and a heartbeat pulse keeps mission control informed the
// bridge is up.
package transceiver

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/comms/canfd"
	"github.com/robotalks/ecu.go/pkg/comms/ethernet"
	"github.com/robotalks/ecu.go/pkg/framework"
)

// DefaultPulseInterval is the default heartbeat period.
const DefaultPulseInterval = 100 * time.Millisecond

// Errors of datagram conversion.
var (
	ErrEmptyDatagram   = errors.New("empty datagram")
	ErrInvalidDatagram = errors.New("invalid datagram")
	ErrInvalidFrame    = errors.New("invalid frame")
)

type missionAddr struct {
	addr net.Addr
}

// Stats counts the traffic through the bridge.
type Stats struct {
	ToUDP    uint64
	ToCAN    uint64
	Pulses   uint64
	Dropped  uint64
	TxErrors uint64
}

// Transceiver is the CAN-FD/UDP bridge.
type Transceiver struct {
	// PulseInterval is the heartbeat period, 0 disables.
	PulseInterval time.Duration

	conn    net.PacketConn
	bus     canfd.Bus
	mission atomic.Pointer[missionAddr]

	toUDP, toCAN, pulses, dropped, txErrors atomic.Uint64
}

// New creates a Transceiver on conn. mission may be nil until learned
// from a pulse.
func New(conn net.PacketConn, mission net.Addr) *Transceiver {
	t := &Transceiver{PulseInterval: DefaultPulseInterval, conn: conn}
	if mission != nil {
		t.SetMission(mission)
	}
	return t
}

// Attach connects the transceiver to a virtual bus, receiving frames for
// mission control and broadcasts.
func (t *Transceiver) Attach(bus *canfd.VirtualBus) *canfd.Port {
	port := bus.Attach(canfd.Filter{Host: comms.MissionControl}.Accept, t.OnFrame)
	t.bus = port
	return port
}

// SetBus sets the bus frames are transmitted on.
func (t *Transceiver) SetBus(bus canfd.Bus) {
	t.bus = bus
}

// SetMission sets the UDP address of mission control.
func (t *Transceiver) SetMission(addr net.Addr) {
	t.mission.Store(&missionAddr{addr: addr})
}

// Mission returns the UDP address of mission control.
func (t *Transceiver) Mission() net.Addr {
	if m := t.mission.Load(); m != nil {
		return m.addr
	}
	return nil
}

// LocalAddr returns the bound UDP address.
func (t *Transceiver) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Stats returns the counters.
func (t *Transceiver) Stats() Stats {
	return Stats{
		ToUDP:    t.toUDP.Load(),
		ToCAN:    t.toCAN.Load(),
		Pulses:   t.pulses.Load(),
		Dropped:  t.dropped.Load(),
		TxErrors: t.txErrors.Load(),
	}
}

// FrameToDatagram converts a frame into a datagram in buf. The payload
// length comes from the metadata, clamped to 1..MaxSerializeLength and to
// the frame data.
func FrameToDatagram(f canfd.Frame, buf []byte) (int, error) {
	data := f.Bytes()
	if len(data) <= canfd.MetadataLen {
		return 0, ErrInvalidFrame
	}
	src, dst, _ := canfd.ParseID(f.ID)
	if !src.Valid() || !dst.Valid() {
		return 0, ErrInvalidFrame
	}
	n := canfd.Metadata(binary.LittleEndian.Uint32(data)).TrueLength()
	if n < 1 {
		n = 1
	}
	if n > comms.MaxSerializeLength {
		n = comms.MaxSerializeLength
	}
	if n > len(data)-canfd.MetadataLen {
		n = len(data) - canfd.MetadataLen
	}
	if len(buf) < ethernet.HeaderLen+n {
		return 0, comms.ErrPacketTooLong
	}
	ethernet.Header{Src: src.ID(), Dst: dst.ID(), Length: n}.Put(buf)
	copy(buf[ethernet.HeaderLen:], data[canfd.MetadataLen:canfd.MetadataLen+n])
	return ethernet.HeaderLen + n, nil
}

// DatagramToFrame converts a datagram that is not a pulse into a frame.
func DatagramToFrame(data []byte) (canfd.Frame, error) {
	var f canfd.Frame
	h, ok := ethernet.ParseHeader(data)
	if !ok {
		return f, ErrInvalidDatagram
	}
	if h.Length == 0 {
		return f, ErrEmptyDatagram
	}
	if h.Length > comms.MaxSerializeLength || ethernet.HeaderLen+h.Length > len(data) {
		return f, ErrInvalidDatagram
	}
	src, dst := comms.AddressFromID(h.Src), comms.AddressFromID(h.Dst)
	if !src.Valid() || !dst.Valid() {
		return f, ErrInvalidDatagram
	}
	var meta canfd.Metadata
	if err := meta.SetTrueLength(h.Length); err != nil {
		return f, ErrInvalidDatagram
	}
	binary.LittleEndian.PutUint32(f.Data[:], uint32(meta))
	copy(f.Data[canfd.MetadataLen:], data[ethernet.HeaderLen:ethernet.HeaderLen+h.Length])
	f.Len = canfd.PaddedLen(canfd.MetadataLen + h.Length)
	f.ID = canfd.OutgoingID(src, dst, f.Len)
	return f, nil
}

// OnFrame is the bus receive callback, forwarding the frame to mission
// control.
func (t *Transceiver) OnFrame(f canfd.Frame) {
	var buf [ethernet.BufferSize]byte
	n, err := FrameToDatagram(f, buf[:])
	if err != nil {
		glog.V(2).Infof("transceiver: drop frame %#x: %v", f.ID, err)
		t.dropped.Add(1)
		return
	}
	if t.write(buf[:n]) {
		t.toUDP.Add(1)
	}
}

// HandleDatagram processes a datagram from addr.
func (t *Transceiver) HandleDatagram(data []byte, addr net.Addr) {
	if ethernet.IsPulse(data) {
		if m := t.Mission(); m == nil || m.String() != addr.String() {
			glog.Infof("transceiver: mission control at %s", addr)
			t.SetMission(addr)
		}
		return
	}
	f, err := DatagramToFrame(data)
	if err != nil {
		if err != ErrEmptyDatagram {
			glog.V(2).Infof("transceiver: drop datagram from %s: %v", addr, err)
			t.dropped.Add(1)
		}
		return
	}
	if t.bus == nil {
		t.dropped.Add(1)
		return
	}
	if err := t.bus.Transmit(f); err != nil {
		glog.V(2).Infof("transceiver: transmit %#x: %v", f.ID, err)
		t.txErrors.Add(1)
		return
	}
	t.toCAN.Add(1)
}

// SendPulse sends a heartbeat pulse to mission control.
func (t *Transceiver) SendPulse() bool {
	if t.Mission() == nil {
		return false
	}
	var buf [ethernet.HeaderLen]byte
	if t.write(buf[:ethernet.EncodePulse(buf[:])]) {
		t.pulses.Add(1)
		return true
	}
	return false
}

func (t *Transceiver) write(data []byte) bool {
	addr := t.Mission()
	if addr == nil {
		t.dropped.Add(1)
		return false
	}
	if _, err := t.conn.WriteTo(data, addr); err != nil {
		glog.V(2).Infof("transceiver: write to %s: %v", addr, err)
		t.txErrors.Add(1)
		return false
	}
	return true
}

// Run implements framework.Runnable. It reads datagrams and sends the
// heartbeat until ctx is done.
func (t *Transceiver) Run(ctx context.Context) error {
	if t.PulseInterval > 0 {
		go t.heartbeat(ctx)
	}
	return framework.RunWithContextCloser(ctx, t.conn, func() error {
		var buf [ethernet.BufferSize + 1]byte
		for {
			n, addr, err := t.conn.ReadFrom(buf[:])
			if err != nil {
				return err
			}
			if n > ethernet.BufferSize {
				t.dropped.Add(1)
				continue
			}
			t.HandleDatagram(buf[:n], addr)
		}
	})
}

func (t *Transceiver) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(t.PulseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.SendPulse()
		}
	}
}
