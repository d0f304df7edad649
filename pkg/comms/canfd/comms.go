package canfd

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/spsc"
)

// RxQueueSize is the number of received frames buffered between the
// bus interrupt and the control loop.
const RxQueueSize = 64

var (
	// ErrMailboxUnavailable indicates all transmit mailboxes of the region are busy.
	ErrMailboxUnavailable = errors.New("no transmit mailbox available")
	// ErrFrameTooBigForRegion indicates the frame exceeds the mailbox capacity.
	ErrFrameTooBigForRegion = errors.New("frame too big for mailbox region")
)

// Bus transmits frames. Transmit must not block.
type Bus interface {
	Transmit(f Frame) error
}

// Comms implements comms.Transport over a CAN-FD bus.
type Comms struct {
	host    comms.NetworkAddress
	filter  Filter
	bus     Bus
	rx      *spsc.Ring[Frame]
	dropped atomic.Uint64
}

// NewComms creates Comms for the host address.
func NewComms(host comms.NetworkAddress, bus Bus) *Comms {
	return &Comms{
		host:   host,
		filter: Filter{Host: host},
		bus:    bus,
		rx:     spsc.New[Frame](RxQueueSize),
	}
}

// Host returns the host address.
func (c *Comms) Host() comms.NetworkAddress {
	return c.host
}

// Filter returns the receive filter of the host.
func (c *Comms) Filter() Filter {
	return c.filter
}

// Dropped returns the number of frames dropped because the receive
// queue was full.
func (c *Comms) Dropped() uint64 {
	return c.dropped.Load()
}

// OnFrame is the receive callback from the bus. It must be called from a
// single context.
func (c *Comms) OnFrame(f Frame) {
	if !c.filter.Accept(f.ID) {
		return
	}
	if !c.rx.Push(f) {
		c.dropped.Add(1)
	}
}

// Transmit implements comms.Transport.
func (c *Comms) Transmit(p comms.Packet, to comms.NetworkAddress) error {
	var f Frame
	n, err := EncodeFrame(p, f.Data[:])
	if err != nil {
		return comms.SerializeFailure(err)
	}
	f.Len = n
	f.ID = OutgoingID(c.host, to, n)
	if err := c.bus.Transmit(f); err != nil {
		return comms.TransportFailure(mapBusError(err))
	}
	return nil
}

// Receive implements comms.Transport. At most one frame is consumed per
// call, undecodable frames are dropped.
func (c *Comms) Receive() (comms.Packet, comms.NetworkAddress, bool) {
	f, ok := c.rx.Pop()
	if !ok {
		return nil, comms.NetworkAddress{}, false
	}
	src, _, _ := ParseID(f.ID)
	if !src.Valid() {
		glog.V(2).Infof("canfd: drop frame %#x from unknown source", f.ID)
		return nil, comms.NetworkAddress{}, false
	}
	p, err := DecodeFrame(f.Bytes())
	if err != nil {
		glog.V(2).Infof("canfd: drop frame %#x: %v", f.ID, err)
		return nil, comms.NetworkAddress{}, false
	}
	return p, src, true
}

func mapBusError(err error) error {
	switch {
	case errors.Is(err, ErrMailboxUnavailable):
		return comms.ErrNoFreeSlot
	case errors.Is(err, ErrFrameTooBigForRegion):
		return comms.ErrFrameTooBig
	}
	return fmt.Errorf("%w: %v", comms.ErrUnknownTransport, err)
}
