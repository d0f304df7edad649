package canfd

import (
	"context"
	"sync"
	"time"

	"github.com/robotalks/ecu.go/pkg/comms"
)

// DefaultTxSlots is the number of transmit mailboxes per region of a port.
const DefaultTxSlots = 4

// VirtualBus is an in-memory CAN-FD bus. Transmitted frames are held in the
// sender's mailboxes until Flush delivers them to every other port whose
// filter accepts the id.
type VirtualBus struct {
	// FlushInterval is the delivery period used by Run.
	FlushInterval time.Duration

	lock    sync.Mutex
	deliver sync.Mutex
	ports   []*Port
	pending []pendingFrame
}

type pendingFrame struct {
	from  *Port
	frame Frame
}

// Port is a node attached to a VirtualBus.
type Port struct {
	bus     *VirtualBus
	accept  func(id uint32) bool
	handler func(Frame)

	// TxSlots is the number of transmit mailboxes per region.
	TxSlots int
	// MaxFrameLen is the largest frame the port can send.
	MaxFrameLen int

	busy [2]int
}

// NewVirtualBus creates an empty bus.
func NewVirtualBus() *VirtualBus {
	return &VirtualBus{FlushInterval: 100 * time.Microsecond}
}

// Attach adds a node. accept selects frames by id, nil accepts everything.
func (b *VirtualBus) Attach(accept func(id uint32) bool, handler func(Frame)) *Port {
	p := &Port{
		bus:         b,
		accept:      accept,
		handler:     handler,
		TxSlots:     DefaultTxSlots,
		MaxFrameLen: LargeRegion,
	}
	b.lock.Lock()
	b.ports = append(b.ports, p)
	b.lock.Unlock()
	return p
}

// NewComms creates Comms for host attached to the bus.
func (b *VirtualBus) NewComms(host comms.NetworkAddress) (*Comms, *Port) {
	c := NewComms(host, nil)
	port := b.Attach(c.filter.Accept, c.OnFrame)
	c.bus = port
	return c, port
}

// Transmit implements Bus.
func (p *Port) Transmit(f Frame) error {
	if f.Len > p.MaxFrameLen || f.Len > LargeRegion || f.Len < 0 {
		return ErrFrameTooBigForRegion
	}
	region := 0
	if f.Large() {
		region = 1
	}
	b := p.bus
	b.lock.Lock()
	defer b.lock.Unlock()
	if p.busy[region] >= p.TxSlots {
		return ErrMailboxUnavailable
	}
	p.busy[region]++
	b.pending = append(b.pending, pendingFrame{from: p, frame: f})
	return nil
}

// Flush delivers pending frames in transmit order and frees the mailboxes.
// It returns the number of frames put on the bus. Handlers never run
// concurrently.
func (b *VirtualBus) Flush() int {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.lock.Lock()
	pending := b.pending
	b.pending = nil
	ports := append([]*Port(nil), b.ports...)
	for _, p := range ports {
		p.busy = [2]int{}
	}
	b.lock.Unlock()

	for _, pf := range pending {
		for _, p := range ports {
			if p == pf.from || p.handler == nil {
				continue
			}
			if p.accept == nil || p.accept(pf.frame.ID) {
				p.handler(pf.frame)
			}
		}
	}
	return len(pending)
}

// Run flushes the bus periodically until ctx is done.
func (b *VirtualBus) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Flush()
		}
	}
}
