package ethernet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/framework"
	"github.com/robotalks/ecu.go/pkg/spsc"
)

// RxQueueSize is the number of datagrams buffered for Receive.
const RxQueueSize = 64

// ErrNoPeer indicates no peer address is known yet.
var ErrNoPeer = errors.New("no peer")

type datagram struct {
	len  int
	data [BufferSize]byte
}

type peerAddr struct {
	addr net.Addr
}

// Comms implements comms.Transport over a packet socket.
type Comms struct {
	// LearnPeer replaces the peer with the sender of every received datagram.
	LearnPeer bool

	conn    net.PacketConn
	host    comms.NetworkAddress
	peer    atomic.Pointer[peerAddr]
	rx      *spsc.Ring[datagram]
	dropped atomic.Uint64
}

// NewComms creates Comms for host sending to peer. peer may be nil with
// LearnPeer set.
func NewComms(conn net.PacketConn, host comms.NetworkAddress, peer net.Addr) *Comms {
	c := &Comms{
		conn: conn,
		host: host,
		rx:   spsc.New[datagram](RxQueueSize),
	}
	if peer != nil {
		c.SetPeer(peer)
	}
	return c
}

// Host returns the host address.
func (c *Comms) Host() comms.NetworkAddress {
	return c.host
}

// SetPeer sets the destination of transmitted datagrams.
func (c *Comms) SetPeer(addr net.Addr) {
	c.peer.Store(&peerAddr{addr: addr})
}

// Peer returns the destination of transmitted datagrams.
func (c *Comms) Peer() net.Addr {
	if p := c.peer.Load(); p != nil {
		return p.addr
	}
	return nil
}

// Dropped returns the number of datagrams dropped because the receive
// queue was full or they were oversized.
func (c *Comms) Dropped() uint64 {
	return c.dropped.Load()
}

// Run implements framework.Runnable. It reads datagrams until ctx is done,
// closing the socket on exit.
func (c *Comms) Run(ctx context.Context) error {
	return framework.RunWithContextCloser(ctx, c.conn, func() error {
		var buf [BufferSize + 1]byte
		for {
			n, addr, err := c.conn.ReadFrom(buf[:])
			if err != nil {
				return err
			}
			if n > BufferSize {
				glog.V(2).Infof("ethernet: drop oversized datagram from %s", addr)
				c.dropped.Add(1)
				continue
			}
			if c.LearnPeer {
				if peer := c.Peer(); peer == nil || peer.String() != addr.String() {
					glog.Infof("ethernet: peer %s", addr)
					c.SetPeer(addr)
				}
			}
			d := datagram{len: n}
			copy(d.data[:], buf[:n])
			if !c.rx.Push(d) {
				c.dropped.Add(1)
			}
		}
	})
}

// Transmit implements comms.Transport.
func (c *Comms) Transmit(p comms.Packet, to comms.NetworkAddress) error {
	var buf [BufferSize]byte
	n, err := EncodeDatagram(p, c.host, to, buf[:])
	if err != nil {
		return comms.SerializeFailure(err)
	}
	return c.write(buf[:n])
}

// SendPulse transmits a pulse datagram to the peer.
func (c *Comms) SendPulse() error {
	var buf [HeaderLen]byte
	return c.write(buf[:EncodePulse(buf[:])])
}

func (c *Comms) write(data []byte) error {
	peer := c.Peer()
	if peer == nil {
		return comms.TransportFailure(fmt.Errorf("%w: %v", comms.ErrUnknownTransport, ErrNoPeer))
	}
	if _, err := c.conn.WriteTo(data, peer); err != nil {
		return comms.TransportFailure(fmt.Errorf("%w: %v", comms.ErrUnknownTransport, err))
	}
	return nil
}

// Receive implements comms.Transport. Pulses, datagrams for other hosts
// and undecodable datagrams are skipped.
func (c *Comms) Receive() (comms.Packet, comms.NetworkAddress, bool) {
	for {
		d, ok := c.rx.Pop()
		if !ok {
			return nil, comms.NetworkAddress{}, false
		}
		data := d.data[:d.len]
		if IsPulse(data) {
			continue
		}
		p, src, dst, err := DecodeDatagram(data)
		if err != nil {
			glog.V(2).Infof("ethernet: drop datagram: %v", err)
			continue
		}
		if dst != c.host && dst != comms.Broadcast {
			glog.V(4).Infof("ethernet: drop datagram for %s", dst)
			continue
		}
		return p, src, true
	}
}
