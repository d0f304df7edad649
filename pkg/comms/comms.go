// Package comms defines the packets exchanged with engine controllers,
// their wire encoding and the transport abstraction used by the ECU.
package comms

// Transport delivers packets by address.
// Implementations must not block in either call.
type Transport interface {
	// Transmit sends p to the destination. Failures are *TransferError.
	Transmit(p Packet, to NetworkAddress) error
	// Receive returns the next inbound packet, ok is false when none is available.
	Receive() (p Packet, from NetworkAddress, ok bool)
}

// Envelope is a packet with the address on the other end.
type Envelope struct {
	Packet Packet
	Addr   NetworkAddress
}

// Mock is an in-memory Transport for tests.
type Mock struct {
	// Sent keeps every transmitted packet with its destination.
	Sent []Envelope
	// Err is returned (wrapped as a transport failure) by Transmit when set.
	Err error

	inbound []Envelope
}

// NewMock creates a Mock.
func NewMock() *Mock {
	return &Mock{}
}

// Inject queues an inbound packet.
func (m *Mock) Inject(p Packet, from NetworkAddress) {
	m.inbound = append(m.inbound, Envelope{Packet: p, Addr: from})
}

// Pending returns the number of inbound packets not yet received.
func (m *Mock) Pending() int {
	return len(m.inbound)
}

// Transmit implements Transport. Packets go through the codec so
// unencodable packets fail the same way real transports do.
func (m *Mock) Transmit(p Packet, to NetworkAddress) error {
	var buf [MaxSerializeLength]byte
	if _, err := Encode(p, buf[:]); err != nil {
		return SerializeFailure(err)
	}
	if m.Err != nil {
		return TransportFailure(m.Err)
	}
	m.Sent = append(m.Sent, Envelope{Packet: p, Addr: to})
	return nil
}

// Receive implements Transport.
func (m *Mock) Receive() (Packet, NetworkAddress, bool) {
	if len(m.inbound) == 0 {
		return nil, NetworkAddress{}, false
	}
	e := m.inbound[0]
	m.inbound = m.inbound[1:]
	return e.Packet, e.Addr, true
}

// SentOf returns the transmitted packets with the same type as sample.
func (m *Mock) SentOf(sample Packet) []Envelope {
	var out []Envelope
	tag := TagOf(sample)
	for _, e := range m.Sent {
		if TagOf(e.Packet) == tag {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears transmitted packets.
func (m *Mock) Reset() {
	m.Sent = nil
}
