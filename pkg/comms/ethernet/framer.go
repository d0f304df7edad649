// Package ethernet frames packets in UDP datagrams.
//
// A datagram is a 6-byte header (source id, destination id, payload
// length, all little-endian 16-bit) followed by the encoded packet.
package ethernet

import (
	"encoding/binary"

	"github.com/robotalks/ecu.go/pkg/comms"
)

// Datagram geometry.
const (
	HeaderLen  = 6
	BufferSize = comms.MaxSerializeLength + HeaderLen

	// PulseID is the source and destination id of a pulse datagram.
	PulseID = 0xFFFF
)

// Header is the datagram header with raw address ids.
type Header struct {
	Src    uint16
	Dst    uint16
	Length int
}

// ParseHeader reads the header from buf.
func ParseHeader(buf []byte) (Header, bool) {
	if len(buf) < HeaderLen {
		return Header{}, false
	}
	return Header{
		Src:    binary.LittleEndian.Uint16(buf),
		Dst:    binary.LittleEndian.Uint16(buf[2:]),
		Length: int(binary.LittleEndian.Uint16(buf[4:])),
	}, true
}

// Put writes the header into buf.
func (h Header) Put(buf []byte) {
	binary.LittleEndian.PutUint16(buf, h.Src)
	binary.LittleEndian.PutUint16(buf[2:], h.Dst)
	binary.LittleEndian.PutUint16(buf[4:], uint16(h.Length))
}

// IsPulse indicates the header is a pulse.
func (h Header) IsPulse() bool {
	return h.Src == PulseID && h.Dst == PulseID && h.Length == 0
}

// EncodeDatagram writes a datagram carrying p into buf.
func EncodeDatagram(p comms.Packet, src, dst comms.NetworkAddress, buf []byte) (int, error) {
	if len(buf) < HeaderLen {
		return 0, comms.ErrPacketTooLong
	}
	if !src.Valid() || !dst.Valid() {
		return 0, comms.ErrBadEncoding
	}
	n, err := comms.Encode(p, buf[HeaderLen:])
	if err != nil {
		return 0, err
	}
	Header{Src: src.ID(), Dst: dst.ID(), Length: n}.Put(buf)
	return HeaderLen + n, nil
}

// DecodeDatagram parses a datagram. Bytes beyond the payload length are ignored.
func DecodeDatagram(buf []byte) (p comms.Packet, src, dst comms.NetworkAddress, err error) {
	h, ok := ParseHeader(buf)
	if !ok {
		return nil, src, dst, comms.ErrUnexpectedEnd
	}
	src, dst = comms.AddressFromID(h.Src), comms.AddressFromID(h.Dst)
	if !src.Valid() || !dst.Valid() {
		return nil, src, dst, comms.ErrBadEncoding
	}
	if HeaderLen+h.Length > len(buf) {
		return nil, src, dst, comms.ErrUnexpectedEnd
	}
	p, err = comms.Decode(buf[HeaderLen : HeaderLen+h.Length])
	return p, src, dst, err
}

// IsPulse indicates buf is a pulse datagram.
func IsPulse(buf []byte) bool {
	h, ok := ParseHeader(buf)
	return ok && h.IsPulse()
}

// EncodePulse writes a pulse datagram into buf.
func EncodePulse(buf []byte) int {
	Header{Src: PulseID, Dst: PulseID}.Put(buf)
	return HeaderLen
}
