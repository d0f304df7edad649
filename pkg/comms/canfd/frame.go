// Package canfd frames packets over a CAN-FD bus.
//
// Each frame carries a 32-bit little-endian metadata word followed by the
// encoded packet, zero padded to the mailbox capacity (32 or 64 bytes).
// Addresses travel in the arbitration id.
package canfd

import (
	"encoding/binary"
	"errors"

	"github.com/robotalks/ecu.go/pkg/comms"
)

// Frame geometry.
const (
	MetadataLen = 4
	BufferSize  = MetadataLen + comms.MaxSerializeLength
	SmallRegion = 32
	LargeRegion = 64

	lengthMask = 0x3F
	dstMask    = 0x1F
	largeBit   = 1 << 5
	srcShift   = 6
)

// ErrLengthTooLong indicates a true length that can't be represented.
var ErrLengthTooLong = errors.New("true length too long")

// Metadata is the word preceding the payload. Bits 0-5 hold the true
// payload length.
type Metadata uint32

// TrueLength returns the payload length.
func (m Metadata) TrueLength() int {
	return int(m & lengthMask)
}

// SetTrueLength stores the payload length.
func (m *Metadata) SetTrueLength(n int) error {
	if n < 0 || n > comms.MaxSerializeLength {
		return ErrLengthTooLong
	}
	*m = *m&^lengthMask | Metadata(n)
	return nil
}

// Frame is a CAN-FD frame.
type Frame struct {
	ID   uint32
	Len  int
	Data [LargeRegion]byte
}

// Bytes returns the frame payload.
func (f *Frame) Bytes() []byte {
	if f.Len < 0 || f.Len > len(f.Data) {
		return nil
	}
	return f.Data[:f.Len]
}

// Large indicates the frame goes to the large mailbox region.
func (f *Frame) Large() bool {
	return f.Len > SmallRegion
}

// PaddedLen returns the mailbox capacity for n bytes of frame data.
func PaddedLen(n int) int {
	if n <= SmallRegion {
		return SmallRegion
	}
	return LargeRegion
}

// EncodeFrame writes metadata and the encoded packet into buf, zero pads
// to the mailbox capacity and returns the padded length.
func EncodeFrame(p comms.Packet, buf []byte) (int, error) {
	if len(buf) < MetadataLen {
		return 0, comms.ErrPacketTooLong
	}
	n, err := comms.Encode(p, buf[MetadataLen:])
	if err != nil {
		return 0, err
	}
	var meta Metadata
	if err := meta.SetTrueLength(n); err != nil {
		return 0, comms.ErrPacketTooLong
	}
	binary.LittleEndian.PutUint32(buf, uint32(meta))
	size := PaddedLen(MetadataLen + n)
	if len(buf) < size {
		return 0, comms.ErrPacketTooLong
	}
	for i := MetadataLen + n; i < size; i++ {
		buf[i] = 0
	}
	return size, nil
}

// DecodeFrame decodes the packet in frame data, ignoring padding.
func DecodeFrame(buf []byte) (comms.Packet, error) {
	if len(buf) < MetadataLen {
		return nil, comms.ErrUnexpectedEnd
	}
	n := Metadata(binary.LittleEndian.Uint32(buf)).TrueLength()
	if n > comms.MaxSerializeLength || MetadataLen+n > len(buf) {
		return nil, comms.ErrBadEncoding
	}
	return comms.Decode(buf[MetadataLen : MetadataLen+n])
}

// OutgoingID builds the arbitration id.
func OutgoingID(src, dst comms.NetworkAddress, frameLen int) uint32 {
	id := uint32(dst.ID()) & dstMask
	if frameLen > SmallRegion {
		id |= largeBit
	}
	return id | uint32(src.ID()&dstMask)<<srcShift
}

// ParseID splits an arbitration id.
func ParseID(id uint32) (src, dst comms.NetworkAddress, large bool) {
	dst = comms.AddressFromID(uint16(id & dstMask))
	src = comms.AddressFromID(uint16((id >> srcShift) & dstMask))
	return src, dst, id&largeBit != 0
}

// Filter is the receive mailbox filter of a node.
type Filter struct {
	Host comms.NetworkAddress
}

// Accept indicates the frame with id is for the host, in either region.
func (f Filter) Accept(id uint32) bool {
	dst := uint16(id & dstMask)
	return dst == comms.BroadcastID || dst == f.Host.ID()&dstMask
}
