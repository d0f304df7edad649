package comms

import (
	"errors"
	"fmt"
)

// SerializationError is a codec or framer failure.
type SerializationError int

// Serialization errors.
const (
	ErrUnknown SerializationError = iota
	ErrPacketTooLong
	ErrCorrupted
	ErrBadEncoding
	ErrUnexpectedEnd
)

var serializationErrorNames = [...]string{
	"unknown serialization error",
	"packet too long",
	"corrupted",
	"bad encoding",
	"unexpected end",
}

// Error implements error.
func (e SerializationError) Error() string {
	if e >= 0 && int(e) < len(serializationErrorNames) {
		return serializationErrorNames[e]
	}
	return fmt.Sprintf("serialization error %d", int(e))
}

var (
	// ErrNoFreeSlot indicates the transport has no output slot right now.
	// The caller may retry later.
	ErrNoFreeSlot = errors.New("no free slot")
	// ErrFrameTooBig indicates the frame doesn't fit the transport region.
	ErrFrameTooBig = errors.New("frame too big for transport")
	// ErrUnknownTransport wraps any other transport failure.
	ErrUnknownTransport = errors.New("unknown transport error")
)

// TransferError is returned by Transport.Transmit.
type TransferError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// IsSerialization indicates the packet was rejected by the codec or framer.
func (e *TransferError) IsSerialization() bool {
	var se SerializationError
	return errors.As(e.Err, &se)
}

// SerializeFailure wraps a codec or framer error.
func SerializeFailure(err error) *TransferError {
	return &TransferError{Op: "serialize", Err: err}
}

// TransportFailure wraps a transport error.
func TransportFailure(err error) *TransferError {
	return &TransferError{Op: "transmit", Err: err}
}

// IsTransient indicates err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNoFreeSlot)
}
