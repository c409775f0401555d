package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownVariant means the buffer held no message variant this
	// package knows about.
	ErrUnknownVariant = errors.New("no known message variant")

	// ErrMultipleVariants means more than one oneof field was populated.
	ErrMultipleVariants = errors.New("more than one message variant")

	// ErrWireType means a known field arrived with the wrong wire type.
	ErrWireType = errors.New("unexpected wire type")

	// ErrOverflow means a 32-bit field carried a larger varint.
	ErrOverflow = errors.New("value overflows uint32")
)

// DecodeError reports bytes that could not be decoded into a Message.
type DecodeError struct {
	Offset int    // byte offset in the outer buffer
	Field  string // dotted field path, empty at the top level
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("wire: decode at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("wire: decode %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a message the host or a plugin could not encode.
// For host-built requests it always indicates a host defect.
type EncodeError struct {
	Tag    Tag
	Reason string
}

func (e *EncodeError) Error() string {
	if e.Tag == 0 {
		return "wire: encode: " + e.Reason
	}
	return fmt.Sprintf("wire: encode %s: %s", e.Tag, e.Reason)
}
