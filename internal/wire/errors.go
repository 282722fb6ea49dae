// Package wire implements the low-level DNS binary codec: label and name
// compression, and the primitive integer encodings that the message and
// record layers build on.
package wire

import "errors"

// ErrMalformedLabel indicates that a label's length byte did not use one of
// the two recognised top-bit patterns (00 for a literal label, 11 for a
// compression pointer).
var ErrMalformedLabel = errors.New("wire: malformed label")

// ErrCircularName indicates that a compression pointer resolved to an offset
// at or after the lowest offset any earlier pointer in the same name already
// visited. This is stricter than RFC 1035, which only requires that pointers
// point backwards; it is retained for Bonjour test-vector parity (see
// DESIGN.md).
var ErrCircularName = errors.New("wire: circular compression pointer")

// ErrTruncated indicates that the buffer ended before a length-prefixed
// field (a label, a pointer, an rdata block) could be fully read.
var ErrTruncated = errors.New("wire: truncated message")

// ErrNameTooLong indicates that a name's wire-format encoding would exceed
// 255 bytes.
var ErrNameTooLong = errors.New("wire: name exceeds 255 bytes")

// ErrLabelTooLong indicates that a single label exceeds 63 bytes.
var ErrLabelTooLong = errors.New("wire: label exceeds 63 bytes")

// ErrBufferFull indicates that appending the next record would exceed the
// encoder's buffer capacity. Callers (the responder) are expected to mark
// the message truncated, flush it, and start a new one.
var ErrBufferFull = errors.New("wire: buffer full")

// FormatError decorates one of the sentinel errors above with the byte
// offset at which it was detected, for logging.
type FormatError struct {
	Offset int
	Err    error
}

func (e *FormatError) Error() string {
	return e.Err.Error()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func newFormatError(offset int, err error) error {
	return &FormatError{Offset: offset, Err: err}
}
