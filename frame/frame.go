// Package frame defines the framing constants shared between the
// sequencer's size predicate and the downstream appender that actually
// writes framed entries to durable storage. Both sides must agree on
// these values bit-for-bit; neither interprets the frame contents
// beyond their length.
package frame

const (
	// HeaderLength is the byte count prepended to every framed entry by
	// the downstream appender: a 4-byte length, 1-byte version, 1-byte
	// flags, 1-byte type, and 4-byte stream id.
	HeaderLength = 11

	// FrameAlignment is the byte boundary every framed entry, and the
	// trailing end of a batch, is padded to.
	FrameAlignment = 8
)

// Align rounds n up to the next multiple of FrameAlignment.
func Align(n int) int {
	if n <= 0 {
		return 0
	}
	if rem := n % FrameAlignment; rem != 0 {
		return n + (FrameAlignment - rem)
	}
	return n
}

// FramedLength returns the on-wire length of a single entry with payload
// length entryLen: header, payload, and trailing alignment padding. This
// is the precise length the appender uses when writing a frame; it is
// distinct from the coarser estimate behind Sequencer.CanWriteEvents,
// which sizes a whole batch rather than one entry.
func FramedLength(entryLen int) int {
	return Align(HeaderLength + entryLen)
}
