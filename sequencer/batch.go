package sequencer

// AppendEntry is a caller-owned payload reference. The sequencer holds it
// only long enough to pass it through the queue to the consumer; it never
// reads, copies, or serializes the underlying payload.
type AppendEntry interface {
	// Len reports the entry's payload length in bytes (before framing),
	// which callers can sum into CanWriteEvents's batchSize argument.
	Len() int
}

// SequencedBatch is an immutable, ordered group of entries assigned a
// contiguous range of positions: the i-th entry has position
// FirstPosition()+i. It is created inside the sequencer's critical
// section on a successful write and is owned thereafter by whichever side
// (queue or consumer) currently holds it.
type SequencedBatch struct {
	firstPosition  int64
	sourcePosition int64
	entries        []AppendEntry
}

func newSequencedBatch(firstPosition, sourcePosition int64, entries []AppendEntry) *SequencedBatch {
	return &SequencedBatch{
		firstPosition:  firstPosition,
		sourcePosition: sourcePosition,
		entries:        entries,
	}
}

// FirstPosition is the position assigned to Entries()[0].
func (b *SequencedBatch) FirstPosition() int64 { return b.firstPosition }

// SourcePosition is transported verbatim; the sequencer never interprets
// it. It identifies the upstream record whose processing produced this
// batch.
func (b *SequencedBatch) SourcePosition() int64 { return b.sourcePosition }

// Len returns the number of entries in the batch.
func (b *SequencedBatch) Len() int { return len(b.entries) }

// LastPosition returns the position of the final entry in the batch,
// equal to FirstPosition()+Len()-1.
func (b *SequencedBatch) LastPosition() int64 { return b.firstPosition + int64(len(b.entries)) - 1 }

// Entries returns the batch's entries in position order. The slice is
// owned by the batch and must not be mutated by the caller.
func (b *SequencedBatch) Entries() []AppendEntry { return b.entries }
