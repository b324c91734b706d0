package sequencer

// BytesEntry is a ready-made AppendEntry carrying an in-memory payload,
// for producers that don't need a bespoke entry type of their own.
type BytesEntry []byte

// Len implements AppendEntry.
func (e BytesEntry) Len() int { return len(e) }

// Bytes returns the underlying payload.
func (e BytesEntry) Bytes() []byte { return e }

var _ AppendEntry = BytesEntry(nil)
