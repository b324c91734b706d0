// Package appender is a demonstration downstream consumer: the spec
// treats "the downstream appender that writes batches to durable
// storage" as an external collaborator out of scope for the sequencer
// itself, so this package never imports anything from sequencer's
// internals — it only consumes the public SequencedBatch/AppendEntry
// contract, the same boundary a real storage engine would sit behind.
package appender

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/flowlog/sequencer/frame"
	"github.com/flowlog/sequencer/sequencer"
	"go.etcd.io/bbolt"
)

// ErrEntryNotFramable is returned when an AppendEntry cannot produce the
// raw bytes BoltAppender needs to frame and persist it.
var ErrEntryNotFramable = errors.New("appender: entry does not expose its bytes")

// framableEntry is satisfied by sequencer.BytesEntry and any other
// AppendEntry implementation that can hand back its payload.
type framableEntry interface {
	sequencer.AppendEntry
	Bytes() []byte
}

var rootBucket = []byte("frames")

// BoltAppender persists sequenced batches to a bbolt database, one
// key-value pair per entry keyed by its assigned position, mirroring the
// bucket-per-concern layout of the teacher's metadata store. Entries are
// stored in a bucket nested under rootBucket and named for the
// partition, so two partitions sharing one bbolt database (and thus one
// *bbolt.DB, one file lock) never collide on the same position key.
type BoltAppender struct {
	db          *bbolt.DB
	partitionID string
	owned       bool // true if Close should close db; false for store-issued appenders
}

// NewBoltAppender opens (creating if necessary) a bbolt database at path
// and ensures this partition's frame bucket exists. Each call opens its
// own *bbolt.DB, so it must not be called more than once against the
// same path: bbolt.Open takes an exclusive file lock that a second
// concurrent Open against the same path would block on indefinitely.
// Callers with several partitions sharing one data file should use
// OpenBoltStore and Store.Appender instead.
func NewBoltAppender(path, partitionID string) (*BoltAppender, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("appender: open bbolt database: %w", err)
	}

	if err := createPartitionBucket(db, partitionID); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltAppender{db: db, partitionID: partitionID, owned: true}, nil
}

// Store is a single bbolt database shared by every partition's
// BoltAppender, so a multi-partition deployment opens the underlying
// file exactly once instead of racing separate exclusive-lock Opens
// against the same path.
type Store struct {
	db *bbolt.DB
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path
// for use by multiple partitions' appenders.
func OpenBoltStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("appender: open bbolt database: %w", err)
	}
	return &Store{db: db}, nil
}

// Appender returns a BoltAppender for partitionID backed by the store's
// shared database, creating that partition's bucket if necessary.
func (s *Store) Appender(partitionID string) (*BoltAppender, error) {
	if err := createPartitionBucket(s.db, partitionID); err != nil {
		return nil, err
	}
	return &BoltAppender{db: s.db, partitionID: partitionID}, nil
}

// Close releases the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createPartitionBucket(db *bbolt.DB, partitionID string) error {
	err := db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(rootBucket)
		if err != nil {
			return err
		}
		_, err = root.CreateBucketIfNotExists([]byte(partitionID))
		return err
	})
	if err != nil {
		return fmt.Errorf("appender: create frame bucket: %w", err)
	}
	return nil
}

// Accept writes every entry in batch to durable storage in one bbolt
// transaction, keyed by its assigned position (big-endian, so keys sort
// in position order) within this partition's own bucket. It implements
// the hand-off side of the sequencer's external interface: the
// sequencer has already released the batch by the time Accept is
// called.
func (a *BoltAppender) Accept(batch *sequencer.SequencedBatch) error {
	return a.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rootBucket).Bucket([]byte(a.partitionID))
		for i, e := range batch.Entries() {
			position := batch.FirstPosition() + int64(i)
			framed, err := encodeFrame(e)
			if err != nil {
				return fmt.Errorf("position %d: %w", position, err)
			}
			if err := b.Put(positionKey(position), framed); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the underlying bbolt database, unless this appender
// was issued by a Store, in which case the store owns the database's
// lifecycle and Close is a no-op.
func (a *BoltAppender) Close() error {
	if !a.owned {
		return nil
	}
	return a.db.Close()
}

// encodeFrame writes entry's payload with the shared HeaderLength/
// FrameAlignment framing, so a reader using frame.FramedLength can
// recover entry boundaries without a separate index.
func encodeFrame(e sequencer.AppendEntry) ([]byte, error) {
	fe, ok := e.(framableEntry)
	if !ok {
		return nil, ErrEntryNotFramable
	}
	payload := fe.Bytes()

	framed := make([]byte, frame.FramedLength(len(payload)))
	binary.BigEndian.PutUint32(framed[0:4], uint32(len(payload)))
	// bytes 4:11 of the header are reserved (version/flags/type/stream id
	// in the real appender's wire format); left zeroed here.
	copy(framed[frame.HeaderLength:], payload)
	return framed, nil
}

func positionKey(position int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(position))
	return key
}
