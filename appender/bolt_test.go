package appender

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/flowlog/sequencer/frame"
	"github.com/flowlog/sequencer/sequencer"
	"go.etcd.io/bbolt"
)

func TestBoltAppenderAcceptPersistsEveryEntry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "demo.db")
	a, err := NewBoltAppender(dbPath, "p0")
	if err != nil {
		t.Fatalf("NewBoltAppender: %v", err)
	}
	defer a.Close()

	s := sequencer.New("p0", 10, 1<<20)
	got := s.TryWriteBatch([]sequencer.AppendEntry{
		sequencer.BytesEntry("alpha"),
		sequencer.BytesEntry("beta"),
	}, 0)
	if got != 11 {
		t.Fatalf("TryWriteBatch = %d, want 11", got)
	}
	batch, ok := s.TryRead()
	if !ok {
		t.Fatal("expected a batch to be readable")
	}

	if err := a.Accept(batch); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Release the appender's file lock before reopening the same path.
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		t.Fatalf("reopen bbolt: %v", err)
	}
	defer db.Close()

	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rootBucket).Bucket([]byte("p0"))
		for i, want := range []string{"alpha", "beta"} {
			key := positionKey(batch.FirstPosition() + int64(i))
			framed := b.Get(key)
			if framed == nil {
				t.Fatalf("missing frame for position %d", batch.FirstPosition()+int64(i))
			}
			length := binary.BigEndian.Uint32(framed[0:4])
			payload := framed[frame.HeaderLength : frame.HeaderLength+int(length)]
			if string(payload) != want {
				t.Fatalf("payload at position %d = %q, want %q", batch.FirstPosition()+int64(i), payload, want)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBoltAppenderRejectsNonFramableEntry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "demo.db")
	a, err := NewBoltAppender(dbPath, "p0")
	if err != nil {
		t.Fatalf("NewBoltAppender: %v", err)
	}
	defer a.Close()

	s := sequencer.New("p0", 0, 1<<20)
	s.TryWrite(opaqueEntry{5}, 0)
	batch, _ := s.TryRead()

	if err := a.Accept(batch); err == nil {
		t.Fatal("expected Accept to reject an entry without a Bytes() method")
	}
}

type opaqueEntry struct{ n int }

func (e opaqueEntry) Len() int { return e.n }

func TestStoreSharesOneDatabaseAcrossPartitions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "demo.db")
	store, err := OpenBoltStore(dbPath)
	if err != nil {
		t.Fatalf("OpenBoltStore: %v", err)
	}
	defer store.Close()

	aP0, err := store.Appender("p0")
	if err != nil {
		t.Fatalf("Appender(p0): %v", err)
	}
	aP1, err := store.Appender("p1")
	if err != nil {
		t.Fatalf("Appender(p1): %v", err)
	}

	sP0 := sequencer.New("p0", 0, 1<<20)
	sP0.TryWrite(sequencer.BytesEntry("from-p0"), 0)
	batchP0, _ := sP0.TryRead()
	if err := aP0.Accept(batchP0); err != nil {
		t.Fatalf("p0 Accept: %v", err)
	}

	sP1 := sequencer.New("p1", 0, 1<<20)
	sP1.TryWrite(sequencer.BytesEntry("from-p1"), 0)
	batchP1, _ := sP1.TryRead()
	if err := aP1.Accept(batchP1); err != nil {
		t.Fatalf("p1 Accept: %v", err)
	}

	// Both partitions assigned position 0: without per-partition buckets
	// this would collide. Closing individual appenders must not close
	// the shared database out from under the other.
	if err := aP0.Close(); err != nil {
		t.Fatalf("aP0.Close: %v", err)
	}

	err = store.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(rootBucket)
		p0Frame := root.Bucket([]byte("p0")).Get(positionKey(0))
		p1Frame := root.Bucket([]byte("p1")).Get(positionKey(0))

		p0Payload := p0Frame[frame.HeaderLength : frame.HeaderLength+7]
		p1Payload := p1Frame[frame.HeaderLength : frame.HeaderLength+7]
		if string(p0Payload) != "from-p0" {
			t.Fatalf("p0 position 0 = %q, want %q", p0Payload, "from-p0")
		}
		if string(p1Payload) != "from-p1" {
			t.Fatalf("p1 position 0 = %q, want %q", p1Payload, "from-p1")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
