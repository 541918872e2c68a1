package pipeline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jdoe/dupescan/internal/model"
)

// diskBucketStore is Stage 1's backing store for memory_efficient mode
// (spec.md §4.4): rather than accumulating every discovered FileEntry
// grouped by size in a RAM-resident map, each entry is appended to a
// scratch BoltDB bucket keyed by size as soon as it's discovered, and only
// a per-size count is kept in memory — the "cursor" that lets later
// arrivals of the same size re-join the flushed batch instead of starting a
// fresh in-memory list. Stage 2/3 then loads one size's entries from disk
// at a time, so the size buckets are never all held in RAM together; the
// Pipeline's per-path size map and the walker's Tree are not spilled.
//
// Reuses the teacher's BoltDB dependency (already wired for
// internal/digest's cross-run cache) for a second, unrelated purpose: a
// temporary spill file, removed on close.
type diskBucketStore struct {
	db     *bolt.DB
	path   string
	counts map[int64]int
}

func newDiskBucketStore() (*diskBucketStore, error) {
	f, err := os.CreateTemp("", "dupescan-buckets-*.db")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("open scratch store: %w", err)
	}

	return &diskBucketStore{db: db, path: path, counts: make(map[int64]int)}, nil
}

// add appends entry to its size's bucket and bumps the in-memory cursor.
func (s *diskBucketStore) add(entry model.FileEntry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sizeBucketKey(entry.Size))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := encodeFileEntry(entry)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return err
	}
	s.counts[entry.Size]++
	return nil
}

// sizes returns every distinct size seen so far, in no particular order.
func (s *diskBucketStore) sizes() []int64 {
	out := make([]int64, 0, len(s.counts))
	for size := range s.counts {
		out = append(out, size)
	}
	return out
}

// load returns every entry flushed under size; the entries stay in the
// store until close.
func (s *diskBucketStore) load(size int64) ([]model.FileEntry, error) {
	var out []model.FileEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(sizeBucketKey(size))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			entry, err := decodeFileEntry(v)
			if err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
	})
	return out, err
}

// close releases the BoltDB handle and removes the scratch file.
func (s *diskBucketStore) close() error {
	err := s.db.Close()
	_ = os.Remove(s.path)
	return err
}

func sizeBucketKey(size int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(size))
	return key
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func encodeFileEntry(e model.FileEntry) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, int64(len(e.Path))); err != nil {
		return nil, err
	}
	buf.WriteString(e.Path)
	if err := binary.Write(buf, binary.BigEndian, e.Size); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, e.ModTime.UnixNano()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFileEntry(data []byte) (model.FileEntry, error) {
	r := bytes.NewReader(data)
	var pathLen int64
	if err := binary.Read(r, binary.BigEndian, &pathLen); err != nil {
		return model.FileEntry{}, err
	}
	pathBytes := make([]byte, pathLen)
	if _, err := io.ReadFull(r, pathBytes); err != nil {
		return model.FileEntry{}, err
	}
	var size, mtimeNano int64
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return model.FileEntry{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &mtimeNano); err != nil {
		return model.FileEntry{}, err
	}
	return model.FileEntry{Path: string(pathBytes), Size: size, ModTime: time.Unix(0, mtimeNano)}, nil
}
