package digest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jdoe/dupescan/internal/model"
)

const (
	bucketName = "digests"
	digestSize = 32
)

// Cache provides persistent, cross-run memoization of digest results using
// BoltDB. Self-cleaning: every run opens the existing cache read-only and
// writes a fresh one, so only entries actually looked up this run survive
// into the next — identical mechanism to the teacher's internal/cache,
// rekeyed to (path, size, mtime, stage) instead of (path, size, ino, mtime,
// byte-range).
type Cache struct {
	readDB  *bolt.DB
	writeDB *bolt.DB
	path    string
	enabled bool
}

// OpenCache opens path for reading (if it exists) and creates path+".new"
// for writing. An empty path disables the cache.
func OpenCache(path string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}

	if _, err := os.Stat(path); err == nil {
		if readDB, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second}); err == nil {
			c.readDB = readDB
		}
	}

	newPath := path + ".new"
	writeDB, err := bolt.Open(newPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}
	c.writeDB = writeDB

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces the old cache file
// with the new one, provided the new one closed cleanly.
func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else if c.path != "" {
			if err := os.Rename(c.path+".new", c.path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func makeKey(path string, size int64, mtimeUnixNano int64, kind model.JobKind) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(path)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, size)
	_ = binary.Write(buf, binary.BigEndian, mtimeUnixNano)
	buf.WriteByte(byte(kind))
	return buf.Bytes()
}

// Lookup returns a cached digest for (path, size, mtime, kind), or nil if
// absent. A cache hit is copied into the write database (self-cleaning).
func (c *Cache) Lookup(path string, size, mtimeUnixNano int64, kind model.JobKind) []byte {
	if !c.enabled || c.readDB == nil {
		return nil
	}
	key := makeKey(path, size, mtimeUnixNano, kind)
	var out []byte
	_ = c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if data := b.Get(key); len(data) == digestSize {
			out = append([]byte(nil), data...)
		}
		return nil
	})
	if out != nil {
		_ = c.Store(path, size, mtimeUnixNano, kind, out)
	}
	return out
}

// Store saves a digest for (path, size, mtime, kind) in the write database.
func (c *Cache) Store(path string, size, mtimeUnixNano int64, kind model.JobKind, value []byte) error {
	if !c.enabled || c.writeDB == nil || len(value) != digestSize {
		return nil
	}
	return c.writeDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(path, size, mtimeUnixNano, kind), value)
	})
}
