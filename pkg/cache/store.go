package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
)

// Key hashes the parts that determine a rendering: header content, rule
// digest, include name and options.
func Key(parts ...[]byte) string {
	h := sha256.New()

	for _, p := range parts {
		// Length prefix keeps ("ab","c") apart from ("a","bc").
		fmt.Fprintf(h, "%d:", len(p))
		h.Write(p)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Store is an LRU in front of an optional directory of lz4 compressed
// files. It is safe for concurrent use.
type Store struct {
	mem *LRU
	dir string
}

// NewStore returns a store keeping maxBytes in memory and, when dir is
// not empty, every value on disk below dir.
func NewStore(dir string, maxBytes int64) *Store {
	return &Store{mem: NewLRU(maxBytes), dir: dir}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key[:2], key+".lz4")
}

// Get returns the value of key from memory or disk.
func (s *Store) Get(key string) ([]byte, bool) {
	if v, ok := s.mem.Get(key); ok {
		return v, true
	}

	if s.dir == "" || len(key) < 2 {
		return nil, false
	}

	v, err := readCompressed(s.path(key))
	if err != nil {
		return nil, false
	}

	s.mem.Put(key, v)

	return v, true
}

// Put stores value under key. Disk failures are returned; the memory copy
// is kept regardless.
func (s *Store) Put(key string, value []byte) error {
	s.mem.Put(key, value)

	if s.dir == "" || len(key) < 2 {
		return nil
	}

	return writeCompressed(s.path(key), value)
}

// Stats reports the in-memory statistics.
func (s *Store) Stats() Stats {
	return s.mem.Stats()
}

func readCompressed(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(lz4.NewReader(f))
}

// writeCompressed writes through a temporary file so that readers never
// see a partial value.
func writeCompressed(path string, value []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}

	var buf bytes.Buffer

	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(value); err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache file: %w", err)
	}

	_, werr := tmp.Write(buf.Bytes())
	cerr := tmp.Close()

	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("cache file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("cache file: %w", err)
	}

	return nil
}
