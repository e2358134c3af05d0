package memstorage

import (
	"context"
	"sync"

	"github.com/denismitr/lemonrest/internal/data"
	"github.com/denismitr/lemonrest/internal/storage"
)

// MemStorage holds the encoded collection in process memory only.
// Every Load decodes a fresh copy, so callers never share records.
type MemStorage struct {
	mu     sync.RWMutex
	blob   []byte
	saves  int
	closed bool
}

func New() *MemStorage {
	return &MemStorage{blob: []byte("[]")}
}

func (s *MemStorage) Load(ctx context.Context) ([]*data.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	return storage.Decode(s.blob)
}

func (s *MemStorage) Save(ctx context.Context, records []*data.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := storage.Encode(records, false)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	s.blob = b
	s.saves++
	return nil
}

// Saves counts successful Save calls.
func (s *MemStorage) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *MemStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	s.closed = true
	s.blob = nil
	return nil
}
