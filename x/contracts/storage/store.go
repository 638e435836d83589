// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"fmt"
	"sync"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

var _ BackingStore = (*MemoryStore)(nil)

// BackingStore supplies page contents that outlive a single call.
//
// ReadPage must return exactly PageSize bytes and zero-fills pages that were
// never written.
type BackingStore interface {
	PageSize() uint32
	// Capacity is the size of the logical storage space in bytes.
	Capacity() uint64
	ReadPage(pageNo uint32) ([]byte, error)
	WritePage(pageNo uint32, data []byte) error
}

// MemoryStore keeps pages in a map. Useful for tests and dry runs.
type MemoryStore struct {
	mu        sync.RWMutex
	pageSize  uint32
	pageCount uint32
	pages     map[uint32][]byte
}

func NewMemoryStore(pageSize uint32, pageCount uint32) *MemoryStore {
	return &MemoryStore{
		pageSize:  pageSize,
		pageCount: pageCount,
		pages:     make(map[uint32][]byte),
	}
}

func (m *MemoryStore) PageSize() uint32 {
	return m.pageSize
}

func (m *MemoryStore) Capacity() uint64 {
	return uint64(m.pageSize) * uint64(m.pageCount)
}

func (m *MemoryStore) ReadPage(pageNo uint32) ([]byte, error) {
	if pageNo >= m.pageCount {
		return nil, fmt.Errorf("%w: page %d out of range", errors.ErrIO, pageNo)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data := make([]byte, m.pageSize)
	copy(data, m.pages[pageNo])
	return data, nil
}

func (m *MemoryStore) WritePage(pageNo uint32, data []byte) error {
	if pageNo >= m.pageCount {
		return fmt.Errorf("%w: page %d out of range", errors.ErrIO, pageNo)
	}
	if len(data) != int(m.pageSize) {
		return fmt.Errorf("%w: page size mismatch: found=%d, expected=%d", errors.ErrIO, len(data), m.pageSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pages[pageNo] = append([]byte(nil), data...)
	return nil
}
