// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

var (
	_ BackingStore = (*PebbleStore)(nil)

	pagePrefix = []byte("page/")
)

// PebbleStore keeps one key per page. Missing keys read as zero pages.
type PebbleStore struct {
	db        *pebble.DB
	pageSize  uint32
	pageCount uint32
}

func NewPebbleStore(dir string, pageSize uint32, pageCount uint32) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("%w: opening pebble: %w", errors.ErrIO, err)
	}
	return &PebbleStore{
		db:        db,
		pageSize:  pageSize,
		pageCount: pageCount,
	}, nil
}

func pageKey(pageNo uint32) []byte {
	k := make([]byte, len(pagePrefix)+4)
	copy(k, pagePrefix)
	binary.BigEndian.PutUint32(k[len(pagePrefix):], pageNo)
	return k
}

func (p *PebbleStore) PageSize() uint32 {
	return p.pageSize
}

func (p *PebbleStore) Capacity() uint64 {
	return uint64(p.pageSize) * uint64(p.pageCount)
}

func (p *PebbleStore) ReadPage(pageNo uint32) ([]byte, error) {
	if pageNo >= p.pageCount {
		return nil, fmt.Errorf("%w: page %d out of range", errors.ErrIO, pageNo)
	}

	data := make([]byte, p.pageSize)
	v, closer, err := p.db.Get(pageKey(pageNo))
	if stderrors.Is(err, pebble.ErrNotFound) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	defer closer.Close()

	copy(data, v)
	return data, nil
}

func (p *PebbleStore) WritePage(pageNo uint32, data []byte) error {
	if pageNo >= p.pageCount {
		return fmt.Errorf("%w: page %d out of range", errors.ErrIO, pageNo)
	}
	if len(data) != int(p.pageSize) {
		return fmt.Errorf("%w: page size mismatch: found=%d, expected=%d", errors.ErrIO, len(data), p.pageSize)
	}
	if err := p.db.Set(pageKey(pageNo), data, pebble.Sync); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	return nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}
