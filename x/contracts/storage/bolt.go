// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

var (
	_ BackingStore = (*BoltStore)(nil)

	bucketPages = []byte("pages")
)

// BoltStore keeps zstd compressed pages in a single bolt bucket. Pages are
// mostly zero so they compress well.
type BoltStore struct {
	db        *bolt.DB
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	pageSize  uint32
	pageCount uint32
}

func NewBoltStore(path string, pageSize uint32, pageCount uint32) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening bolt: %w", errors.ErrIO, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPages)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{
		db:        db,
		encoder:   encoder,
		decoder:   decoder,
		pageSize:  pageSize,
		pageCount: pageCount,
	}, nil
}

func (b *BoltStore) PageSize() uint32 {
	return b.pageSize
}

func (b *BoltStore) Capacity() uint64 {
	return uint64(b.pageSize) * uint64(b.pageCount)
}

func (b *BoltStore) ReadPage(pageNo uint32) ([]byte, error) {
	if pageNo >= b.pageCount {
		return nil, fmt.Errorf("%w: page %d out of range", errors.ErrIO, pageNo)
	}

	var compressed []byte
	if err := b.db.View(func(tx *bolt.Tx) error {
		// bolt values are only valid inside the transaction
		if v := tx.Bucket(bucketPages).Get(pageKey(pageNo)); v != nil {
			compressed = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	if compressed == nil {
		return make([]byte, b.pageSize), nil
	}

	data, err := b.decoder.DecodeAll(compressed, make([]byte, 0, b.pageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %w", errors.ErrIO, pageNo, err)
	}
	if len(data) != int(b.pageSize) {
		return nil, fmt.Errorf("%w: page %d has %d bytes", errors.ErrIO, pageNo, len(data))
	}
	return data, nil
}

func (b *BoltStore) WritePage(pageNo uint32, data []byte) error {
	if pageNo >= b.pageCount {
		return fmt.Errorf("%w: page %d out of range", errors.ErrIO, pageNo)
	}
	if len(data) != int(b.pageSize) {
		return fmt.Errorf("%w: page size mismatch: found=%d, expected=%d", errors.ErrIO, len(data), b.pageSize)
	}

	compressed := b.encoder.EncodeAll(data, nil)
	if err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPages).Put(pageKey(pageNo), compressed)
	}); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	return nil
}

func (b *BoltStore) Close() error {
	b.encoder.Close()
	b.decoder.Close()
	return b.db.Close()
}
