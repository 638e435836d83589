// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"fmt"

	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

// Stats reports how often the cache reached the backing store.
type Stats struct {
	Hits       uint64
	Misses     uint64
	WriteBacks uint64
}

// Cache turns arbitrary byte ranges into page aligned backing store
// operations. Pages are kept until the cache is dropped.
//
// Writes go through to the backing store before Write returns. A page whose
// write-back failed stays dirty and is retried by Flush.
//
// Cache is not safe for concurrent use.
type Cache struct {
	log      logging.Logger
	store    BackingStore
	pageSize uint64
	capacity uint64
	pages    map[uint32]*Page

	hits       atomic.Uint64
	misses     atomic.Uint64
	writeBacks atomic.Uint64
}

func NewCache(store BackingStore, log logging.Logger) (*Cache, error) {
	if store.PageSize() == 0 {
		return nil, fmt.Errorf("%w: zero page size", errors.ErrIO)
	}
	if log == nil {
		log = logging.NoLog{}
	}
	return &Cache{
		log:      log,
		store:    store,
		pageSize: uint64(store.PageSize()),
		capacity: store.Capacity(),
		pages:    make(map[uint32]*Page),
	}, nil
}

func (c *Cache) PageSize() uint32 {
	return uint32(c.pageSize)
}

func (c *Cache) Capacity() uint64 {
	return c.capacity
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		WriteBacks: c.writeBacks.Load(),
	}
}

func (c *Cache) checkRange(offset uint64, length uint64) bool {
	return offset < c.capacity && offset+length <= c.capacity
}

// Read returns [length] bytes starting at the logical [offset].
func (c *Cache) Read(offset uint32, length uint32) ([]byte, error) {
	start, size := uint64(offset), uint64(length)
	if !c.checkRange(start, size) {
		return nil, fmt.Errorf("%w: range [%d, %d) exceeds capacity %d", errors.ErrStorageRead, start, start+size, c.capacity)
	}
	if size == 0 {
		return []byte{}, nil
	}

	var (
		firstPage  = start / c.pageSize
		lastPage   = (start + size - 1) / c.pageSize
		pageOffset = start % c.pageSize
		data       = make([]byte, 0, size)
	)
	for pageNo := firstPage; pageNo <= lastPage; pageNo++ {
		page, err := c.page(uint32(pageNo))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrStorageRead, err)
		}

		n := min(size-uint64(len(data)), c.pageSize-pageOffset)
		data = append(data, page.Data[pageOffset:pageOffset+n]...)
		pageOffset = 0
	}
	return data, nil
}

// Write stores [data] at the logical [offset] and writes every touched page
// back to the backing store.
func (c *Cache) Write(offset uint32, data []byte) error {
	start, size := uint64(offset), uint64(len(data))
	if !c.checkRange(start, size) {
		return fmt.Errorf("%w: range [%d, %d) exceeds capacity %d", errors.ErrStorageWrite, start, start+size, c.capacity)
	}
	if size == 0 {
		return nil
	}

	var (
		firstPage  = start / c.pageSize
		lastPage   = (start + size - 1) / c.pageSize
		pageOffset = start % c.pageSize
		written    uint64
		touched    = make([]uint32, 0, lastPage-firstPage+1)
	)
	for pageNo := firstPage; pageNo <= lastPage; pageNo++ {
		page, err := c.page(uint32(pageNo))
		if err != nil {
			return fmt.Errorf("%w: %w", errors.ErrStorageWrite, err)
		}

		n := min(size-written, c.pageSize-pageOffset)
		copy(page.Data[pageOffset:pageOffset+n], data[written:written+n])
		page.Dirty = true
		touched = append(touched, uint32(pageNo))

		written += n
		pageOffset = 0
	}

	for _, pageNo := range touched {
		if err := c.writeBack(pageNo); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes back every dirty page in page order.
func (c *Cache) Flush() error {
	pageNos := maps.Keys(c.pages)
	slices.Sort(pageNos)
	for _, pageNo := range pageNos {
		if !c.pages[pageNo].Dirty {
			continue
		}
		if err := c.writeBack(pageNo); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) writeBack(pageNo uint32) error {
	page := c.pages[pageNo]
	c.log.Debug("writing page",
		zap.Uint32("pageNo", pageNo),
		zap.Uint64("offset", page.Offset),
	)
	if err := c.store.WritePage(pageNo, page.Data); err != nil {
		return fmt.Errorf("%w: page %d: %w", errors.ErrStorageWrite, pageNo, err)
	}
	page.Dirty = false
	c.writeBacks.Inc()
	return nil
}

// page returns the cached page, fetching it from the backing store on first
// access.
func (c *Cache) page(pageNo uint32) (*Page, error) {
	if page, ok := c.pages[pageNo]; ok {
		c.hits.Inc()
		return page, nil
	}

	c.log.Debug("reading page",
		zap.Uint32("pageNo", pageNo),
		zap.Uint64("pageSize", c.pageSize),
	)
	data, err := c.store.ReadPage(pageNo)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", pageNo, err)
	}
	if uint64(len(data)) != c.pageSize {
		return nil, fmt.Errorf("%w: page %d has %d bytes, expected %d", errors.ErrIO, pageNo, len(data), c.pageSize)
	}
	c.misses.Inc()

	page := newPage(pageNo, uint32(c.pageSize), data)
	c.pages[pageNo] = page
	return page, nil
}
