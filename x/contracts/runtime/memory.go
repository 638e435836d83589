// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v25"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

// Memory gives bounds checked access to the linear memory of one instance.
// Every access is checked against the size of the memory at the time of the
// access, since the guest may grow it between calls.
type Memory struct {
	mem   *wasmtime.Memory
	store wasmtime.Storelike
}

func NewMemory(mem *wasmtime.Memory, store wasmtime.Storelike) *Memory {
	return &Memory{
		mem:   mem,
		store: store,
	}
}

// Size returns the current size of the memory in bytes.
func (m *Memory) Size() uint64 {
	return uint64(m.mem.DataSize(m.store))
}

func (m *Memory) bounds(offset uint32, length uint64) (uint64, uint64, error) {
	start := uint64(offset)
	end := start + length
	if size := m.Size(); end > size {
		return 0, 0, fmt.Errorf("%w: range [%d, %d) outside memory of %d bytes", errors.ErrMemory, start, end, size)
	}
	return start, end, nil
}

// Read copies [length] bytes at [offset] out of linear memory.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	start, end, err := m.bounds(offset, uint64(length))
	if err != nil {
		return nil, err
	}
	data := make([]byte, length)
	copy(data, m.mem.UnsafeData(m.store)[start:end])
	return data, nil
}

// Write copies [data] into linear memory at [offset].
func (m *Memory) Write(offset uint32, data []byte) error {
	start, end, err := m.bounds(offset, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(m.mem.UnsafeData(m.store)[start:end], data)
	return nil
}

// ReadRegion reads and validates the Region record stored at [ptr].
func (m *Memory) ReadRegion(ptr uint32) (Region, error) {
	b, err := m.Read(ptr, RegionSize)
	if err != nil {
		return Region{}, err
	}
	region, err := parseRegion(b)
	if err != nil {
		return Region{}, err
	}
	if err := region.Validate(); err != nil {
		return Region{}, err
	}
	return region, nil
}

// ReadRegionData returns the used part of the buffer described by the
// Region at [ptr].
func (m *Memory) ReadRegionData(ptr uint32) ([]byte, error) {
	region, err := m.ReadRegion(ptr)
	if err != nil {
		return nil, err
	}
	return m.Read(region.Offset, region.Length)
}

// WriteRegionData fills the buffer described by the Region at [ptr] and
// updates the record's length.
func (m *Memory) WriteRegionData(ptr uint32, data []byte) error {
	region, err := m.ReadRegion(ptr)
	if err != nil {
		return err
	}
	if uint64(len(data)) > uint64(region.Capacity) {
		return fmt.Errorf("%w: region too small to write %d bytes: %+v", errors.ErrMemory, len(data), region)
	}
	if err := m.Write(region.Offset, data); err != nil {
		return err
	}
	region.Length = uint32(len(data))
	return m.Write(ptr, region.Bytes())
}
