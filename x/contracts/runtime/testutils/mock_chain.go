// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testutils

import (
	"context"
	"sync"

	"github.com/zarbchain/tanour/codec"
)

// MockChain answers parameter queries from memory.
type MockChain struct {
	mu          sync.RWMutex
	addresses   map[codec.Address]struct{}
	blockNumber uint32

	// Err, when set, is returned by every query.
	Err error
}

// NewMockChain creates a new mock chain at [blockNumber]
func NewMockChain(blockNumber uint32) *MockChain {
	return &MockChain{
		addresses:   make(map[codec.Address]struct{}),
		blockNumber: blockNumber,
	}
}

// AddAddress marks [address] as existing
func (m *MockChain) AddAddress(address codec.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addresses[address] = struct{}{}
}

// SetBlockNumber moves the chain to [blockNumber]
func (m *MockChain) SetBlockNumber(blockNumber uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blockNumber = blockNumber
}

func (m *MockChain) Exists(_ context.Context, address codec.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.addresses[address]
	return ok, nil
}

func (m *MockChain) CurrentBlockNumber(context.Context) (uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return 0, m.Err
	}
	return m.blockNumber, nil
}
