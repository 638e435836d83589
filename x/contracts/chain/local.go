// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/storage"
)

var _ API = (*Local)(nil)

// Local serves the API for one contract from a backing store in this
// process.
type Local struct {
	store   storage.BackingStore
	address codec.Address
	code    []byte

	lock        sync.RWMutex
	addresses   map[codec.Address]struct{}
	blockNumber uint32
}

func NewLocal(store storage.BackingStore, address codec.Address, code []byte) *Local {
	return &Local{
		store:   store,
		address: address,
		code:    code,
		addresses: map[codec.Address]struct{}{
			address: {},
		},
	}
}

func (l *Local) AddAddress(address codec.Address) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.addresses[address] = struct{}{}
}

func (l *Local) SetBlockNumber(blockNumber uint32) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.blockNumber = blockNumber
}

func (l *Local) PageSize(context.Context) (uint32, error) {
	return l.store.PageSize(), nil
}

func (l *Local) Capacity(context.Context) (uint64, error) {
	return l.store.Capacity(), nil
}

func (l *Local) ReadPage(_ context.Context, pageNo uint32) ([]byte, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.store.ReadPage(pageNo)
}

func (l *Local) WritePage(_ context.Context, pageNo uint32, data []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.store.WritePage(pageNo, data)
}

func (l *Local) Exists(_ context.Context, address codec.Address) (bool, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	_, ok := l.addresses[address]
	return ok, nil
}

func (l *Local) CurrentBlockNumber(context.Context) (uint32, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.blockNumber, nil
}

func (l *Local) Code(_ context.Context, address codec.Address) ([]byte, error) {
	if address != l.address {
		return nil, fmt.Errorf("no contract at %s", address)
	}
	return l.code, nil
}
