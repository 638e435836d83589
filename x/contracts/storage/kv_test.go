// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

func testBackingStore(t *testing.T, store BackingStore) {
	require := require.New(t)

	require.Equal(uint32(8), store.PageSize())
	require.Equal(uint64(32), store.Capacity())

	page, err := store.ReadPage(2)
	require.NoError(err)
	require.Equal(make([]byte, 8), page)

	require.NoError(store.WritePage(2, []byte("abcdefgh")))
	page, err = store.ReadPage(2)
	require.NoError(err)
	require.Equal([]byte("abcdefgh"), page)

	require.ErrorIs(store.WritePage(4, make([]byte, 8)), errors.ErrIO)
	require.ErrorIs(store.WritePage(0, make([]byte, 7)), errors.ErrIO)
	_, err = store.ReadPage(4)
	require.ErrorIs(err, errors.ErrIO)

	cache, err := NewCache(store, nil)
	require.NoError(err)
	require.NoError(cache.Write(14, []byte{1, 2, 3, 4}))
	got, err := cache.Read(12, 8)
	require.NoError(err)
	require.Equal([]byte{0, 0, 1, 2, 3, 4, 'c', 'd'}, got)
}

func TestMemoryStore(t *testing.T) {
	testBackingStore(t, NewMemoryStore(8, 4))
}

func TestPebbleStore(t *testing.T) {
	store, err := NewPebbleStore(t.TempDir(), 8, 4)
	require.NoError(t, err)
	defer store.Close()

	testBackingStore(t, store)
}

func TestBoltStore(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "pages.db")
	store, err := NewBoltStore(path, 8, 4)
	require.NoError(err)

	testBackingStore(t, store)
	require.NoError(store.Close())

	store, err = NewBoltStore(path, 8, 4)
	require.NoError(err)
	defer store.Close()

	page, err := store.ReadPage(2)
	require.NoError(err)
	require.Equal([]byte{3, 4, 'c', 'd', 'e', 'f', 'g', 'h'}, page)
}
