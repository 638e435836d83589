// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/chain"
	"github.com/zarbchain/tanour/x/contracts/storage"
)

const (
	storeKey       = "store"
	pathKey        = "path"
	codeKey        = "code"
	addressKey     = "address"
	pageSizeKey    = "page-size"
	pagesKey       = "pages"
	blockNumberKey = "block-number"
	existsKey      = "exists"

	storeFile   = "file"
	storeMemory = "memory"
	storePebble = "pebble"
	storeBolt   = "bolt"
)

// addStoreFlags registers the flags read by [openChain].
func addStoreFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String(storeKey, storeFile, "backing store: file, memory, pebble or bolt")
	flags.String(pathKey, "", "path of the storage file or database")
	flags.String(codeKey, "", "path of the contract code, read from the storage file when empty")
	flags.String(addressKey, "", "hex address of the contract")
	flags.Uint32(pageSizeKey, storage.DefaultPageSize, "page size of memory, pebble and bolt stores, and of files that do not record one")
	flags.Uint32(pagesKey, 16, "page count of memory, pebble and bolt stores")
	flags.Uint32(blockNumberKey, 0, "block number reported to contracts")
	flags.StringSlice(existsKey, nil, "hex addresses reported as existing")
}

type localChain struct {
	*chain.Local
	address codec.Address
	code    []byte
	close   func() error
}

// openChain opens the configured backing store and serves it as a chain
// holding one contract.
func openChain(v *viper.Viper) (*localChain, error) {
	var address codec.Address
	if s := v.GetString(addressKey); s != "" {
		var err error
		address, err = codec.ParseAddress(s)
		if err != nil {
			return nil, err
		}
	}

	var (
		store     storage.BackingStore
		code      []byte
		closeFunc = func() error { return nil }
		path      = v.GetString(pathKey)
		pageSize  = v.GetUint32(pageSizeKey)
		pageCount = v.GetUint32(pagesKey)
	)
	switch kind := v.GetString(storeKey); kind {
	case storeFile:
		file, err := storage.LoadFile(path, storage.WithPageSize(pageSize))
		if err != nil {
			return nil, err
		}
		code, err = file.Code()
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		if address == codec.EmptyAddress {
			address = file.Header().Owner
		}
		store, closeFunc = file, file.Close
	case storeMemory:
		store = storage.NewMemoryStore(pageSize, pageCount)
	case storePebble:
		db, err := storage.NewPebbleStore(path, pageSize, pageCount)
		if err != nil {
			return nil, err
		}
		store, closeFunc = db, db.Close
	case storeBolt:
		db, err := storage.NewBoltStore(path, pageSize, pageCount)
		if err != nil {
			return nil, err
		}
		store, closeFunc = db, db.Close
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}

	if codePath := v.GetString(codeKey); codePath != "" {
		var err error
		code, err = os.ReadFile(codePath)
		if err != nil {
			_ = closeFunc()
			return nil, err
		}
	}

	local := chain.NewLocal(store, address, code)
	local.SetBlockNumber(v.GetUint32(blockNumberKey))
	for _, s := range v.GetStringSlice(existsKey) {
		a, err := codec.ParseAddress(s)
		if err != nil {
			_ = closeFunc()
			return nil, err
		}
		local.AddAddress(a)
	}
	return &localChain{
		Local:   local,
		address: address,
		code:    code,
		close:   closeFunc,
	}, nil
}
