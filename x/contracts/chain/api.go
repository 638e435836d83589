// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain connects a contract to the chain process that owns its
// storage pages and answers contextual queries.
package chain

import (
	"context"

	"github.com/zarbchain/tanour/codec"
)

// API is the surface a chain process exposes to the executor for one
// contract.
type API interface {
	PageSize(ctx context.Context) (uint32, error)
	Capacity(ctx context.Context) (uint64, error)
	ReadPage(ctx context.Context, pageNo uint32) ([]byte, error)
	WritePage(ctx context.Context, pageNo uint32, data []byte) error
	Exists(ctx context.Context, address codec.Address) (bool, error)
	CurrentBlockNumber(ctx context.Context) (uint32, error)
	// Code returns the bytecode deployed at [address].
	Code(ctx context.Context, address codec.Address) ([]byte, error)
}
