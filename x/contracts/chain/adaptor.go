// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/errors"
	"github.com/zarbchain/tanour/x/contracts/runtime"
	"github.com/zarbchain/tanour/x/contracts/storage"
)

var (
	_ storage.BackingStore  = (*Adaptor)(nil)
	_ runtime.ParamProvider = (*Adaptor)(nil)
)

// Adaptor presents an API as a backing store and parameter provider.
// Failures of the API are reported as ErrIO; the underlying error is kept
// as text only, so transport types never reach the contract.
type Adaptor struct {
	ctx      context.Context
	api      API
	pageSize uint32
	capacity uint64
}

// NewAdaptor fetches the page geometry once. [ctx] bounds every page
// request made through the adaptor.
func NewAdaptor(ctx context.Context, api API) (*Adaptor, error) {
	pageSize, err := api.PageSize(ctx)
	if err != nil {
		return nil, ioError("page size", err)
	}
	if pageSize == 0 {
		return nil, fmt.Errorf("%w: zero page size", errors.ErrIO)
	}
	capacity, err := api.Capacity(ctx)
	if err != nil {
		return nil, ioError("capacity", err)
	}
	return &Adaptor{
		ctx:      ctx,
		api:      api,
		pageSize: pageSize,
		capacity: capacity,
	}, nil
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %s", errors.ErrIO, op, err)
}

func (a *Adaptor) PageSize() uint32 {
	return a.pageSize
}

func (a *Adaptor) Capacity() uint64 {
	return a.capacity
}

func (a *Adaptor) ReadPage(pageNo uint32) ([]byte, error) {
	data, err := a.api.ReadPage(a.ctx, pageNo)
	if err != nil {
		return nil, ioError(fmt.Sprintf("read page %d", pageNo), err)
	}
	if uint32(len(data)) != a.pageSize {
		return nil, fmt.Errorf("%w: page %d has %d bytes, expected %d", errors.ErrIO, pageNo, len(data), a.pageSize)
	}
	return data, nil
}

func (a *Adaptor) WritePage(pageNo uint32, data []byte) error {
	if err := a.api.WritePage(a.ctx, pageNo, data); err != nil {
		return ioError(fmt.Sprintf("write page %d", pageNo), err)
	}
	return nil
}

func (a *Adaptor) Exists(ctx context.Context, address codec.Address) (bool, error) {
	exists, err := a.api.Exists(ctx, address)
	if err != nil {
		return false, ioError("exists", err)
	}
	return exists, nil
}

func (a *Adaptor) CurrentBlockNumber(ctx context.Context) (uint32, error) {
	no, err := a.api.CurrentBlockNumber(ctx)
	if err != nil {
		return 0, ioError("current block number", err)
	}
	return no, nil
}

func (a *Adaptor) Code(ctx context.Context, address codec.Address) ([]byte, error) {
	code, err := a.api.Code(ctx, address)
	if err != nil {
		return nil, ioError("code", err)
	}
	return code, nil
}
