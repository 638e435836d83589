// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"

	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/zarbchain/tanour/codec"
)

var _ API = (*Client)(nil)

// Client calls a chain Service over JSON-RPC.
type Client struct {
	requester rpc.EndpointRequester
}

func NewClient(uri string) *Client {
	return &Client{
		requester: rpc.NewEndpointRequester(uri),
	}
}

func (c *Client) PageSize(ctx context.Context) (uint32, error) {
	resp := new(PageSizeReply)
	err := c.requester.SendRequest(ctx, Name+".pageSize", struct{}{}, resp)
	return resp.PageSize, err
}

func (c *Client) Capacity(ctx context.Context) (uint64, error) {
	resp := new(CapacityReply)
	err := c.requester.SendRequest(ctx, Name+".capacity", struct{}{}, resp)
	return resp.Capacity, err
}

func (c *Client) ReadPage(ctx context.Context, pageNo uint32) ([]byte, error) {
	resp := new(PageReply)
	err := c.requester.SendRequest(ctx, Name+".readPage", &PageArgs{PageNo: pageNo}, resp)
	return resp.Data, err
}

func (c *Client) WritePage(ctx context.Context, pageNo uint32, data []byte) error {
	return c.requester.SendRequest(ctx, Name+".writePage", &WritePageArgs{
		PageNo: pageNo,
		Data:   data,
	}, &struct{}{})
}

func (c *Client) Exists(ctx context.Context, address codec.Address) (bool, error) {
	resp := new(ExistsReply)
	err := c.requester.SendRequest(ctx, Name+".exists", &AddressArgs{Address: address}, resp)
	return resp.Exists, err
}

func (c *Client) CurrentBlockNumber(ctx context.Context) (uint32, error) {
	resp := new(BlockNumberReply)
	err := c.requester.SendRequest(ctx, Name+".currentBlockNumber", struct{}{}, resp)
	return resp.BlockNumber, err
}

func (c *Client) Code(ctx context.Context, address codec.Address) ([]byte, error) {
	resp := new(CodeReply)
	err := c.requester.SendRequest(ctx, Name+".code", &AddressArgs{Address: address}, resp)
	return resp.Code, err
}
