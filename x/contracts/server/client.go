// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"context"

	"github.com/ava-labs/avalanchego/utils/rpc"
)

type Client struct {
	requester rpc.EndpointRequester
}

func NewClient(uri string) *Client {
	return &Client{
		requester: rpc.NewEndpointRequester(uri),
	}
}

// Execute asks the server to run [tx] against the chain at [providerURI].
func (c *Client) Execute(ctx context.Context, providerURI string, tx *Transaction) (*Result, error) {
	resp := new(ExecuteReply)
	err := c.requester.SendRequest(ctx, Name+".execute", &ExecuteArgs{
		ProviderURI: providerURI,
		Transaction: *tx,
	}, resp)
	if err != nil {
		return nil, err
	}
	return &resp.Result, nil
}
