// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net/http"

	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/gorilla/rpc/v2"

	"github.com/zarbchain/tanour/x/contracts/chain"
)

// Name is the JSON-RPC service name of the executor.
const Name = "tanour"

type ExecuteArgs struct {
	// ProviderURI is the chain endpoint serving the contract's storage.
	ProviderURI string      `json:"providerURI"`
	Transaction Transaction `json:"transaction"`
}

type ExecuteReply struct {
	Result
}

type Service struct {
	executor *Executor
}

func NewHandler(executor *Executor) (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json.NewCodec(), "application/json")
	server.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	return server, server.RegisterService(&Service{executor: executor}, Name)
}

func (s *Service) Execute(r *http.Request, args *ExecuteArgs, reply *ExecuteReply) error {
	res, err := s.executor.Execute(r.Context(), chain.NewClient(args.ProviderURI), &args.Transaction)
	if err != nil {
		return err
	}
	reply.Result = *res
	return nil
}
