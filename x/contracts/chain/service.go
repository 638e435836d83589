// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"net/http"

	"github.com/ava-labs/avalanchego/utils/json"
	"github.com/gorilla/rpc/v2"

	"github.com/zarbchain/tanour/codec"
)

// Name is the JSON-RPC service name the chain API is registered under.
const Name = "chain"

type PageSizeReply struct {
	PageSize uint32 `json:"pageSize"`
}

type CapacityReply struct {
	Capacity uint64 `json:"capacity"`
}

type PageArgs struct {
	PageNo uint32 `json:"pageNo"`
}

type PageReply struct {
	Data []byte `json:"data"`
}

type WritePageArgs struct {
	PageNo uint32 `json:"pageNo"`
	Data   []byte `json:"data"`
}

type AddressArgs struct {
	Address codec.Address `json:"address"`
}

type ExistsReply struct {
	Exists bool `json:"exists"`
}

type BlockNumberReply struct {
	BlockNumber uint32 `json:"blockNumber"`
}

type CodeReply struct {
	Code []byte `json:"code"`
}

// Service exposes an API over JSON-RPC.
type Service struct {
	api API
}

func NewService(api API) *Service {
	return &Service{api: api}
}

// NewHandler returns an http.Handler serving [api].
func NewHandler(api API) (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json.NewCodec(), "application/json")
	server.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	return server, server.RegisterService(NewService(api), Name)
}

func (s *Service) PageSize(r *http.Request, _ *struct{}, reply *PageSizeReply) (err error) {
	reply.PageSize, err = s.api.PageSize(r.Context())
	return err
}

func (s *Service) Capacity(r *http.Request, _ *struct{}, reply *CapacityReply) (err error) {
	reply.Capacity, err = s.api.Capacity(r.Context())
	return err
}

func (s *Service) ReadPage(r *http.Request, args *PageArgs, reply *PageReply) (err error) {
	reply.Data, err = s.api.ReadPage(r.Context(), args.PageNo)
	return err
}

func (s *Service) WritePage(r *http.Request, args *WritePageArgs, _ *struct{}) error {
	return s.api.WritePage(r.Context(), args.PageNo, args.Data)
}

func (s *Service) Exists(r *http.Request, args *AddressArgs, reply *ExistsReply) (err error) {
	reply.Exists, err = s.api.Exists(r.Context(), args.Address)
	return err
}

func (s *Service) CurrentBlockNumber(r *http.Request, _ *struct{}, reply *BlockNumberReply) (err error) {
	reply.BlockNumber, err = s.api.CurrentBlockNumber(r.Context())
	return err
}

func (s *Service) Code(r *http.Request, args *AddressArgs, reply *CodeReply) (err error) {
	reply.Code, err = s.api.Code(r.Context(), args.Address)
	return err
}
