// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package server runs contract transactions on behalf of a remote chain.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/chain"
	"github.com/zarbchain/tanour/x/contracts/runtime"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction asks for one call against the contract at Address. Code is
// only read for instantiate; the other actions load the deployed code from
// the chain.
type Transaction struct {
	Address codec.Address    `json:"address"`
	Action  runtime.CallKind `json:"action"`
	Code    []byte           `json:"code,omitempty"`
	Args    []byte           `json:"args"`
}

type Result struct {
	Data            []byte `json:"data"`
	ConsumedPoints  uint64 `json:"consumedPoints"`
	RemainingPoints uint64 `json:"remainingPoints"`
}

type Config struct {
	MemoryLimitPages uint32        `json:"memoryLimitPages"`
	MeteringLimit    uint64        `json:"meteringLimit"`
	ProviderTimeout  time.Duration `json:"providerTimeout"`
}

func NewConfig() Config {
	return Config{
		MemoryLimitPages: runtime.DefaultResourceLimits().MaxMemoryPages,
		MeteringLimit:    runtime.DefaultMeteringLimit,
		ProviderTimeout:  30 * time.Second,
	}
}

type Executor struct {
	log     logging.Logger
	cfg     Config
	runtime *runtime.WasmRuntime
}

func NewExecutor(cfg Config, r *runtime.WasmRuntime, log logging.Logger) *Executor {
	return &Executor{
		log:     log,
		cfg:     cfg,
		runtime: r,
	}
}

// Execute runs [tx] against the storage and parameters served by [api]. The
// returned result is non-nil whenever the contract was created, so the
// points spent by a failed call are still reported.
func (e *Executor) Execute(ctx context.Context, api chain.API, tx *Transaction) (*Result, error) {
	if !tx.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidTransaction, tx.Action)
	}
	if e.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ProviderTimeout)
		defer cancel()
	}

	adaptor, err := chain.NewAdaptor(ctx, api)
	if err != nil {
		return nil, err
	}

	code := tx.Code
	if tx.Action == runtime.CallInstantiate {
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: instantiate without code", ErrInvalidTransaction)
		}
	} else {
		code, err = adaptor.Code(ctx, tx.Address)
		if err != nil {
			return nil, err
		}
	}

	contract, err := e.runtime.NewContract(ctx, &runtime.ContractInfo{
		Address:          tx.Address,
		Code:             code,
		Store:            adaptor,
		Params:           adaptor,
		MemoryLimitPages: e.cfg.MemoryLimitPages,
		MeteringLimit:    e.cfg.MeteringLimit,
	})
	if err != nil {
		return nil, err
	}
	defer contract.Close()

	data, err := contract.CallRaw(ctx, tx.Action, tx.Args)
	res := &Result{
		Data:            data,
		ConsumedPoints:  contract.ConsumedPoints(),
		RemainingPoints: contract.RemainingPoints(),
	}
	if err != nil {
		e.log.Info("transaction failed",
			zap.Stringer("address", tx.Address),
			zap.String("action", string(tx.Action)),
			zap.Uint64("consumedPoints", res.ConsumedPoints),
			zap.Error(err),
		)
		return res, err
	}
	e.log.Debug("transaction executed",
		zap.Stringer("address", tx.Address),
		zap.String("action", string(tx.Action)),
		zap.Uint64("consumedPoints", res.ConsumedPoints),
		zap.Int("size", len(data)),
	)
	return res, nil
}
