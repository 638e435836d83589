// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/near/borsh-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/errors"
	"github.com/zarbchain/tanour/x/contracts/storage"
)

const (
	// The name of the allocation function export
	AllocName = "allocate"
	// The name of the deallocation function export
	DeallocName = "deallocate"
)

// CallKind names one of the entry points a contract may export.
type CallKind string

const (
	CallInstantiate CallKind = "instantiate"
	CallProcess     CallKind = "process"
	CallQuery       CallKind = "query"
)

func (k CallKind) Valid() bool {
	switch k {
	case CallInstantiate, CallProcess, CallQuery:
		return true
	default:
		return false
	}
}

type ContractInfo struct {
	// the address of the contract instance
	Address codec.Address

	// the wasm bytecode of the contract
	Code []byte

	// the pages the contract reads and writes through its storage imports
	Store storage.BackingStore

	// answers get_param queries, may be nil
	Params ParamProvider

	// the maximum number of 64KiB pages of linear memory
	MemoryLimitPages uint32

	// the number of metering points available over the lifetime of the
	// contract
	MeteringLimit uint64
}

// Contract drives the allocate, write, invoke, read, deallocate round trip
// against one sandbox instance. Storage writes made by the guest are written
// through to the backing store as they happen and are not rolled back when a
// later step of the same call fails.
//
// Calls on one Contract are serialized: a round trip holds the contract
// lock from allocation until the input is freed.
type Contract struct {
	// held for a whole logical call
	lock sync.Mutex

	log     logging.Logger
	address codec.Address
	exec    *Executor
	storage *storage.Cache
	metrics *metrics
	tracer  trace.Tracer
}

func (r *WasmRuntime) NewContract(ctx context.Context, info *ContractInfo) (*Contract, error) {
	_, span := r.tracer.Start(ctx, "Contract.New", trace.WithAttributes(
		attribute.String("address", info.Address.String()),
		attribute.Int("codeSize", len(info.Code)),
	))
	defer span.End()

	if info.Store == nil {
		return nil, fmt.Errorf("%w: no backing store", errors.ErrInstantiation)
	}
	cache, err := storage.NewCache(info.Store, r.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInstantiation, err)
	}
	exec, err := r.NewExecutor(info.Code, ExecutorParams{
		MemoryLimitPages: info.MemoryLimitPages,
		MeteringLimit:    info.MeteringLimit,
		Storage:          cache,
		Params:           info.Params,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for _, name := range []string{AllocName, DeallocName} {
		if !exec.HasExport(name) {
			exec.Close()
			return nil, fmt.Errorf("%w: function %s not found", errors.ErrInstantiation, name)
		}
	}

	return &Contract{
		log:     r.log,
		address: info.Address,
		exec:    exec,
		storage: cache,
		metrics: r.metrics,
		tracer:  r.tracer,
	}, nil
}

// Instantiate runs the instantiate export once, when the contract is created.
func (c *Contract) Instantiate(ctx context.Context, msg interface{}, rsp interface{}) error {
	return c.callMsg(ctx, CallInstantiate, msg, rsp)
}

// Process runs the process export, which may mutate storage.
func (c *Contract) Process(ctx context.Context, msg interface{}, rsp interface{}) error {
	return c.callMsg(ctx, CallProcess, msg, rsp)
}

// Query runs the query export.
func (c *Contract) Query(ctx context.Context, msg interface{}, rsp interface{}) error {
	return c.callMsg(ctx, CallQuery, msg, rsp)
}

// callMsg borsh encodes [msg], calls [kind] and decodes the output into
// [rsp]. A nil [msg] sends an empty buffer and a nil [rsp] discards the
// output.
func (c *Contract) callMsg(ctx context.Context, kind CallKind, msg interface{}, rsp interface{}) error {
	var in []byte
	if msg != nil {
		b, err := borsh.Serialize(msg)
		if err != nil {
			return fmt.Errorf("%w: failed to encode message: %w", errors.ErrSerialization, err)
		}
		in = b
	}
	out, err := c.CallRaw(ctx, kind, in)
	if err != nil {
		return err
	}
	if rsp == nil {
		return nil
	}
	if err := borsh.Deserialize(rsp, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", errors.ErrSerialization, err)
	}
	return nil
}

// CallRaw sends [in] to the [kind] export and returns the guest's output.
func (c *Contract) CallRaw(ctx context.Context, kind CallKind, in []byte) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown call kind %q", errors.ErrRuntime, kind)
	}
	ctx, span := c.tracer.Start(ctx, "Contract."+string(kind), trace.WithAttributes(
		attribute.String("address", c.address.String()),
		attribute.Int("inputSize", len(in)),
	))
	defer span.End()

	c.lock.Lock()
	defer c.lock.Unlock()

	start := time.Now()
	before := c.exec.ConsumedPoints()
	out, err := c.roundTrip(ctx, kind, in)
	consumed := c.exec.ConsumedPoints() - before

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int64("consumedPoints", int64(consumed)))
	c.metrics.calls.WithLabelValues(string(kind), status).Inc()
	c.metrics.consumedPoints.WithLabelValues(string(kind)).Add(float64(consumed))
	c.metrics.callDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	c.log.Debug("contract call",
		zap.Stringer("address", c.address),
		zap.String("kind", string(kind)),
		zap.Uint64("consumedPoints", consumed),
		zap.Error(err),
	)
	return out, err
}

func (c *Contract) roundTrip(ctx context.Context, kind CallKind, in []byte) ([]byte, error) {
	ptr, err := c.allocate(ctx, uint32(len(in)))
	if err != nil {
		return nil, err
	}
	if err := c.exec.WritePtr(ptr, in); err != nil {
		c.release(ctx, ptr)
		return nil, err
	}

	res, err := c.exec.CallFn1(ctx, string(kind), ptr.Packed())
	if err != nil {
		c.release(ctx, ptr)
		return nil, err
	}
	outPtr := UnpackPointer(res)
	if outPtr.Offset == 0 && outPtr.Length != 0 {
		c.release(ctx, ptr)
		return nil, fmt.Errorf("%w: %s returned null pointer %s", errors.ErrMemory, kind, outPtr)
	}
	out, err := c.exec.ReadPtr(outPtr)
	if err != nil {
		c.release(ctx, ptr)
		return nil, err
	}

	if err := c.exec.CallFn0(ctx, DeallocName, ptr.Packed()); err != nil {
		return nil, err
	}
	return out, nil
}

// release hands [ptr] back to the guest after a failed round trip. It is
// skipped once the points are spent, and its own failure is only logged.
func (c *Contract) release(ctx context.Context, ptr Pointer) {
	if c.exec.Exhausted() {
		return
	}
	if err := c.exec.CallFn0(context.WithoutCancel(ctx), DeallocName, ptr.Packed()); err != nil {
		c.log.Debug("failed to free input",
			zap.Stringer("address", c.address),
			zap.Stringer("ptr", ptr),
			zap.Error(err),
		)
	}
}

// allocate reserves [size] bytes in guest memory. An allocator that returns
// a bare 32 bit offset is taken to have reserved exactly [size] bytes.
func (c *Contract) allocate(ctx context.Context, size uint32) (Pointer, error) {
	res, err := c.exec.CallFn2(ctx, AllocName, size)
	if err != nil {
		return Pointer{}, err
	}
	ptr := UnpackPointer(res)
	if res>>32 == 0 {
		ptr.Length = size
	}
	if ptr.Offset == 0 {
		return Pointer{}, fmt.Errorf("%w: %s returned null pointer", errors.ErrMemory, AllocName)
	}
	if ptr.Length < size {
		return Pointer{}, fmt.Errorf("%w: %s returned %s for %d bytes", errors.ErrMemory, AllocName, ptr, size)
	}
	return ptr, nil
}

func (c *Contract) Address() codec.Address {
	return c.address
}

// Storage returns the page cache the contract's storage imports go through.
func (c *Contract) Storage() *storage.Cache {
	return c.storage
}

func (c *Contract) RemainingPoints() uint64 {
	return c.exec.RemainingPoints()
}

func (c *Contract) ConsumedPoints() uint64 {
	return c.exec.ConsumedPoints()
}

func (c *Contract) Exhausted() bool {
	return c.exec.Exhausted()
}

func (c *Contract) MeteringLimit() uint64 {
	return c.exec.MeteringLimit()
}

// Close releases the sandbox instance. The backing store is owned by the
// caller and stays open.
func (c *Contract) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.exec.Close()
}
