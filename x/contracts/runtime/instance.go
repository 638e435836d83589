// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/bytecodealliance/wasmtime-go/v25"
	"go.uber.org/zap"

	"github.com/zarbchain/tanour/x/contracts/errors"
	"github.com/zarbchain/tanour/x/contracts/storage"
)

const (
	// The name of the memory export
	MemoryName = "memory"
)

var errClosed = stderrors.New("executor closed")

// ExecutorParams configures one sandbox instance.
type ExecutorParams struct {
	// MemoryLimitPages caps the linear memory. Zero selects the configured
	// maximum.
	MemoryLimitPages uint32
	// MeteringLimit is the number of points available over the lifetime of
	// the instance. Zero selects the configured default.
	MeteringLimit uint64
	Storage       *storage.Cache
	Params        ParamProvider
}

// Executor owns one instantiated sandbox. Calls are serialized: at most one
// guest call runs against the instance at a time, and the metering counter
// carries over from one call to the next.
type Executor struct {
	lock sync.Mutex

	log    logging.Logger
	store  *wasmtime.Store
	inst   *wasmtime.Instance
	memory *Memory
	env    *hostEnv
	limit  uint64
	// final holds the remaining points once the store is closed.
	final uint64
}

// NewExecutor compiles [code] and instantiates it.
func (r *WasmRuntime) NewExecutor(code []byte, params ExecutorParams) (*Executor, error) {
	mod, err := r.Compile(code, params.MemoryLimitPages)
	if err != nil {
		return nil, err
	}

	limit := params.MeteringLimit
	if limit == 0 {
		limit = r.cfg.MeteringLimit
	}
	env := &hostEnv{
		log:     r.log,
		storage: params.Storage,
		params:  params.Params,
	}
	store, inst, err := r.instantiate(mod, params.MemoryLimitPages, limit, env)
	if err != nil {
		return nil, err
	}

	export := inst.GetExport(store, MemoryName)
	if export == nil || export.Memory() == nil {
		store.Close()
		return nil, fmt.Errorf("%w: memory %s not found", errors.ErrInstantiation, MemoryName)
	}
	return &Executor{
		log:    r.log,
		store:  store,
		inst:   inst,
		memory: NewMemory(export.Memory(), store),
		env:    env,
		limit:  limit,
	}, nil
}

// CallFn0 calls [name] with one argument and no result.
func (e *Executor) CallFn0(ctx context.Context, name string, arg uint64) error {
	_, err := e.call(ctx, name, arg, false)
	return err
}

// CallFn1 calls [name] with one 64 bit argument and one result.
func (e *Executor) CallFn1(ctx context.Context, name string, arg uint64) (uint64, error) {
	return e.call(ctx, name, arg, true)
}

// CallFn2 calls [name] with one 32 bit argument and one result.
func (e *Executor) CallFn2(ctx context.Context, name string, arg uint32) (uint64, error) {
	return e.call(ctx, name, uint64(arg), true)
}

// HasExport reports whether the instance exports a function called [name].
func (e *Executor) HasExport(name string) bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.store != nil && e.inst.GetFunc(e.store, name) != nil
}

// call invokes [name]. Arguments are truncated to the low 32 bits for an i32
// parameter and i32 results are zero extended, so a packed pointer can be
// passed to a guest that only takes offsets.
func (e *Executor) call(ctx context.Context, name string, arg uint64, hasResult bool) (uint64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.store == nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrRuntime, errClosed)
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrRuntime, err)
	}
	if e.exhausted() {
		return 0, fmt.Errorf("%w: %w", errors.ErrRuntime, errors.ErrOutOfPoints)
	}

	fn := e.inst.GetFunc(e.store, name)
	if fn == nil {
		return 0, fmt.Errorf("%w: function %s does not exist", errors.ErrRuntime, name)
	}
	in, err := checkSignature(fn.Type(e.store), arg, hasResult)
	if err != nil {
		return 0, fmt.Errorf("%w: function %s: %w", errors.ErrRuntime, name, err)
	}

	e.env.begin(ctx)
	out, err := fn.Call(e.store, in)
	hostErr := e.env.end()
	if err != nil {
		switch {
		case e.exhausted():
			e.log.Debug("metering points exhausted",
				zap.String("function", name),
				zap.Uint64("limit", e.limit),
			)
			return 0, fmt.Errorf("%w: %w", errors.ErrRuntime, errors.ErrOutOfPoints)
		case hostErr != nil:
			return 0, fmt.Errorf("%w: function %s: %w", errors.ErrRuntime, name, hostErr)
		default:
			return 0, fmt.Errorf("%w: function %s: %w", errors.ErrRuntime, name, err)
		}
	}
	if !hasResult {
		return 0, nil
	}
	switch v := out.(type) {
	case int64:
		return uint64(v), nil
	case int32:
		return uint64(uint32(v)), nil
	default:
		return 0, fmt.Errorf("%w: function %s returned %T", errors.ErrRuntime, name, out)
	}
}

func checkSignature(ty *wasmtime.FuncType, arg uint64, hasResult bool) (interface{}, error) {
	params := ty.Params()
	if len(params) != 1 {
		return nil, fmt.Errorf("expected 1 parameter, found %d", len(params))
	}
	var in interface{}
	switch params[0].Kind() {
	case wasmtime.KindI64:
		in = int64(arg)
	case wasmtime.KindI32:
		in = int32(uint32(arg))
	default:
		return nil, fmt.Errorf("unsupported parameter type %v", params[0].Kind())
	}

	results := ty.Results()
	if !hasResult {
		if len(results) != 0 {
			return nil, fmt.Errorf("expected no result, found %d", len(results))
		}
		return in, nil
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("expected 1 result, found %d", len(results))
	}
	if kind := results[0].Kind(); kind != wasmtime.KindI64 && kind != wasmtime.KindI32 {
		return nil, fmt.Errorf("unsupported result type %v", kind)
	}
	return in, nil
}

// WritePtr copies [data] into the buffer described by [ptr].
func (e *Executor) WritePtr(ptr Pointer, data []byte) error {
	if uint64(len(data)) > uint64(ptr.Length) {
		return fmt.Errorf("%w: %d bytes do not fit in %s", errors.ErrMemory, len(data), ptr)
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	if e.store == nil {
		return fmt.Errorf("%w: %w", errors.ErrMemory, errClosed)
	}
	return e.memory.Write(ptr.Offset, data)
}

// ReadPtr copies the buffer described by [ptr] out of linear memory.
func (e *Executor) ReadPtr(ptr Pointer) ([]byte, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.store == nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMemory, errClosed)
	}
	return e.memory.Read(ptr.Offset, ptr.Length)
}

// ReadRegion returns the data of the Region record at [ptr].
func (e *Executor) ReadRegion(ptr uint32) ([]byte, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.store == nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMemory, errClosed)
	}
	return e.memory.ReadRegionData(ptr)
}

// WriteRegion fills the Region record at [ptr] with [data].
func (e *Executor) WriteRegion(ptr uint32, data []byte) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.store == nil {
		return fmt.Errorf("%w: %w", errors.ErrMemory, errClosed)
	}
	return e.memory.WriteRegionData(ptr, data)
}

// MemorySize returns the current size of linear memory in bytes.
func (e *Executor) MemorySize() uint64 {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.store == nil {
		return 0
	}
	return e.memory.Size()
}

// RemainingPoints returns the points left on the metering counter.
func (e *Executor) RemainingPoints() uint64 {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.remaining()
}

// ConsumedPoints returns the points used since the instance was created.
func (e *Executor) ConsumedPoints() uint64 {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.limit - e.remaining()
}

// Exhausted reports whether the metering counter reached zero. Once it has,
// every further call fails without running guest code.
func (e *Executor) Exhausted() bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.exhausted()
}

func (e *Executor) MeteringLimit() uint64 {
	return e.limit
}

func (e *Executor) remaining() uint64 {
	if e.store == nil {
		return e.final
	}
	// only errors if fuel isn't enabled, which it always is
	remaining, err := e.store.GetFuel()
	if err != nil {
		return 0
	}
	return remaining
}

func (e *Executor) exhausted() bool {
	return e.remaining() == 0
}

// Close releases the instance.
func (e *Executor) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.store != nil {
		e.final = e.remaining()
		e.store.Close()
		e.store = nil
	}
}
