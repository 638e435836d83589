// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/bytecodealliance/wasmtime-go/v25"
	"go.uber.org/zap"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/errors"
	"github.com/zarbchain/tanour/x/contracts/storage"
)

const (
	ReadStorageName  = "read_storage"
	WriteStorageName = "write_storage"
	GetParamName     = "get_param"
)

// Parameter ids understood by get_param.
const (
	// ParamBlockNumber writes the current block number as a little endian
	// u32 at ptr.
	ParamBlockNumber uint32 = 1
	// ParamExists reads an address at ptr and returns 1 if it exists on
	// chain, 0 otherwise.
	ParamExists uint32 = 2
)

// ParamProvider answers contextual queries made through get_param.
type ParamProvider interface {
	Exists(ctx context.Context, address codec.Address) (bool, error)
	CurrentBlockNumber(ctx context.Context) (uint32, error)
}

// hostEnv is the per instance state the host functions close over. It is
// only touched while the owning Executor holds its lock.
type hostEnv struct {
	log     logging.Logger
	storage *storage.Cache
	params  ParamProvider

	ctx    context.Context
	active bool
	// err is the first error raised by a host function during the current
	// guest call.
	err error
}

func (e *hostEnv) begin(ctx context.Context) {
	e.ctx = ctx
	e.active = true
	e.err = nil
}

func (e *hostEnv) end() error {
	err := e.err
	e.ctx = nil
	e.active = false
	e.err = nil
	return err
}

func (e *hostEnv) fail(name string, err error) *wasmtime.Trap {
	if e.err == nil {
		e.err = err
	}
	e.log.Debug("host function failed",
		zap.String("function", name),
		zap.Error(err),
	)
	return wasmtime.NewTrap(fmt.Sprintf("%s: %s", name, err))
}

// hostFunction is a guest callable function taking three i32 arguments and
// returning an i32 status.
type hostFunction func(env *hostEnv, mem *Memory, a, b, c uint32) (uint32, error)

type importModule struct {
	name      string
	functions map[string]hostFunction
}

type importSet struct {
	modules map[string]*importModule
}

func newImportSet() *importSet {
	return &importSet{
		modules: map[string]*importModule{},
	}
}

func (i *importSet) addModule(mod *importModule) {
	i.modules[mod.name] = mod
}

// newStorageModule returns the import module exposing storage and
// parameter access under [name].
func newStorageModule(name string) *importModule {
	return &importModule{
		name: name,
		functions: map[string]hostFunction{
			ReadStorageName:  readStorage,
			WriteStorageName: writeStorage,
			GetParamName:     getParam,
		},
	}
}

func (i *importSet) createLinker(engine *wasmtime.Engine, env *hostEnv) (*wasmtime.Linker, error) {
	linker := wasmtime.NewLinker(engine)
	for moduleName, module := range i.modules {
		for funcName, fn := range module.functions {
			if err := linker.FuncWrap(moduleName, funcName, wrap(env, funcName, fn)); err != nil {
				return nil, err
			}
		}
	}
	return linker, nil
}

func wrap(env *hostEnv, name string, fn hostFunction) func(*wasmtime.Caller, int32, int32, int32) (int32, *wasmtime.Trap) {
	return func(caller *wasmtime.Caller, a, b, c int32) (int32, *wasmtime.Trap) {
		if !env.active {
			return 0, env.fail(name, fmt.Errorf("%w: host function called outside of a guest call", errors.ErrRuntime))
		}
		export := caller.GetExport(MemoryName)
		if export == nil || export.Memory() == nil {
			return 0, env.fail(name, fmt.Errorf("%w: memory %s not found", errors.ErrMemory, MemoryName))
		}
		status, err := fn(env, NewMemory(export.Memory(), caller), uint32(a), uint32(b), uint32(c))
		if err != nil {
			return 0, env.fail(name, err)
		}
		return int32(status), nil
	}
}

func readStorage(env *hostEnv, mem *Memory, offset, ptr, length uint32) (uint32, error) {
	if env.storage == nil {
		return 0, fmt.Errorf("%w: no storage attached", errors.ErrStorageRead)
	}
	data, err := env.storage.Read(offset, length)
	if err != nil {
		return 0, err
	}
	if err := mem.Write(ptr, data); err != nil {
		return 0, err
	}
	return 0, nil
}

func writeStorage(env *hostEnv, mem *Memory, offset, ptr, length uint32) (uint32, error) {
	if env.storage == nil {
		return 0, fmt.Errorf("%w: no storage attached", errors.ErrStorageWrite)
	}
	data, err := mem.Read(ptr, length)
	if err != nil {
		return 0, err
	}
	if err := env.storage.Write(offset, data); err != nil {
		return 0, err
	}
	return 0, nil
}

func getParam(env *hostEnv, mem *Memory, id, ptr, length uint32) (uint32, error) {
	if env.params == nil {
		return 0, fmt.Errorf("%w: no parameter provider", errors.ErrParamUnsupported)
	}
	switch id {
	case ParamBlockNumber:
		if length < 4 {
			return 0, fmt.Errorf("%w: buffer of %d bytes too small for block number", errors.ErrMemory, length)
		}
		no, err := env.params.CurrentBlockNumber(env.ctx)
		if err != nil {
			return 0, err
		}
		return 0, mem.Write(ptr, binary.LittleEndian.AppendUint32(nil, no))
	case ParamExists:
		b, err := mem.Read(ptr, length)
		if err != nil {
			return 0, err
		}
		address, err := codec.ToAddress(b)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", errors.ErrMemory, err)
		}
		exists, err := env.params.Exists(env.ctx, address)
		if err != nil {
			return 0, err
		}
		if exists {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %d", errors.ErrParamUnsupported, id)
	}
}
