// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/bytecodealliance/wasmtime-go/v25"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

const tracerName = "github.com/zarbchain/tanour/x/contracts/runtime"

type WasmRuntime struct {
	log    logging.Logger
	engine *wasmtime.Engine
	cfg    *Config

	contractCache cache.Cacher[string, *compiledModule]

	imports *importSet
	metrics *metrics
	tracer  trace.Tracer
}

type compiledModule struct {
	module *wasmtime.Module
	size   int
}

func NewRuntime(
	cfg *Config,
	log logging.Logger,
) (*WasmRuntime, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if log == nil {
		log = logging.NoLog{}
	}
	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	hostImports := newImportSet()
	hostImports.addModule(newStorageModule(cfg.HostModule))

	return &WasmRuntime{
		log:    log,
		cfg:    cfg,
		engine: wasmtime.NewEngineWithConfig(cfg.wasmConfig()),
		contractCache: cache.NewSizedLRU(cfg.ContractCacheSize, func(id string, mod *compiledModule) int {
			return len(id) + mod.size
		}),
		imports: hostImports,
		metrics: m,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Compile turns [code] into a module whose linear memory may never exceed
// [memoryLimitPages]. Zero selects the configured maximum. Compiled modules
// are cached by code hash, but the limits are checked on every call since
// they may differ between contracts sharing the same code.
func (r *WasmRuntime) Compile(code []byte, memoryLimitPages uint32) (*wasmtime.Module, error) {
	mod, err := r.compile(code, memoryLimitPages)
	if err != nil {
		r.metrics.compileErrors.Inc()
		return nil, fmt.Errorf("%w: %w", errors.ErrCompile, err)
	}
	return mod, nil
}

func (r *WasmRuntime) compile(code []byte, memoryLimitPages uint32) (*wasmtime.Module, error) {
	if memoryLimitPages == 0 {
		memoryLimitPages = r.cfg.Limits.MaxMemoryPages
	}
	if memoryLimitPages > r.cfg.Limits.MaxMemoryPages {
		return nil, NewValidationError(
			fmt.Sprintf("memory limit %d exceeds maximum allowed %d pages", memoryLimitPages, r.cfg.Limits.MaxMemoryPages),
			"memory-limit",
			ErrResourceLimitExceeded,
		)
	}
	// Validate contract size
	if uint32(len(code)) > r.cfg.Limits.MaxContractSize {
		return nil, NewValidationError(
			fmt.Sprintf("contract size %d exceeds maximum allowed size %d", len(code), r.cfg.Limits.MaxContractSize),
			"contract-size",
			ErrResourceLimitExceeded,
		)
	}

	mod, err := r.getModule(code)
	if err != nil {
		return nil, err
	}
	if err := r.validateModule(mod, memoryLimitPages); err != nil {
		return nil, err
	}
	if r.cfg.Validator != nil {
		if err := r.cfg.Validator.ValidateModule(mod); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

func (r *WasmRuntime) getModule(code []byte) (*wasmtime.Module, error) {
	hash := blake2b.Sum256(code)
	id := string(hash[:])
	// Check cache first
	if mod, ok := r.contractCache.Get(id); ok {
		r.metrics.moduleHits.Inc()
		return mod.module, nil
	}
	r.metrics.moduleMisses.Inc()

	mod, err := wasmtime.NewModule(r.engine, code)
	if err != nil {
		return nil, NewValidationError("failed to create module", "", err)
	}
	r.contractCache.Put(id, &compiledModule{
		module: mod,
		size:   len(code),
	})
	r.log.Debug("compiled module",
		zap.Binary("hash", hash[:]),
		zap.Int("size", len(code)),
	)
	return mod, nil
}

// validateModule checks if a WebAssembly module respects resource limits
func (r *WasmRuntime) validateModule(mod *wasmtime.Module, memoryLimitPages uint32) error {
	limits := r.cfg.Limits
	var (
		funcCount   uint32
		globalCount uint32
		memoryCount int
	)

	imports := mod.Imports()
	for _, imp := range imports {
		ty := imp.Type()
		switch {
		case ty.MemoryType() != nil:
			return NewValidationError(
				fmt.Sprintf("memory imported from %s", imp.Module()),
				"imported-memory",
				ErrInvalidModule,
			)
		case ty.FuncType() != nil:
			funcCount++
		case ty.GlobalType() != nil:
			globalCount++
		}
	}

	exports := mod.Exports()
	for _, exp := range exports {
		ty := exp.Type()
		switch {
		case ty.MemoryType() != nil:
			memoryCount++
			if err := checkMemoryType(exp.Name(), ty.MemoryType(), memoryLimitPages); err != nil {
				return err
			}
		case ty.TableType() != nil:
			if min := ty.TableType().Minimum(); min > limits.MaxTableSize {
				return NewValidationError(
					fmt.Sprintf("table %s size %d exceeds maximum allowed %d", exp.Name(), min, limits.MaxTableSize),
					"table-size",
					ErrResourceLimitExceeded,
				)
			}
		case ty.FuncType() != nil:
			funcCount++
		case ty.GlobalType() != nil:
			globalCount++
		}
	}

	if memoryCount != 1 {
		return NewValidationError(
			fmt.Sprintf("module exports %d memories, expected exactly one", memoryCount),
			"memory-export",
			ErrInvalidModule,
		)
	}

	// Validate function count
	if funcCount > limits.MaxFunctions {
		return NewValidationError(
			fmt.Sprintf("function count %d exceeds maximum allowed %d", funcCount, limits.MaxFunctions),
			"function-count",
			ErrResourceLimitExceeded,
		)
	}

	// Validate global count
	if globalCount > limits.MaxGlobals {
		return NewValidationError(
			fmt.Sprintf("global count %d exceeds maximum allowed %d", globalCount, limits.MaxGlobals),
			"global-count",
			ErrResourceLimitExceeded,
		)
	}

	// Validate import count
	if uint32(len(imports)) > limits.MaxImports {
		return NewValidationError(
			fmt.Sprintf("import count %d exceeds maximum allowed %d", len(imports), limits.MaxImports),
			"import-count",
			ErrResourceLimitExceeded,
		)
	}

	// Validate export count
	if uint32(len(exports)) > limits.MaxExports {
		return NewValidationError(
			fmt.Sprintf("export count %d exceeds maximum allowed %d", len(exports), limits.MaxExports),
			"export-count",
			ErrResourceLimitExceeded,
		)
	}

	return nil
}

func checkMemoryType(name string, ty *wasmtime.MemoryType, limitPages uint32) error {
	if min := ty.Minimum(); min > uint64(limitPages) {
		return NewValidationError(
			fmt.Sprintf("memory %s minimum %d pages exceeds limit %d", name, min, limitPages),
			"memory-pages",
			ErrResourceLimitExceeded,
		)
	}
	if present, max := ty.Maximum(); present && max > uint64(limitPages) {
		return NewValidationError(
			fmt.Sprintf("memory %s maximum %d pages exceeds limit %d", name, max, limitPages),
			"memory-pages",
			ErrResourceLimitExceeded,
		)
	}
	return nil
}

// instantiate creates a store bounded by [memoryLimitPages] and fueled with
// [meteringLimit] points, and links [mod] against the host imports bound to
// [env].
func (r *WasmRuntime) instantiate(
	mod *wasmtime.Module,
	memoryLimitPages uint32,
	meteringLimit uint64,
	env *hostEnv,
) (*wasmtime.Store, *wasmtime.Instance, error) {
	if memoryLimitPages == 0 {
		memoryLimitPages = r.cfg.Limits.MaxMemoryPages
	}
	store := wasmtime.NewStore(r.engine)
	store.Limiter(
		int64(memoryLimitPages)*WasmPageSize,
		int64(r.cfg.Limits.MaxTableSize),
		1, // instances
		1, // tables
		1, // memories
	)
	if err := store.SetFuel(meteringLimit); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("%w: failed to set fuel: %w", errors.ErrInstantiation, err)
	}

	linker, err := r.imports.createLinker(r.engine, env)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("%w: %w", errors.ErrInstantiation, err)
	}
	inst, err := linker.Instantiate(store, mod)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("%w: %w", errors.ErrInstantiation, err)
	}
	return store, inst, nil
}
