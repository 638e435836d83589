// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"testing"

	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/zarbchain/tanour/x/contracts/errors"
	"github.com/zarbchain/tanour/x/contracts/runtime/testutils"
)

func newTestRuntime(t *testing.T, opts ...func(*Config)) *WasmRuntime {
	cfg := NewConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	r, err := NewRuntime(cfg, logging.NoLog{})
	require.NoError(t, err)
	return r
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name       string
		wat        string
		limitPages uint32
		wantErr    bool
	}{
		{
			name: "valid contract",
			wat:  testutils.MulContract,
		},
		{
			name: "memory at the limit",
			wat: `(module
				(memory (export "memory") 16 16)
			)`,
		},
		{
			name: "initial memory above the limit",
			wat: `(module
				(memory (export "memory") 17)
			)`,
			wantErr: true,
		},
		{
			name: "maximum memory above the limit",
			wat: `(module
				(memory (export "memory") 1 32)
			)`,
			wantErr: true,
		},
		{
			name: "maximum memory above a per contract limit",
			wat: `(module
				(memory (export "memory") 1 4)
			)`,
			limitPages: 2,
			wantErr:    true,
		},
		{
			name: "per contract limit above the configured maximum",
			wat: `(module
				(memory (export "memory") 1)
			)`,
			limitPages: 17,
			wantErr:    true,
		},
		{
			name: "memory not exported",
			wat: `(module
				(memory 1)
			)`,
			wantErr: true,
		},
		{
			name: "no memory",
			wat: `(module
				(func (export "test") nop)
			)`,
			wantErr: true,
		},
		{
			name: "imported memory",
			wat: `(module
				(import "zarb" "memory" (memory 1))
				(memory (export "memory") 1)
			)`,
			wantErr: true,
		},
		{
			name: "too many globals",
			wat: `(module
				(memory (export "memory") 1)
				(global (export "g1") i32 (i32.const 1))
				(global (export "g2") i32 (i32.const 2))
				(global (export "g3") i32 (i32.const 3))
			)`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRuntime(t, func(cfg *Config) {
				cfg.Limits.MaxGlobals = 2
			})
			_, err := r.Compile(testutils.Wasm(t, tt.wat), tt.limitPages)
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrCompile)
				var valErr *ValidationError
				require.ErrorAs(t, err, &valErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestCompileMalformed(t *testing.T) {
	r := newTestRuntime(t)

	_, err := r.Compile([]byte{0x00, 0x61, 0x73, 0x6d, 0xff}, 0)
	require.ErrorIs(t, err, errors.ErrCompile)
}

func TestCompileContractSize(t *testing.T) {
	r := newTestRuntime(t, func(cfg *Config) {
		cfg.Limits.MaxContractSize = 16
	})

	_, err := r.Compile(testutils.Wasm(t, testutils.MulContract), 0)
	require.ErrorIs(t, err, errors.ErrCompile)
	require.ErrorIs(t, err, ErrResourceLimitExceeded)
}

func TestCompileCache(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	r := newTestRuntime(t, func(cfg *Config) {
		cfg.Registerer = reg
	})
	code := testutils.Wasm(t, testutils.MulContract)

	first, err := r.Compile(code, 0)
	require.NoError(err)
	second, err := r.Compile(code, 0)
	require.NoError(err)
	require.Same(first, second)
	require.Equal(float64(1), testutil.ToFloat64(r.metrics.moduleMisses))
	require.Equal(float64(1), testutil.ToFloat64(r.metrics.moduleHits))

	// limits are checked on cached modules too
	_, err = r.Compile(testutils.Wasm(t, `(module (memory (export "memory") 4))`), 0)
	require.NoError(err)
	_, err = r.Compile(testutils.Wasm(t, `(module (memory (export "memory") 4))`), 2)
	require.ErrorIs(err, errors.ErrCompile)
	require.Equal(float64(1), testutil.ToFloat64(r.metrics.compileErrors))
}

func TestCompileValidator(t *testing.T) {
	require := require.New(t)

	validator := testutils.NewMockValidator()
	r := newTestRuntime(t, func(cfg *Config) {
		cfg.Validator = validator
	})
	code := testutils.Wasm(t, testutils.MulContract)

	_, err := r.Compile(code, 0)
	require.NoError(err)
	require.Equal(1, validator.Calls)

	validator.ValidateFunc = func(*wasmtime.Module) error {
		return ErrSecurityRuleViolation
	}
	_, err = r.Compile(code, 0)
	require.ErrorIs(err, errors.ErrCompile)
	require.ErrorIs(err, ErrSecurityRuleViolation)
}

func TestInstantiateUnknownImport(t *testing.T) {
	r := newTestRuntime(t)

	code := testutils.Wasm(t, `(module
		(import "env" "abort" (func))
		(memory (export "memory") 1)
	)`)
	_, err := r.NewExecutor(code, ExecutorParams{})
	require.ErrorIs(t, err, errors.ErrInstantiation)
}

func TestInstantiateImportSignatureMismatch(t *testing.T) {
	r := newTestRuntime(t)

	code := testutils.Wasm(t, `(module
		(import "zarb" "read_storage" (func (param i32) (result i32)))
		(memory (export "memory") 1)
	)`)
	_, err := r.NewExecutor(code, ExecutorParams{})
	require.ErrorIs(t, err, errors.ErrInstantiation)
}

func TestCustomHostModule(t *testing.T) {
	r := newTestRuntime(t, func(cfg *Config) {
		cfg.HostModule = "env"
	})

	_, err := r.NewExecutor(testutils.Wasm(t, testutils.StorageContract), ExecutorParams{})
	require.ErrorIs(t, err, errors.ErrInstantiation)

	exec, err := r.NewExecutor(testutils.Wasm(t, `(module
		(import "env" "read_storage" (func (param i32 i32 i32) (result i32)))
		(memory (export "memory") 1)
	)`), ExecutorParams{})
	require.NoError(t, err)
	exec.Close()
}

func TestStorageModule(t *testing.T) {
	require := require.New(t)

	set := newImportSet()
	set.addModule(newStorageModule("zarb"))
	require.Len(set.modules, 1)

	mod := set.modules["zarb"]
	require.Equal("zarb", mod.name)
	require.Len(mod.functions, 3)
	for _, name := range []string{ReadStorageName, WriteStorageName, GetParamName} {
		require.Contains(mod.functions, name)
	}

	linker, err := set.createLinker(wasmtime.NewEngine(), &hostEnv{log: logging.NoLog{}})
	require.NoError(err)
	require.NotNil(linker)
}
