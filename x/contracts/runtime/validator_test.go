// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		rule     string
		err      error
		expected string
	}{
		{
			name:    "error with underlying cause",
			message: "validation failed",
			rule:    "test-rule",
			err:     ErrInvalidModule,
			expected: "validation failed for rule test-rule: validation failed: invalid module",
		},
		{
			name:    "error without cause",
			message: "validation failed",
			rule:    "test-rule",
			err:     nil,
			expected: "validation failed for rule test-rule: validation failed",
		},
		{
			name:    "error without rule",
			message: "validation failed",
			rule:    "",
			err:     ErrInvalidModule,
			expected: "validation error: validation failed: invalid module",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.message, tt.rule, tt.err)
			require.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationErrorUnwrap(t *testing.T) {
	require := require.New(t)

	err := NewValidationError("memory pages", "memory-pages", ErrResourceLimitExceeded)
	require.ErrorIs(err, ErrResourceLimitExceeded)

	var valErr *ValidationError
	require.ErrorAs(err, &valErr)
	require.Equal("memory-pages", valErr.Rule)
}

func TestValidatorFunc(t *testing.T) {
	wat := `(module
		(memory (export "memory") 1)
		(func (export "test") (result f32)
			f32.const 1
			f32.const 2
			f32.add
		)
	)`

	engine := wasmtime.NewEngine()
	wasm, err := wasmtime.Wat2Wasm(wat)
	require.NoError(t, err)

	mod, err := wasmtime.NewModule(engine, wasm)
	require.NoError(t, err)

	tests := []struct {
		name      string
		validator ValidatorFunc
		wantErr   bool
	}{
		{
			name: "accepting validator",
			validator: func(*wasmtime.Module) error {
				return nil
			},
		},
		{
			name: "rejecting validator",
			validator: func(mod *wasmtime.Module) error {
				for _, exp := range mod.Exports() {
					if ft := exp.Type().FuncType(); ft != nil && len(ft.Results()) > 0 && ft.Results()[0].Kind() == wasmtime.KindF32 {
						return ErrInvalidModule
					}
				}
				return nil
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v ModuleValidator = tt.validator
			err := v.ValidateModule(mod)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidModule)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
