// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testutils

import "github.com/bytecodealliance/wasmtime-go/v25"

// MockValidator is a module validator whose result is set by the test
type MockValidator struct {
	ValidateFunc func(*wasmtime.Module) error
	Calls        int
}

func NewMockValidator() *MockValidator {
	return &MockValidator{
		ValidateFunc: func(*wasmtime.Module) error { return nil },
	}
}

func (m *MockValidator) ValidateModule(mod *wasmtime.Module) error {
	m.Calls++
	return m.ValidateFunc(mod)
}
