// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultHostModule is the import namespace of the host functions.
	DefaultHostModule    = "zarb"
	DefaultMeteringLimit = 10_000_000
)

type Config struct {
	// MeteringLimit is the number of points a contract may consume over its
	// lifetime unless the contract overrides it.
	MeteringLimit uint64 `json:"meteringLimit"`
	// ContractCacheSize bounds the compiled module cache, in bytes of code.
	ContractCacheSize int            `json:"contractCacheSize"`
	MaxWasmStack      int            `json:"maxWasmStack"`
	HostModule        string         `json:"hostModule"`
	Limits            ResourceLimits `json:"limits"`

	// Validator, when set, runs after the built in checks.
	Validator  ModuleValidator       `json:"-"`
	Registerer prometheus.Registerer `json:"-"`
}

func NewConfig() *Config {
	return &Config{
		MeteringLimit:     DefaultMeteringLimit,
		ContractCacheSize: 64 * units.MiB,
		MaxWasmStack:      512 * units.KiB,
		HostModule:        DefaultHostModule,
		Limits:            DefaultResourceLimits(),
	}
}

func (c *Config) wasmConfig() *wasmtime.Config {
	cfg := wasmtime.NewConfig()
	cfg.SetConsumeFuel(true)
	cfg.SetWasmThreads(false)
	cfg.SetWasmMultiMemory(false)
	cfg.SetMaxWasmStack(c.MaxWasmStack)
	return cfg
}
