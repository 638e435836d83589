// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v25"

	"github.com/zarbchain/tanour/x/contracts/runtime"
)

// Common security rules that can be added to the default validator

// WithDeterministicFloatingPoint rejects modules whose imports or exports
// carry floating point values.
func WithDeterministicFloatingPoint() Option {
	return WithRule(runtime.SecurityRule{
		Type: runtime.RuleTypeFloatingPoint,
		Name: "no-float",
		DenyList: []string{
			"f32", "f64",
		},
	})
}

// WithFixedMemory rejects modules whose memory can grow.
func WithFixedMemory() Option {
	return WithRule(runtime.SecurityRule{
		Type: runtime.RuleTypeMemory,
		Name: "fixed-memory",
		DenyList: []string{
			"memory.grow",
		},
	})
}

// WithCustomMemoryLimits rejects modules declaring more than [maxPages]
// pages, initially or at their maximum.
func WithCustomMemoryLimits(maxPages uint32) Option {
	return WithRule(runtime.SecurityRule{
		Type: runtime.RuleTypeCustom,
		Name: "custom-memory-limits",
		Validator: func(mod *wasmtime.Module) error {
			for _, exp := range mod.Exports() {
				memType := exp.Type().MemoryType()
				if memType == nil {
					continue
				}
				if min := memType.Minimum(); min > uint64(maxPages) {
					return fmt.Errorf("%w: minimum memory pages %d exceeds limit %d", runtime.ErrResourceLimitExceeded, min, maxPages)
				}
				if ok, max := memType.Maximum(); ok && max > uint64(maxPages) {
					return fmt.Errorf("%w: maximum memory pages %d exceeds limit %d", runtime.ErrResourceLimitExceeded, max, maxPages)
				}
			}
			return nil
		},
	})
}
