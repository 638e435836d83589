// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import "github.com/ava-labs/avalanchego/utils/units"

// WasmPageSize is the size of one page of linear memory.
const WasmPageSize = 64 * units.KiB

// ResourceLimits defines constraints for WebAssembly contracts
type ResourceLimits struct {
	// Maximum size of contract bytecode in bytes
	MaxContractSize uint32 `json:"maxContractSize"`

	// Maximum number of functions in a module
	MaxFunctions uint32 `json:"maxFunctions"`

	// Maximum number of imports in a module
	MaxImports uint32 `json:"maxImports"`

	// Maximum number of exports in a module
	MaxExports uint32 `json:"maxExports"`

	// Maximum number of globals in a module
	MaxGlobals uint32 `json:"maxGlobals"`

	// Maximum memory pages (64KB per page), both initial and after growth
	MaxMemoryPages uint32 `json:"maxMemoryPages"`

	// Maximum table size
	MaxTableSize uint32 `json:"maxTableSize"`
}

// DefaultResourceLimits returns resource limits with safe default values
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxContractSize: 1 * units.MiB, // 1MB
		MaxFunctions:    1000,          // 1K functions
		MaxImports:      100,           // 100 imports
		MaxExports:      100,           // 100 exports
		MaxGlobals:      100,           // 100 globals
		MaxMemoryPages:  16,            // 1MB (64KB * 16)
		MaxTableSize:    10000,         // 10K table entries
	}
}
