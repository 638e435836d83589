// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"errors"
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v25"
)

var (
	// ErrInvalidModule indicates that a WebAssembly module is invalid
	ErrInvalidModule = errors.New("invalid module")
	// ErrResourceLimitExceeded indicates that a resource limit was exceeded
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")
	// ErrSecurityRuleViolation indicates that a security rule was violated
	ErrSecurityRuleViolation = errors.New("security rule violation")
)

// ValidationError represents an error that occurs during WebAssembly validation
type ValidationError struct {
	Message string // General error message
	Rule    string // Optional: specific validation rule that failed
	Cause   error  // Optional: underlying error
}

func (e *ValidationError) Error() string {
	if e.Rule != "" {
		if e.Cause != nil {
			return fmt.Sprintf("validation failed for rule %s: %s: %v", e.Rule, e.Message, e.Cause)
		}
		return fmt.Sprintf("validation failed for rule %s: %s", e.Rule, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError with an optional rule name
func NewValidationError(msg string, rule string, err error) error {
	return &ValidationError{
		Message: msg,
		Rule:    rule,
		Cause:   err,
	}
}

// SecurityRuleType defines the type of security rule
type SecurityRuleType string

const (
	// RuleTypeInstruction validates specific WebAssembly instructions
	RuleTypeInstruction SecurityRuleType = "instruction"
	// RuleTypeFloatingPoint validates floating point operations
	RuleTypeFloatingPoint SecurityRuleType = "floating_point"
	// RuleTypeMemory validates memory operations
	RuleTypeMemory SecurityRuleType = "memory"
	// RuleTypeImport validates the host module namespace of imports
	RuleTypeImport SecurityRuleType = "import"
	// RuleTypeCustom allows for custom validation rules
	RuleTypeCustom SecurityRuleType = "custom"
)

// SecurityRule defines a validation rule for WebAssembly modules
type SecurityRule struct {
	// Type of the security rule
	Type SecurityRuleType
	// Name of the rule for identification
	Name string
	// AllowList contains permitted items (e.g., instructions)
	AllowList []string
	// DenyList contains forbidden items
	DenyList []string
	// Custom validation function for complex rules
	Validator func(mod *wasmtime.Module) error
}

// ModuleValidator is run on every compiled module before it is accepted.
// A returned error fails compilation.
type ModuleValidator interface {
	ValidateModule(mod *wasmtime.Module) error
}

// ValidatorFunc adapts a function to ModuleValidator.
type ValidatorFunc func(mod *wasmtime.Module) error

func (f ValidatorFunc) ValidateModule(mod *wasmtime.Module) error {
	return f(mod)
}
