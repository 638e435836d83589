// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validators

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"golang.org/x/exp/slices"

	"github.com/zarbchain/tanour/x/contracts/runtime"
)

var _ runtime.ModuleValidator = (*DefaultValidator)(nil)

// DefaultValidator checks that a module follows the contract calling
// convention and only imports the host functions.
type DefaultValidator struct {
	hostModule  string
	rules       []runtime.SecurityRule
	customRules []runtime.SecurityRule
}

type Option func(*DefaultValidator)

// WithHostModule sets the namespace imports must come from.
func WithHostModule(name string) Option {
	return func(v *DefaultValidator) {
		v.hostModule = name
	}
}

// WithRule adds a rule run after the default ones.
func WithRule(rule runtime.SecurityRule) Option {
	return func(v *DefaultValidator) {
		v.AddCustomRule(rule)
	}
}

func NewDefaultValidator(opts ...Option) *DefaultValidator {
	v := &DefaultValidator{
		hostModule: runtime.DefaultHostModule,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.rules = defaultSecurityRules(v.hostModule)
	return v
}

// ValidateModule implements runtime.ModuleValidator
func (v *DefaultValidator) ValidateModule(mod *wasmtime.Module) error {
	if err := v.ValidateSecurityRules(mod, v.rules); err != nil {
		return err
	}
	return v.ValidateSecurityRules(mod, v.customRules)
}

func (v *DefaultValidator) ValidateSecurityRules(mod *wasmtime.Module, rules []runtime.SecurityRule) error {
	for _, rule := range rules {
		var err error
		switch rule.Type {
		case runtime.RuleTypeImport:
			err = validateImports(mod, rule)
		case runtime.RuleTypeFloatingPoint, runtime.RuleTypeInstruction:
			err = validateValueTypes(mod, rule)
		case runtime.RuleTypeMemory:
			err = validateMemoryOperations(mod, rule)
		case runtime.RuleTypeCustom:
			if rule.Validator != nil {
				if err := rule.Validator(mod); err != nil {
					return runtime.NewValidationError("custom validation failed", rule.Name, err)
				}
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// AddCustomRule adds a custom security rule to the validator
func (v *DefaultValidator) AddCustomRule(rule runtime.SecurityRule) {
	v.customRules = append(v.customRules, rule)
}

// CustomRules returns the current set of custom security rules
func (v *DefaultValidator) CustomRules() []runtime.SecurityRule {
	return v.customRules
}

func defaultSecurityRules(hostModule string) []runtime.SecurityRule {
	return []runtime.SecurityRule{
		{
			Type: runtime.RuleTypeImport,
			Name: "host-imports",
			AllowList: []string{
				hostModule + "::" + runtime.ReadStorageName,
				hostModule + "::" + runtime.WriteStorageName,
				hostModule + "::" + runtime.GetParamName,
			},
		},
		{
			Type:      runtime.RuleTypeCustom,
			Name:      "calling-convention",
			Validator: validateCallingConvention,
		},
		{
			Type: runtime.RuleTypeInstruction,
			Name: "reference-types",
			DenyList: []string{
				"externref",
				"funcref",
			},
		},
	}
}

// validateImports requires every import to be one of the allowed host
// functions, each taking three i32 arguments and returning an i32 status.
func validateImports(mod *wasmtime.Module, rule runtime.SecurityRule) error {
	for _, imp := range mod.Imports() {
		importName := ""
		if name := imp.Name(); name != nil {
			importName = *name
		}
		qualified := imp.Module() + "::" + importName
		if !slices.Contains(rule.AllowList, qualified) {
			return runtime.NewValidationError(
				fmt.Sprintf("import %s is not a host function", qualified),
				rule.Name,
				runtime.ErrSecurityRuleViolation,
			)
		}
		ft := imp.Type().FuncType()
		if ft == nil || !kindsAre(ft.Params(), wasmtime.KindI32, wasmtime.KindI32, wasmtime.KindI32) || !kindsAre(ft.Results(), wasmtime.KindI32) {
			return runtime.NewValidationError(
				fmt.Sprintf("import %s has the wrong signature", qualified),
				rule.Name,
				runtime.ErrInvalidModule,
			)
		}
	}
	return nil
}

// validateCallingConvention checks the signatures of the exports the host
// calls: allocate and deallocate must exist, and every entry point present
// takes one pointer and returns one pointer.
func validateCallingConvention(mod *wasmtime.Module) error {
	exports := map[string]*wasmtime.FuncType{}
	for _, exp := range mod.Exports() {
		if ft := exp.Type().FuncType(); ft != nil {
			exports[exp.Name()] = ft
		}
	}

	alloc, ok := exports[runtime.AllocName]
	if !ok {
		return fmt.Errorf("%w: missing export %s", runtime.ErrInvalidModule, runtime.AllocName)
	}
	if !kindsAre(alloc.Params(), wasmtime.KindI32) || !isPointer(alloc.Results()) {
		return fmt.Errorf("%w: %s must be (i32) -> i32|i64", runtime.ErrInvalidModule, runtime.AllocName)
	}

	dealloc, ok := exports[runtime.DeallocName]
	if !ok {
		return fmt.Errorf("%w: missing export %s", runtime.ErrInvalidModule, runtime.DeallocName)
	}
	if !isPointer(dealloc.Params()) || len(dealloc.Results()) != 0 {
		return fmt.Errorf("%w: %s must be (i32|i64) -> ()", runtime.ErrInvalidModule, runtime.DeallocName)
	}

	for _, kind := range []runtime.CallKind{runtime.CallInstantiate, runtime.CallProcess, runtime.CallQuery} {
		ft, ok := exports[string(kind)]
		if !ok {
			continue
		}
		if !isPointer(ft.Params()) || !isPointer(ft.Results()) {
			return fmt.Errorf("%w: %s must be (i32|i64) -> i32|i64", runtime.ErrInvalidModule, kind)
		}
	}
	return nil
}

func isPointer(types []*wasmtime.ValType) bool {
	return kindsAre(types, wasmtime.KindI64) || kindsAre(types, wasmtime.KindI32)
}

func kindsAre(types []*wasmtime.ValType, kinds ...wasmtime.ValKind) bool {
	if len(types) != len(kinds) {
		return false
	}
	for i, ty := range types {
		if ty.Kind() != kinds[i] {
			return false
		}
	}
	return true
}

// validateValueTypes rejects imports and exports whose types use a denied
// value type: function signatures, table elements and global contents.
// Tables and globals that are neither imported nor exported are not visible
// through the module type.
func validateValueTypes(mod *wasmtime.Module, rule runtime.SecurityRule) error {
	for _, exp := range mod.Exports() {
		if err := validateTypes(externValTypes(exp.Type()), rule); err != nil {
			return runtime.NewValidationError(
				fmt.Sprintf("invalid type in export %s", exp.Name()),
				rule.Name,
				err,
			)
		}
	}
	for _, imp := range mod.Imports() {
		if err := validateTypes(externValTypes(imp.Type()), rule); err != nil {
			return runtime.NewValidationError(
				fmt.Sprintf("invalid type in import from %s", imp.Module()),
				rule.Name,
				err,
			)
		}
	}
	return nil
}

func externValTypes(et *wasmtime.ExternType) []*wasmtime.ValType {
	if ft := et.FuncType(); ft != nil {
		return append(ft.Params(), ft.Results()...)
	}
	if tt := et.TableType(); tt != nil {
		return []*wasmtime.ValType{tt.Element()}
	}
	if gt := et.GlobalType(); gt != nil {
		return []*wasmtime.ValType{gt.Content()}
	}
	return nil
}

func validateTypes(types []*wasmtime.ValType, rule runtime.SecurityRule) error {
	for _, ty := range types {
		if err := validateType(ty.Kind(), rule); err != nil {
			return err
		}
	}
	return nil
}

// validateType checks if a WebAssembly type is allowed by the security rule
func validateType(kind wasmtime.ValKind, rule runtime.SecurityRule) error {
	// If there's no deny list, everything is allowed
	if len(rule.DenyList) == 0 {
		return nil
	}

	var typeName string
	switch kind {
	case wasmtime.KindI32:
		typeName = "i32"
	case wasmtime.KindI64:
		typeName = "i64"
	case wasmtime.KindF32:
		typeName = "f32"
	case wasmtime.KindF64:
		typeName = "f64"
	case wasmtime.KindExternref:
		typeName = "externref"
	case wasmtime.KindFuncref:
		typeName = "funcref"
	}

	if slices.Contains(rule.DenyList, typeName) {
		return fmt.Errorf("%w: type %s is not allowed", runtime.ErrSecurityRuleViolation, typeName)
	}
	return nil
}

// validateMemoryOperations requires a declared maximum when memory.grow is
// denied.
func validateMemoryOperations(mod *wasmtime.Module, rule runtime.SecurityRule) error {
	if !slices.Contains(rule.DenyList, "memory.grow") {
		return nil
	}
	for _, exp := range mod.Exports() {
		memType := exp.Type().MemoryType()
		if memType == nil {
			continue
		}
		present, max := memType.Maximum()
		if !present || max != memType.Minimum() {
			return runtime.NewValidationError(
				"memory growth not allowed",
				rule.Name,
				runtime.ErrSecurityRuleViolation,
			)
		}
	}
	return nil
}
