// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package testutils

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go/v25"
)

// Text format contracts used across the runtime tests. They share a bump
// allocator whose heap starts at 1024. deallocate stores the offset it was
// given at address 8 so tests can check the round trip freed the input.
// Responses are written at 512.

const allocator = `
  (global $heap (mut i32) (i32.const 1024))
  (func (export "allocate") (param $size i32) (result i64)
    (local $ptr i32)
    (local.set $ptr (global.get $heap))
    (global.set $heap (i32.add (global.get $heap) (local.get $size)))
    (i64.or
      (i64.shl (i64.extend_i32_u (local.get $size)) (i64.const 32))
      (i64.extend_i32_u (local.get $ptr))))
  (func (export "deallocate") (param $ptr i64)
    (i32.store (i32.const 8) (i32.wrap_i64 (local.get $ptr))))
  (func (export "instantiate") (param i64) (result i64)
    (i64.const 16))
`

const hostImports = `
  (import "zarb" "read_storage" (func $read_storage (param i32 i32 i32) (result i32)))
  (import "zarb" "write_storage" (func $write_storage (param i32 i32 i32) (result i32)))
  (import "zarb" "get_param" (func $get_param (param i32 i32 i32) (result i32)))
`

// MulContract answers process({a: i32, b: i32}) with {value: a * b}.
const MulContract = `(module
  (memory (export "memory") 1)
` + allocator + `
  (func (export "process") (param $ptr i64) (result i64)
    (local $in i32)
    (local.set $in (i32.wrap_i64 (local.get $ptr)))
    (i32.store (i32.const 512)
      (i32.mul
        (i32.load (local.get $in))
        (i32.load offset=4 (local.get $in))))
    (i64.const 0x400000200))
)`

// StorageContract writes {offset: u32, data: bytes} to storage on process
// and answers query({offset: u32, length: u32}) with the stored bytes.
const StorageContract = `(module
` + hostImports + `
  (memory (export "memory") 1)
` + allocator + `
  (func (export "process") (param $ptr i64) (result i64)
    (local $in i32)
    (local.set $in (i32.wrap_i64 (local.get $ptr)))
    (drop (call $write_storage
      (i32.load (local.get $in))
      (i32.add (local.get $in) (i32.const 8))
      (i32.load offset=4 (local.get $in))))
    (i64.const 16))
  (func (export "query") (param $ptr i64) (result i64)
    (local $in i32)
    (local $len i32)
    (local.set $in (i32.wrap_i64 (local.get $ptr)))
    (local.set $len (i32.load offset=4 (local.get $in)))
    (i32.store (i32.const 512) (local.get $len))
    (drop (call $read_storage
      (i32.load (local.get $in))
      (i32.const 516)
      (local.get $len)))
    (i64.or
      (i64.shl (i64.extend_i32_u (i32.add (local.get $len) (i32.const 4))) (i64.const 32))
      (i64.const 512)))
)`

// ParamContract answers query({id: u32, len: u32, data: [21]u8}) with
// {status: u32, value: u32}, where status is the result of get_param(id,
// &data, len) and value the first four bytes of data afterwards.
const ParamContract = `(module
` + hostImports + `
  (memory (export "memory") 1)
` + allocator + `
  (func (export "query") (param $ptr i64) (result i64)
    (local $in i32)
    (local.set $in (i32.wrap_i64 (local.get $ptr)))
    (i32.store (i32.const 512)
      (call $get_param
        (i32.load (local.get $in))
        (i32.add (local.get $in) (i32.const 8))
        (i32.load offset=4 (local.get $in))))
    (i32.store (i32.const 516) (i32.load offset=8 (local.get $in)))
    (i64.const 0x800000200))
)`

// LoopContract never returns from process.
const LoopContract = `(module
  (memory (export "memory") 1)
` + allocator + `
  (func (export "process") (param i64) (result i64)
    (loop $l (br $l))
    (i64.const 0))
)`

// TrapContract traps in process.
const TrapContract = `(module
  (memory (export "memory") 1)
` + allocator + `
  (func (export "process") (param i64) (result i64)
    unreachable)
)`

// GrowContract tries to grow memory by 100 pages in process and answers
// with the result of memory.grow as an i32.
const GrowContract = `(module
  (memory (export "memory") 1)
` + allocator + `
  (func (export "process") (param i64) (result i64)
    (i32.store (i32.const 512) (memory.grow (i32.const 100)))
    (i64.const 0x400000200))
)`

// BadOutputContract returns a pointer past the end of memory from query.
const BadOutputContract = `(module
  (memory (export "memory") 1)
` + allocator + `
  (func (export "query") (param i64) (result i64)
    (i64.const 0x64000fff0))
)`

// BadSignatureContract exports process with two parameters.
const BadSignatureContract = `(module
  (memory (export "memory") 1)
` + allocator + `
  (func (export "process") (param i32 i32) (result i64)
    (i64.const 0))
)`

// OffsetAllocatorContract uses i32 offsets instead of packed pointers.
// process echoes the first four bytes of its input.
const OffsetAllocatorContract = `(module
  (memory (export "memory") 1)
  (global $heap (mut i32) (i32.const 1024))
  (func (export "allocate") (param $size i32) (result i32)
    (local $ptr i32)
    (local.set $ptr (global.get $heap))
    (global.set $heap (i32.add (global.get $heap) (local.get $size)))
    (local.get $ptr))
  (func (export "deallocate") (param $ptr i32)
    (i32.store (i32.const 8) (local.get $ptr)))
  (func (export "process") (param $ptr i32) (result i64)
    (i64.or
      (i64.const 0x400000000)
      (i64.extend_i32_u (local.get $ptr))))
)`

// NullAllocatorContract returns a null pointer from allocate.
const NullAllocatorContract = `(module
  (memory (export "memory") 1)
  (func (export "allocate") (param i32) (result i64)
    (i64.const 0))
  (func (export "deallocate") (param i64))
  (func (export "process") (param i64) (result i64)
    (i64.const 0))
)`

// NoAllocatorContract lacks the allocation exports.
const NoAllocatorContract = `(module
  (memory (export "memory") 1)
  (func (export "process") (param i64) (result i64)
    (i64.const 0))
)`

// StartContract touches storage from its start function, before any call.
const StartContract = `(module
` + hostImports + `
  (memory (export "memory") 1)
` + allocator + `
  (func $init
    (drop (call $read_storage (i32.const 0) (i32.const 32) (i32.const 4))))
  (start $init)
)`

// Wasm compiles a text format contract, failing the test on error.
func Wasm(t testing.TB, wat string) []byte {
	t.Helper()
	wasm, err := wasmtime.Wat2Wasm(wat)
	if err != nil {
		t.Fatalf("failed to compile contract: %s", err)
	}
	return wasm
}
