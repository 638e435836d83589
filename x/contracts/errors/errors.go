// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package errors

import "errors"

var (
	ErrCompile       = errors.New("compile error")
	ErrInstantiation = errors.New("instantiation error")
	ErrRuntime       = errors.New("runtime error")
	// ErrOutOfPoints is reported together with ErrRuntime when a call stops
	// because the metering counter reached zero.
	ErrOutOfPoints      = errors.New("metering points exhausted")
	ErrMemory           = errors.New("memory access violation")
	ErrInvalidRegion    = errors.New("invalid region")
	ErrSerialization    = errors.New("serialization error")
	ErrStorageRead      = errors.New("storage read error")
	ErrStorageWrite     = errors.New("storage write error")
	ErrIO               = errors.New("io error")
	ErrParamUnsupported = errors.New("unsupported param")
)
