// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"
	"math"

	"github.com/near/borsh-go"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

// RegionSize is the size of an encoded Region record.
const RegionSize = 12

// Pointer locates a buffer in linear memory. On the wire it is packed into a
// single word: the high 32 bits hold the length, the low 32 bits the offset.
type Pointer struct {
	Offset uint32
	Length uint32
}

func PackPointer(offset uint32, length uint32) uint64 {
	return uint64(length)<<32 | uint64(offset)
}

func UnpackPointer(packed uint64) Pointer {
	return Pointer{
		Offset: uint32(packed),
		Length: uint32(packed >> 32),
	}
}

func (p Pointer) Packed() uint64 {
	return PackPointer(p.Offset, p.Length)
}

func (p Pointer) String() string {
	return fmt.Sprintf("{offset: %d, length: %d}", p.Offset, p.Length)
}

// Region is a buffer descriptor written into linear memory by the guest.
// Capacity is the allocated size and Length the used part of it.
type Region struct {
	Offset   uint32
	Capacity uint32
	Length   uint32
}

// Validate performs plausibility checks. Regions come from the guest and
// are never trusted before this passes.
func (r Region) Validate() error {
	if r.Offset == 0 {
		return fmt.Errorf("%w: offset is zero: %+v", errors.ErrInvalidRegion, r)
	}
	if r.Length > r.Capacity {
		return fmt.Errorf("%w: length exceeds capacity: %+v", errors.ErrInvalidRegion, r)
	}
	if uint64(r.Offset)+uint64(r.Capacity) > math.MaxUint32 {
		return fmt.Errorf("%w: out of range: %+v", errors.ErrInvalidRegion, r)
	}
	return nil
}

func (r Region) Bytes() []byte {
	// a struct of three u32 cannot fail to encode
	b, _ := borsh.Serialize(r)
	return b
}

func parseRegion(b []byte) (Region, error) {
	var r Region
	if len(b) != RegionSize {
		return r, fmt.Errorf("%w: region record has %d bytes", errors.ErrInvalidRegion, len(b))
	}
	if err := borsh.Deserialize(&r, b); err != nil {
		return r, fmt.Errorf("%w: %w", errors.ErrInvalidRegion, err)
	}
	return r, nil
}
