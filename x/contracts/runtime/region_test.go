// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zarbchain/tanour/x/contracts/errors"
)

func TestPointerPacking(t *testing.T) {
	require := require.New(t)

	packed := PackPointer(0x89abcdef, 0x01234567)
	require.Equal(uint64(0x0123456789abcdef), packed)

	ptr := UnpackPointer(0x0123456789abcdef)
	require.Equal(uint32(0x89abcdef), ptr.Offset)
	require.Equal(uint32(0x01234567), ptr.Length)
	require.Equal(packed, ptr.Packed())

	for _, ptr := range []Pointer{
		{},
		{Offset: math.MaxUint32},
		{Length: math.MaxUint32},
		{Offset: math.MaxUint32, Length: math.MaxUint32},
	} {
		require.Equal(ptr, UnpackPointer(ptr.Packed()))
	}
}

func TestRegionValidate(t *testing.T) {
	tests := []struct {
		name    string
		region  Region
		wantErr bool
	}{
		{
			name:   "valid",
			region: Region{Offset: 23, Capacity: 500, Length: 500},
		},
		{
			name:   "empty",
			region: Region{Offset: 23, Capacity: 500},
		},
		{
			name:   "max offset with zero capacity",
			region: Region{Offset: math.MaxUint32},
		},
		{
			name:   "ends at the top of the address space",
			region: Region{Offset: math.MaxUint32 - 10, Capacity: 10, Length: 10},
		},
		{
			name:    "zero offset",
			region:  Region{Offset: 0, Capacity: 500, Length: 10},
			wantErr: true,
		},
		{
			name:    "length exceeds capacity",
			region:  Region{Offset: 23, Capacity: 500, Length: 501},
			wantErr: true,
		},
		{
			name:    "capacity overflows",
			region:  Region{Offset: math.MaxUint32, Capacity: 1},
			wantErr: true,
		},
		{
			name:    "large capacity overflows",
			region:  Region{Offset: 1, Capacity: math.MaxUint32},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.region.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrInvalidRegion)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRegionLayout(t *testing.T) {
	require := require.New(t)

	region := Region{Offset: 0x04030201, Capacity: 0x08070605, Length: 0x0c0b0a09}
	b := region.Bytes()
	require.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, b)

	parsed, err := parseRegion(b)
	require.NoError(err)
	require.Equal(region, parsed)

	_, err = parseRegion(b[:11])
	require.ErrorIs(err, errors.ErrInvalidRegion)
}
