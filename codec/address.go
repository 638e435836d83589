// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// AddressLen is the number of bytes in a contract address.
const AddressLen = 21

var (
	EmptyAddress = Address{}

	ErrInvalidAddressLength = errors.New("invalid address length")
)

// Address identifies a contract instance. It is immutable once assigned and
// is used to locate the backing store of the contract.
type Address [AddressLen]byte

// String returns the hex encoding of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// ToAddress copies b into an Address.
func ToAddress(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return a, fmt.Errorf("%w: found=%d, expected=%d", ErrInvalidAddressLength, len(b), AddressLen)
	}
	copy(a[:], b)
	return a, nil
}

// ParseAddress decodes a hex encoded address.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return EmptyAddress, err
	}
	return ToAddress(b)
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// CreateAddress derives the address of a contract created by [sender] from
// [code] and [salt].
func CreateAddress(sender Address, code []byte, salt []byte) Address {
	h := blake3.New()
	_, _ = h.Write(sender[:])
	_, _ = h.Write(code)
	_, _ = h.Write(salt)

	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// MarshalText encodes the address as hex, which is how it appears in JSON.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
