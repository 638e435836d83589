// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

// Page is one cached, fixed-size slice of the logical storage space.
type Page struct {
	// Offset is the logical offset of the first byte of the page.
	Offset uint64
	Length uint32
	Data   []byte
	// Dirty is set when Data holds bytes not yet written to the backing store.
	Dirty bool
}

func newPage(pageNo uint32, pageSize uint32, data []byte) *Page {
	return &Page{
		Offset: uint64(pageNo) * uint64(pageSize),
		Length: pageSize,
		Data:   data,
	}
}
