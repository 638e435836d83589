// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/near/borsh-go"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/errors"
)

const (
	HeaderSize = 128
	// Magic marks the first two bytes of every storage file.
	Magic          uint16 = 0x7374
	FileVersion    uint8  = 1
	DefaultPageSize       = units.MiB

	headerReserved = 80
)

var _ BackingStore = (*File)(nil)

// Header is the fixed 128 byte record at the start of a storage file. Its
// borsh encoding is the on-disk layout.
type Header struct {
	Magic      uint16
	Version    uint8
	Owner      codec.Address
	CreatedAt  uint32
	ValidUntil uint32
	CodeOffset uint32
	CodeLength uint32
	DataOffset uint32
	// zero in files that predate the field
	PageSize   uint32
	Reserved   [headerReserved]byte
}

func (h *Header) Bytes() ([]byte, error) {
	b, err := borsh.Serialize(*h)
	if err != nil {
		return nil, err
	}
	if len(b) != HeaderSize {
		return nil, fmt.Errorf("%w: header encodes to %d bytes", errors.ErrSerialization, len(b))
	}
	return b, nil
}

func parseHeader(b []byte) (Header, error) {
	var h Header
	if err := borsh.Deserialize(&h, b); err != nil {
		return h, fmt.Errorf("%w: %w", errors.ErrSerialization, err)
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: bad magic %#04x", errors.ErrIO, h.Magic)
	}
	if h.Version != FileVersion {
		return h, fmt.Errorf("%w: unsupported version %d", errors.ErrIO, h.Version)
	}
	return h, nil
}

// HeaderParams are the caller supplied fields of a new storage file.
type HeaderParams struct {
	Owner      codec.Address
	CreatedAt  uint32
	ValidUntil uint32
}

type fileConfig struct {
	pageSize uint32
}

type FileOption func(*fileConfig)

// WithPageSize overrides DefaultPageSize. LoadFile only uses it for files
// whose header does not record a page size.
func WithPageSize(size uint32) FileOption {
	return func(c *fileConfig) {
		c.pageSize = size
	}
}

// File is the file backed BackingStore: a header, the contract bytecode and
// then [pageCount] pages of data.
type File struct {
	f         *os.File
	header    Header
	pageSize  uint32
	pageCount uint32
}

// CreateFile writes a new storage file, header and zeroed data region
// included, in a single write.
func CreateFile(path string, params HeaderParams, code []byte, pageCount uint32, opts ...FileOption) (*File, error) {
	cfg := newFileConfig(opts)

	header := Header{
		Magic:      Magic,
		Version:    FileVersion,
		Owner:      params.Owner,
		CreatedAt:  params.CreatedAt,
		ValidUntil: params.ValidUntil,
		CodeOffset: HeaderSize,
		CodeLength: uint32(len(code)),
		DataOffset: HeaderSize + uint32(len(code)),
		PageSize:   cfg.pageSize,
	}
	headerBytes, err := header.Bytes()
	if err != nil {
		return nil, err
	}

	size := uint64(header.DataOffset) + uint64(pageCount)*uint64(cfg.pageSize)
	buf := make([]byte, size)
	copy(buf, headerBytes)
	copy(buf[header.CodeOffset:], code)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}

	return &File{
		f:         f,
		header:    header,
		pageSize:  cfg.pageSize,
		pageCount: pageCount,
	}, nil
}

// LoadFile re-opens an existing storage file. Only the header is read. The
// page size recorded in the header takes precedence over [WithPageSize].
func LoadFile(path string, opts ...FileOption) (*File, error) {
	cfg := newFileConfig(opts)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: reading header: %w", errors.ErrIO, err)
	}
	header, err := parseHeader(buf)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if header.PageSize != 0 {
		cfg.pageSize = header.PageSize
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", errors.ErrIO, err)
	}
	var pageCount uint32
	if dataSize := info.Size() - int64(header.DataOffset); dataSize > 0 {
		pageCount = uint32(dataSize / int64(cfg.pageSize))
	}

	return &File{
		f:         f,
		header:    header,
		pageSize:  cfg.pageSize,
		pageCount: pageCount,
	}, nil
}

func newFileConfig(opts []FileOption) fileConfig {
	cfg := fileConfig{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (s *File) Header() Header {
	return s.header
}

// Code returns the contract bytecode stored after the header.
func (s *File) Code() ([]byte, error) {
	code := make([]byte, s.header.CodeLength)
	if _, err := s.f.ReadAt(code, int64(s.header.CodeOffset)); err != nil {
		return nil, fmt.Errorf("%w: reading code: %w", errors.ErrIO, err)
	}
	return code, nil
}

func (s *File) PageSize() uint32 {
	return s.pageSize
}

func (s *File) Capacity() uint64 {
	return uint64(s.pageSize) * uint64(s.pageCount)
}

func (s *File) pageOffset(pageNo uint32) (int64, error) {
	if pageNo >= s.pageCount {
		return 0, fmt.Errorf("%w: page %d out of range", errors.ErrIO, pageNo)
	}
	return int64(s.header.DataOffset) + int64(pageNo)*int64(s.pageSize), nil
}

func (s *File) ReadPage(pageNo uint32) ([]byte, error) {
	offset, err := s.pageOffset(pageNo)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, s.pageSize)
	if _, err := s.f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("%w: unable to read whole page %d: %w", errors.ErrIO, pageNo, err)
	}
	return buf, nil
}

func (s *File) WritePage(pageNo uint32, data []byte) error {
	offset, err := s.pageOffset(pageNo)
	if err != nil {
		return err
	}
	if len(data) != int(s.pageSize) {
		return fmt.Errorf("%w: page size mismatch: found=%d, expected=%d", errors.ErrIO, len(data), s.pageSize)
	}
	if _, err := s.f.WriteAt(data, offset); err != nil {
		return fmt.Errorf("%w: writing page %d: %w", errors.ErrIO, pageNo, err)
	}
	return nil
}

func (s *File) Sync() error {
	return s.f.Sync()
}

func (s *File) Close() error {
	return s.f.Close()
}
