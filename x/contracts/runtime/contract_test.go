// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/zarbchain/tanour/codec"
	"github.com/zarbchain/tanour/x/contracts/errors"
	"github.com/zarbchain/tanour/x/contracts/runtime/testutils"
	"github.com/zarbchain/tanour/x/contracts/storage"
)

type mulMsg struct {
	A int32
	B int32
}

type mulRsp struct {
	Value int32
}

type writeMsg struct {
	Offset uint32
	Data   []byte
}

type readMsg struct {
	Offset uint32
	Length uint32
}

type paramMsg struct {
	ID   uint32
	Len  uint32
	Data [codec.AddressLen]byte
}

type paramRsp struct {
	Status uint32
	Value  uint32
}

var testAddress = codec.Address{0x01, 0x02, 0x03}

func newTestContract(t *testing.T, r *WasmRuntime, wat string, info *ContractInfo) *Contract {
	if info == nil {
		info = &ContractInfo{}
	}
	info.Address = testAddress
	info.Code = testutils.Wasm(t, wat)
	if info.Store == nil {
		info.Store = storage.NewMemoryStore(16, 8)
	}
	if info.MeteringLimit == 0 {
		info.MeteringLimit = 100_000
	}
	c, err := r.NewContract(context.Background(), info)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestContractProcess(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	r := newTestRuntime(t, func(cfg *Config) {
		cfg.Registerer = reg
	})
	c := newTestContract(t, r, testutils.MulContract, nil)
	require.Equal(testAddress, c.Address())

	require.NoError(c.Instantiate(ctx, nil, nil))
	afterInstantiate := c.ConsumedPoints()
	require.Positive(afterInstantiate)

	var rsp mulRsp
	require.NoError(c.Process(ctx, mulMsg{A: 2, B: 2}, &rsp))
	require.Equal(mulRsp{Value: 4}, rsp)
	afterFirst := c.ConsumedPoints()
	require.Greater(afterFirst, afterInstantiate)
	require.Equal(c.MeteringLimit(), c.RemainingPoints()+c.ConsumedPoints())

	// the input buffer was handed back to the guest
	freed, err := c.exec.ReadPtr(Pointer{Offset: 8, Length: 4})
	require.NoError(err)
	require.Equal([]byte{0x00, 0x04, 0, 0}, freed)

	require.NoError(c.Process(ctx, mulMsg{A: -3, B: 7}, &rsp))
	require.Equal(mulRsp{Value: -21}, rsp)
	afterSecond := c.ConsumedPoints()
	require.Equal(afterFirst-afterInstantiate, afterSecond-afterFirst)
	require.False(c.Exhausted())

	require.Equal(float64(2), testutil.ToFloat64(r.metrics.calls.WithLabelValues(string(CallProcess), "ok")))
	require.Equal(float64(afterSecond-afterInstantiate), testutil.ToFloat64(r.metrics.consumedPoints.WithLabelValues(string(CallProcess))))
}

func TestContractConcurrentCalls(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	r := newTestRuntime(t, func(cfg *Config) {
		cfg.Registerer = reg
	})
	c := newTestContract(t, r, testutils.MulContract, &ContractInfo{
		MeteringLimit: 100_000_000,
	})

	// a single call's cost, measured on a separate instance
	single := newTestContract(t, newTestRuntime(t), testutils.MulContract, nil)
	require.NoError(single.Process(ctx, mulMsg{A: 1, B: 1000}, &mulRsp{}))
	perCall := single.ConsumedPoints()

	const (
		callers = 8
		calls   = 200
	)
	var g errgroup.Group
	for i := int32(1); i <= callers; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < calls; j++ {
				var rsp mulRsp
				if err := c.Process(ctx, mulMsg{A: i, B: 1000}, &rsp); err != nil {
					return err
				}
				if rsp.Value != i*1000 {
					return fmt.Errorf("caller %d got %d", i, rsp.Value)
				}
			}
			return nil
		})
	}
	require.NoError(g.Wait())

	require.Equal(uint64(callers*calls)*perCall, c.ConsumedPoints())
	require.Equal(float64(callers*calls)*float64(perCall), testutil.ToFloat64(r.metrics.consumedPoints.WithLabelValues(string(CallProcess))))
}

func TestContractFreesInputOnFailure(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	r := newTestRuntime(t)
	c := newTestContract(t, r, testutils.TrapContract, nil)
	require.ErrorIs(c.Process(ctx, mulMsg{A: 1, B: 2}, nil), errors.ErrRuntime)

	freed, err := c.exec.ReadPtr(Pointer{Offset: 8, Length: 4})
	require.NoError(err)
	require.Equal([]byte{0x00, 0x04, 0, 0}, freed)

	// nothing is freed once the points are spent
	c = newTestContract(t, r, testutils.LoopContract, &ContractInfo{
		MeteringLimit: 5_000,
	})
	require.ErrorIs(c.Process(ctx, mulMsg{A: 1, B: 2}, nil), errors.ErrOutOfPoints)
	freed, err = c.exec.ReadPtr(Pointer{Offset: 8, Length: 4})
	require.NoError(err)
	require.Equal([]byte{0, 0, 0, 0}, freed)
}

func TestContractMeteringIsReproducible(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	r := newTestRuntime(t)
	var consumed []uint64
	for i := 0; i < 2; i++ {
		c := newTestContract(t, r, testutils.MulContract, nil)
		require.NoError(c.Instantiate(ctx, nil, nil))
		require.NoError(c.Process(ctx, mulMsg{A: 2, B: 2}, &mulRsp{}))
		consumed = append(consumed, c.ConsumedPoints())
	}
	require.Equal(consumed[0], consumed[1])
}

func TestContractStorage(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	store := storage.NewMemoryStore(16, 8)
	r := newTestRuntime(t)
	c := newTestContract(t, r, testutils.StorageContract, &ContractInfo{
		Store: store,
	})

	// spans pages 0 and 1
	require.NoError(c.Process(ctx, writeMsg{Offset: 14, Data: []byte("hello")}, nil))

	var data []byte
	require.NoError(c.Query(ctx, readMsg{Offset: 14, Length: 5}, &data))
	require.Equal([]byte("hello"), data)

	require.NoError(c.Query(ctx, readMsg{Offset: 100, Length: 3}, &data))
	require.Equal([]byte{0, 0, 0}, data)

	// writes reach the backing store before the call returns
	page, err := store.ReadPage(0)
	require.NoError(err)
	require.Equal([]byte("he"), page[14:])
	page, err = store.ReadPage(1)
	require.NoError(err)
	require.Equal([]byte("llo"), page[:3])

	// the last byte of the capacity is writable, the one after is not
	require.NoError(c.Process(ctx, writeMsg{Offset: 127, Data: []byte{9}}, nil))
	err = c.Process(ctx, writeMsg{Offset: 127, Data: []byte{9, 9}}, nil)
	require.ErrorIs(err, errors.ErrRuntime)
	require.ErrorIs(err, errors.ErrStorageWrite)
	err = c.Query(ctx, readMsg{Offset: 128, Length: 1}, &data)
	require.ErrorIs(err, errors.ErrStorageRead)

	stats := c.Storage().Stats()
	require.Equal(uint64(3), stats.WriteBacks)
}

func TestContractStorageFile(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	path := t.TempDir() + "/contract"
	code := testutils.Wasm(t, testutils.StorageContract)
	file, err := storage.CreateFile(path, storage.HeaderParams{Owner: testAddress}, code, 4, storage.WithPageSize(32))
	require.NoError(err)

	stored, err := file.Code()
	require.NoError(err)

	r := newTestRuntime(t)
	c, err := r.NewContract(ctx, &ContractInfo{
		Address:       testAddress,
		Code:          stored,
		Store:         file,
		MeteringLimit: 100_000,
	})
	require.NoError(err)
	require.NoError(c.Process(ctx, writeMsg{Offset: 30, Data: []byte("zarb")}, nil))
	c.Close()
	require.NoError(file.Close())

	file, err = storage.LoadFile(path, storage.WithPageSize(32))
	require.NoError(err)
	defer file.Close()

	c, err = r.NewContract(ctx, &ContractInfo{
		Address:       testAddress,
		Code:          code,
		Store:         file,
		MeteringLimit: 100_000,
	})
	require.NoError(err)
	defer c.Close()

	var data []byte
	require.NoError(c.Query(ctx, readMsg{Offset: 30, Length: 4}, &data))
	require.Equal([]byte("zarb"), data)
}

func TestContractParams(t *testing.T) {
	chain := testutils.NewMockChain(42)
	known := codec.Address{0xaa}
	chain.AddAddress(known)

	tests := []struct {
		name    string
		params  ParamProvider
		msg     paramMsg
		want    paramRsp
		wantErr error
	}{
		{
			name:   "block number",
			params: chain,
			msg:    paramMsg{ID: ParamBlockNumber, Len: 4},
			want:   paramRsp{Status: 0, Value: 42},
		},
		{
			name:    "block number into a short buffer",
			params:  chain,
			msg:     paramMsg{ID: ParamBlockNumber, Len: 2},
			wantErr: errors.ErrMemory,
		},
		{
			name:   "existing address",
			params: chain,
			msg:    paramMsg{ID: ParamExists, Len: codec.AddressLen, Data: known},
			want:   paramRsp{Status: 1, Value: 0xaa},
		},
		{
			name:   "unknown address",
			params: chain,
			msg:    paramMsg{ID: ParamExists, Len: codec.AddressLen, Data: codec.Address{0xbb}},
			want:   paramRsp{Status: 0, Value: 0xbb},
		},
		{
			name:    "address of the wrong length",
			params:  chain,
			msg:     paramMsg{ID: ParamExists, Len: 20},
			wantErr: errors.ErrMemory,
		},
		{
			name:    "unknown parameter",
			params:  chain,
			msg:     paramMsg{ID: 9, Len: 4},
			wantErr: errors.ErrParamUnsupported,
		},
		{
			name:    "no provider",
			msg:     paramMsg{ID: ParamBlockNumber, Len: 4},
			wantErr: errors.ErrParamUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRuntime(t)
			c := newTestContract(t, r, testutils.ParamContract, &ContractInfo{
				Params: tt.params,
			})

			var rsp paramRsp
			err := c.Query(context.Background(), tt.msg, &rsp)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, errors.ErrRuntime)
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, rsp)
		})
	}
}

func TestContractParamProviderError(t *testing.T) {
	chain := testutils.NewMockChain(1)
	chain.Err = stderrors.New("connection refused")

	r := newTestRuntime(t)
	c := newTestContract(t, r, testutils.ParamContract, &ContractInfo{
		Params: chain,
	})

	err := c.Query(context.Background(), paramMsg{ID: ParamBlockNumber, Len: 4}, &paramRsp{})
	require.ErrorIs(t, err, errors.ErrRuntime)
	require.ErrorIs(t, err, chain.Err)
}

func TestContractExhaustion(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	r := newTestRuntime(t)
	c := newTestContract(t, r, testutils.LoopContract, &ContractInfo{
		MeteringLimit: 5_000,
	})

	require.NoError(c.Instantiate(ctx, nil, nil))
	err := c.Process(ctx, nil, nil)
	require.ErrorIs(err, errors.ErrRuntime)
	require.ErrorIs(err, errors.ErrOutOfPoints)
	require.True(c.Exhausted())
	require.Zero(c.RemainingPoints())
	require.Equal(uint64(5_000), c.ConsumedPoints())

	err = c.Instantiate(ctx, nil, nil)
	require.ErrorIs(err, errors.ErrOutOfPoints)
	require.Equal(uint64(5_000), c.ConsumedPoints())
}

func TestContractMemoryLimit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	r := newTestRuntime(t)
	c := newTestContract(t, r, testutils.GrowContract, &ContractInfo{
		MemoryLimitPages: 16,
	})

	var grown int32
	require.NoError(c.Process(ctx, nil, &grown))
	require.Equal(int32(-1), grown)
	require.Equal(uint64(WasmPageSize), c.exec.MemorySize())
}

func TestContractCallErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		wat     string
		call    func(*Contract) error
		wantErr error
	}{
		{
			name: "trap",
			wat:  testutils.TrapContract,
			call: func(c *Contract) error {
				return c.Process(ctx, nil, nil)
			},
			wantErr: errors.ErrRuntime,
		},
		{
			name: "missing entry point",
			wat:  testutils.MulContract,
			call: func(c *Contract) error {
				return c.Query(ctx, nil, nil)
			},
			wantErr: errors.ErrRuntime,
		},
		{
			name: "output outside memory",
			wat:  testutils.BadOutputContract,
			call: func(c *Contract) error {
				return c.Query(ctx, nil, nil)
			},
			wantErr: errors.ErrMemory,
		},
		{
			name: "null allocation",
			wat:  testutils.NullAllocatorContract,
			call: func(c *Contract) error {
				return c.Process(ctx, mulMsg{}, nil)
			},
			wantErr: errors.ErrMemory,
		},
		{
			name: "truncated response",
			wat:  testutils.MulContract,
			call: func(c *Contract) error {
				var rsp struct {
					A uint64
					B uint64
				}
				return c.Process(ctx, mulMsg{A: 1, B: 1}, &rsp)
			},
			wantErr: errors.ErrSerialization,
		},
		{
			name: "unknown call kind",
			wat:  testutils.MulContract,
			call: func(c *Contract) error {
				_, err := c.CallRaw(ctx, CallKind("migrate"), nil)
				return err
			},
			wantErr: errors.ErrRuntime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRuntime(t)
			c := newTestContract(t, r, tt.wat, nil)
			require.ErrorIs(t, tt.call(c), tt.wantErr)
		})
	}
}

func TestContractOffsetAllocator(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	r := newTestRuntime(t)
	c := newTestContract(t, r, testutils.OffsetAllocatorContract, nil)

	var echo uint32
	require.NoError(c.Process(ctx, uint32(0xdeadbeef), &echo))
	require.Equal(uint32(0xdeadbeef), echo)

	freed, err := c.exec.ReadPtr(Pointer{Offset: 8, Length: 4})
	require.NoError(err)
	require.Equal([]byte{0x00, 0x04, 0, 0}, freed)
}

func TestNewContractErrors(t *testing.T) {
	ctx := context.Background()
	r := newTestRuntime(t)

	tests := []struct {
		name    string
		info    *ContractInfo
		wantErr error
	}{
		{
			name: "no allocator",
			info: &ContractInfo{
				Code:  testutils.Wasm(t, testutils.NoAllocatorContract),
				Store: storage.NewMemoryStore(16, 1),
			},
			wantErr: errors.ErrInstantiation,
		},
		{
			name: "host call outside of a guest call",
			info: &ContractInfo{
				Code:  testutils.Wasm(t, testutils.StartContract),
				Store: storage.NewMemoryStore(16, 1),
			},
			wantErr: errors.ErrInstantiation,
		},
		{
			name: "no backing store",
			info: &ContractInfo{
				Code: testutils.Wasm(t, testutils.MulContract),
			},
			wantErr: errors.ErrInstantiation,
		},
		{
			name: "invalid code",
			info: &ContractInfo{
				Code:  []byte("not wasm"),
				Store: storage.NewMemoryStore(16, 1),
			},
			wantErr: errors.ErrCompile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.NewContract(ctx, tt.info)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
