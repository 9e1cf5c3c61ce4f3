package blocktracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ziggly-wallet/internal/rpc"
	"ziggly-wallet/pkg/errno"
)

type fakeLister struct {
	txs   []rpc.Transaction
	err   error
	calls int
	addr  string
}

func (f *fakeLister) AccountTransactions(_ context.Context, addr string, _ uint64, _ int) ([]rpc.Transaction, error) {
	f.calls++
	f.addr = addr
	return f.txs, f.err
}

func TestFetchSources(t *testing.T) {
	cases := []struct {
		name   string
		txs    []rpc.Transaction
		height uint64
		source string
	}{
		{"height", []rpc.Transaction{{Hash: "0x1", BlockHeight: 4_211_000, TimestampMillis: 1_700_000_000_000}}, 4_211_000, SourceBlockHeight},
		{"timestamp only", []rpc.Transaction{{Hash: "0x2", TimestampMillis: 1_700_000_000_500}}, 1_700_000_000, SourceTimestamp},
		{"no fields", []rpc.Transaction{{Hash: "0x3"}}, 0, SourceNone},
		{"no transactions", nil, 0, SourceNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := &fakeLister{txs: tc.txs}
			lb, err := New(chain, nil, "", 0).Fetch(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.height, lb.Height)
			assert.Equal(t, tc.source, lb.Source)
			assert.Equal(t, DefaultAccount, chain.addr)
		})
	}
}

func TestLatestUsesCache(t *testing.T) {
	chain := &fakeLister{txs: []rpc.Transaction{{BlockHeight: 10}}}
	tr := New(chain, nil, "", time.Minute)

	lb, err := tr.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), lb.Height)

	chain.txs = []rpc.Transaction{{BlockHeight: 11}}
	lb, err = tr.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(10), lb.Height)
	assert.Equal(t, 1, chain.calls)
}

func TestLatestPropagatesError(t *testing.T) {
	chain := &fakeLister{err: rpc.ErrUnreachable}
	_, err := New(chain, nil, "", 0).Latest(context.Background())
	assert.True(t, errors.Is(err, rpc.ErrUnreachable))
	assert.ErrorIs(t, err, errno.ErrLatestBlockFailed)
}
