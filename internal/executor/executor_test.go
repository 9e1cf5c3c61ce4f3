package executor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ziggly-wallet/internal/balance"
	"ziggly-wallet/internal/payload"
	"ziggly-wallet/internal/provider"
	"ziggly-wallet/internal/session"
	"ziggly-wallet/pkg/errno"
)

const (
	sender   = "0x00000000000000000000000000000000000000000000000000000000000000aa"
	pumpCA   = "0xc2896ec7a6ad3ac8a50626db9b832a142647ff065af6b30a089f64627c0c4a2b"
	preCoin  = "0x8bcb::PREZIGGLY::PREZIGGLY"
	mainCoin = "0x8bcb::ZIGGLY::ZIGGLY"
)

type fakeSession struct {
	state  session.State
	handle provider.Provider
}

func (f *fakeSession) Snapshot() session.State { return f.state }

func (f *fakeSession) Handle() (provider.Provider, bool) { return f.handle, f.handle != nil }

type fakeSeq struct {
	mu    sync.Mutex
	next  uint64
	step  uint64
	err   error
	calls int
}

func (f *fakeSeq) SequenceNumber(context.Context, string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	v := f.next
	f.next += f.step
	return v, nil
}

type fakeBalances struct {
	mu    sync.Mutex
	snap  balance.Snapshot
	err   error
	calls int
}

func (f *fakeBalances) Fetch(context.Context, string) (balance.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snap, f.err
}

type fakeWallet struct {
	mu        sync.Mutex
	tuples    []payload.Tuple
	raw       *provider.RawTransactionData
	createErr error
	sendErr   error
	hash      string
	sends     int
	sendDelay time.Duration

	inflight    int32
	maxInflight int32
}

func (f *fakeWallet) Connect(context.Context) error                          { return nil }
func (f *fakeWallet) Disconnect(context.Context) error                       { return nil }
func (f *fakeWallet) Account(context.Context) ([]string, error)              { return []string{sender}, nil }
func (f *fakeWallet) ChangeNetwork(context.Context, provider.ChainInfo) error { return nil }
func (f *fakeWallet) Events() <-chan provider.Event                          { return nil }

func (f *fakeWallet) GetChainID(context.Context) (provider.ChainInfo, error) {
	return provider.ChainInfo{ChainID: "8"}, nil
}

func (f *fakeWallet) CreateRawTransactionData(_ context.Context, t payload.Tuple) (*provider.RawTransactionData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tuples = append(f.tuples, t)
	return f.raw, f.createErr
}

func (f *fakeWallet) SendTransaction(context.Context, provider.RawTransactionData) (string, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	for {
		m := atomic.LoadInt32(&f.maxInflight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInflight, m, n) {
			break
		}
	}
	time.Sleep(f.sendDelay)
	atomic.AddInt32(&f.inflight, -1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	return f.hash, f.sendErr
}

func (f *fakeWallet) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tuples)
}

func (f *fakeWallet) sequences() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, 0, len(f.tuples))
	for _, t := range f.tuples {
		out = append(out, t.SequenceNumber)
	}
	return out
}

// countingPolicy 记录调用次数, 返回固定的 minimum
type countingPolicy struct {
	calls   int32
	minimum decimal.Decimal
	err     error
}

func (p *countingPolicy) MinimumReceived(context.Context, payload.Kind, decimal.Decimal) (decimal.Decimal, error) {
	atomic.AddInt32(&p.calls, 1)
	return p.minimum, p.err
}

type fixture struct {
	session  *fakeSession
	seq      *fakeSeq
	balances *fakeBalances
	wallet   *fakeWallet
	exec     *Executor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	wallet := &fakeWallet{raw: &provider.RawTransactionData{RawTransaction: "0xraw"}, hash: "0xhash", sendDelay: 2 * time.Millisecond}
	f := &fixture{
		session: &fakeSession{
			state:  session.State{Accounts: []string{sender}, Network: &provider.ChainInfo{ChainID: "8"}},
			handle: wallet,
		},
		seq: &fakeSeq{next: 5, step: 1},
		balances: &fakeBalances{snap: balance.Snapshot{Tokens: []balance.TokenBalance{
			{TokenName: "SUPRA", Balance: decimal.NewFromInt(100)},
			{TokenName: "PREZIGGLY", Balance: decimal.NewFromInt(50_000)},
		}}},
		wallet: wallet,
	}

	buy, sell := payload.PumpRoutes(pumpCA, "pump", preCoin, mainCoin, 6)
	builder := payload.NewBuilder(map[payload.Kind]payload.Route{
		payload.KindBuy:      buy,
		payload.KindSell:     sell,
		payload.KindTransfer: payload.TransferRoute(),
	}, payload.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }))

	f.exec = New(f.session, f.seq, f.balances, builder, nil, Config{
		RequiredChainID: "8",
		ExplorerURL:     "https://suprascan.io/",
		NativeSymbol:    "SUPRA",
		TradeToken:      "PREZIGGLY",
	})
	f.exec.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return f
}

func buyIntent(amount int64) payload.Intent {
	return payload.Intent{Kind: payload.KindBuy, Amount: decimal.NewFromInt(amount), MinimumReceived: decimal.NewFromInt(1)}
}

func (f *fixture) assertNoNetwork(t *testing.T) {
	t.Helper()
	assert.Equal(t, 0, f.seq.calls, "sequence fetched")
	assert.Equal(t, 0, f.balances.calls, "balance fetched")
	assert.Equal(t, 0, f.wallet.createCalls(), "provider called")
}

func TestExecuteBuySuccess(t *testing.T) {
	f := newFixture(t)

	res, err := f.exec.Execute(context.Background(), buyIntent(10))
	require.NoError(t, err)

	assert.Equal(t, "0xhash", res.TxID)
	assert.Equal(t, "https://suprascan.io/tx/0xhash", res.ExplorerURL)
	assert.Equal(t, uint64(5), res.SequenceNumber)
	assert.Equal(t, 1, f.seq.calls)
	assert.Equal(t, 1, f.balances.calls)

	require.Equal(t, 1, f.wallet.createCalls())
	tuple := f.wallet.tuples[0]
	assert.Equal(t, sender, tuple.Sender)
	assert.Equal(t, uint64(5), tuple.SequenceNumber)
	assert.Equal(t, "buy", tuple.FunctionName)
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(tuple.Args[0]))
	assert.Equal(t, 1, f.wallet.sends)
}

func TestExecuteWrongNetworkMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	f.session.state.Network = &provider.ChainInfo{ChainID: "6"}

	_, err := f.exec.Execute(context.Background(), buyIntent(10))
	assert.ErrorIs(t, err, errno.ErrUnsupportedNetwork)
	f.assertNoNetwork(t)

	f.session.state.Network = nil
	_, err = f.exec.Execute(context.Background(), buyIntent(10))
	assert.ErrorIs(t, err, errno.ErrUnsupportedNetwork)
}

func TestExecuteNotConnected(t *testing.T) {
	f := newFixture(t)
	f.session.state = session.State{}

	_, err := f.exec.Execute(context.Background(), buyIntent(10))
	assert.ErrorIs(t, err, errno.ErrNotConnected)
	f.assertNoNetwork(t)
}

func TestExecuteSenderMustBeActiveAccount(t *testing.T) {
	f := newFixture(t)
	intent := buyIntent(1)
	intent.Sender = "0xbb"

	_, err := f.exec.Execute(context.Background(), intent)
	assert.ErrorIs(t, err, errno.ErrNotConnected)

	intent.Sender = "0xAA" // 同一地址的短写法
	_, err = f.exec.Execute(context.Background(), intent)
	assert.NoError(t, err)
}

func TestExecuteProviderUnavailable(t *testing.T) {
	f := newFixture(t)
	f.session.handle = nil

	_, err := f.exec.Execute(context.Background(), buyIntent(10))
	assert.ErrorIs(t, err, errno.ErrProviderUnavailable)
	f.assertNoNetwork(t)
}

func TestExecuteInvalidAmountMakesNoCalls(t *testing.T) {
	for _, amt := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5), decimal.RequireFromString("0.000000001")} {
		f := newFixture(t)
		_, err := f.exec.Execute(context.Background(), payload.Intent{Kind: payload.KindBuy, Amount: amt})
		assert.ErrorIs(t, err, errno.ErrInvalidAmount, amt.String())
		f.assertNoNetwork(t)
	}
}

func TestExecuteInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	_, err := f.exec.Execute(context.Background(), buyIntent(101))
	assert.ErrorIs(t, err, errno.ErrInsufficientBalance)
	assert.Equal(t, 0, f.seq.calls)

	// sell 检查的是 token 余额
	f = newFixture(t)
	_, err = f.exec.Execute(context.Background(), payload.Intent{Kind: payload.KindSell, Amount: decimal.NewFromInt(60_000)})
	assert.ErrorIs(t, err, errno.ErrInsufficientBalance)

	f = newFixture(t)
	_, err = f.exec.Execute(context.Background(), payload.Intent{Kind: payload.KindSell, Amount: decimal.NewFromInt(40_000)})
	assert.NoError(t, err)
}

func TestExecuteBalanceFetchFailed(t *testing.T) {
	f := newFixture(t)
	f.balances.err = errors.New("connection refused")

	_, err := f.exec.Execute(context.Background(), buyIntent(1))
	assert.ErrorIs(t, err, errno.ErrBalanceFetchFailed)
	assert.Equal(t, 0, f.seq.calls)
}

func TestExecuteSequenceFetchFailed(t *testing.T) {
	f := newFixture(t)
	f.seq.err = errors.New("rpc down")

	_, err := f.exec.Execute(context.Background(), buyIntent(1))
	assert.ErrorIs(t, err, errno.ErrSequenceFetchFailed)
	assert.Equal(t, 0, f.wallet.createCalls(), "never falls back to sequence 0")
}

func TestExecuteRejectsStaleSequence(t *testing.T) {
	f := newFixture(t)
	f.seq.step = 0 // 链上还没包含上一笔

	res, err := f.exec.Execute(context.Background(), buyIntent(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.SequenceNumber)

	_, err = f.exec.Execute(context.Background(), buyIntent(1))
	assert.ErrorIs(t, err, errno.ErrSequenceFetchFailed)
	assert.Equal(t, 1, f.wallet.createCalls())

	// 上一笔过期后同一个 sequence 可以再用
	f.exec.now = func() time.Time { return time.Unix(1_700_000_031, 0) }
	res, err = f.exec.Execute(context.Background(), buyIntent(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.SequenceNumber)
}

func TestExecuteSequencesNeverRepeat(t *testing.T) {
	f := newFixture(t)
	seen := map[uint64]bool{}
	for i := 0; i < 3; i++ {
		res, err := f.exec.Execute(context.Background(), buyIntent(1))
		require.NoError(t, err)
		assert.False(t, seen[res.SequenceNumber])
		seen[res.SequenceNumber] = true
	}
}

func TestExecuteProviderFailures(t *testing.T) {
	rejected := &provider.RPCError{Code: provider.CodeUserRejected, Message: "User rejected"}

	cases := []struct {
		name  string
		setup func(w *fakeWallet)
		want  error
	}{
		{"nil raw", func(w *fakeWallet) { w.raw = nil }, errno.ErrTransactionBuildFailed},
		{"empty raw", func(w *fakeWallet) { w.raw = &provider.RawTransactionData{} }, errno.ErrTransactionBuildFailed},
		{"create error", func(w *fakeWallet) { w.createErr = errors.New("bad payload") }, errno.ErrTransactionBuildFailed},
		{"create rejected", func(w *fakeWallet) { w.createErr = rejected }, errno.ErrTransactionRejected},
		{"send rejected", func(w *fakeWallet) {
			w.sendErr = &provider.RPCError{Code: -32603, Message: "user cancelled"}
		}, errno.ErrTransactionRejected},
		{"send request canceled", func(w *fakeWallet) { w.sendErr = fmt.Errorf("bridge: %w", context.Canceled) }, errno.ErrBroadcastFailed},
		{"send failed", func(w *fakeWallet) { w.sendErr = errors.New("mempool full") }, errno.ErrBroadcastFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f.wallet)
			before := f.session.state

			_, err := f.exec.Execute(context.Background(), buyIntent(1))
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, f.session.state, "session untouched")
		})
	}
}

func TestExecuteFallsBackToRawTransactionID(t *testing.T) {
	f := newFixture(t)
	f.wallet.hash = ""

	res, err := f.exec.Execute(context.Background(), buyIntent(1))
	require.NoError(t, err)
	assert.Equal(t, "0xraw", res.TxID)
	assert.Equal(t, "https://suprascan.io/tx/0xraw", res.ExplorerURL)
}

func TestExecuteTransfer(t *testing.T) {
	f := newFixture(t)
	res, err := f.exec.Execute(context.Background(), payload.Intent{
		Kind:      payload.KindTransfer,
		Amount:    decimal.RequireFromString("2.5"),
		Recipient: "0x1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "transfer", res.Payload.FunctionName)
	assert.Equal(t, uint64(250_000_000), binary.LittleEndian.Uint64(res.Payload.Args[1]))

	f = newFixture(t)
	_, err = f.exec.Execute(context.Background(), payload.Intent{
		Kind:      payload.KindTransfer,
		Amount:    decimal.NewFromInt(1),
		Recipient: "zz",
	})
	assert.ErrorIs(t, err, errno.ErrInvalidAddress)
	f.assertNoNetwork(t)
}

func TestExecuteSerializesSameSender(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	results := make(chan uint64, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.exec.Execute(context.Background(), buyIntent(1))
			if assert.NoError(t, err) {
				results <- res.SequenceNumber
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[uint64]bool{}
	for seq := range results {
		assert.False(t, seen[seq], "sequence %d reused", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, 5)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.wallet.maxInflight))
}

func TestExecuteLockExpiryDoesNotReuseSequence(t *testing.T) {
	f := newFixture(t)
	f.exec.cfg.LockTTL = 50 * time.Millisecond
	f.wallet.sendDelay = 200 * time.Millisecond
	f.seq.step = 0 // 链上还没确认, sequence 一直是 5

	firstErr := make(chan error, 1)
	go func() {
		_, err := f.exec.Execute(context.Background(), buyIntent(1))
		firstErr <- err
	}()

	// 第一笔还在等钱包, 分布式锁已经过期
	time.Sleep(80 * time.Millisecond)
	_, err := f.exec.Execute(context.Background(), buyIntent(1))

	require.NoError(t, <-firstErr)
	assert.ErrorIs(t, err, errno.ErrSequenceFetchFailed)
	assert.Equal(t, []uint64{5}, f.wallet.sequences())
}

func TestReserveBlocksInFlightSequence(t *testing.T) {
	f := newFixture(t)
	past := time.Unix(1_600_000_000, 0)

	undo, err := f.exec.reserve("k", 5, past)
	require.NoError(t, err)

	// 钱包还没返回, 即使过期时间已过也不能复用
	_, err = f.exec.reserve("k", 5, past)
	assert.ErrorIs(t, err, errno.ErrSequenceFetchFailed)

	undo()
	_, err = f.exec.reserve("k", 5, past)
	assert.NoError(t, err)
}

func TestExecuteRejectedReleasesSequence(t *testing.T) {
	f := newFixture(t)
	f.seq.step = 0
	f.wallet.sendErr = &provider.RPCError{Code: provider.CodeUserRejected, Message: "User rejected"}

	_, err := f.exec.Execute(context.Background(), buyIntent(1))
	require.ErrorIs(t, err, errno.ErrTransactionRejected)

	f.wallet.sendErr = nil
	res, err := f.exec.Execute(context.Background(), buyIntent(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.SequenceNumber)
}

func TestExecuteAppliesPolicyAfterPreconditions(t *testing.T) {
	f := newFixture(t)
	policy := &countingPolicy{minimum: decimal.NewFromInt(2000)}
	intent := payload.Intent{Kind: payload.KindBuy, Amount: decimal.NewFromInt(1), Policy: policy}

	res, err := f.exec.Execute(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&policy.calls))
	assert.True(t, res.MinimumReceived.Equal(decimal.NewFromInt(2000)))
	// 2000 个 token, 6 位精度
	assert.Equal(t, uint64(2_000_000_000), binary.LittleEndian.Uint64(res.Payload.Args[1]))

	f = newFixture(t)
	f.session.state.Network = &provider.ChainInfo{ChainID: "6"}
	policy = &countingPolicy{minimum: decimal.NewFromInt(1)}
	_, err = f.exec.Execute(context.Background(), payload.Intent{Kind: payload.KindBuy, Amount: decimal.NewFromInt(1), Policy: policy})
	assert.ErrorIs(t, err, errno.ErrUnsupportedNetwork)
	assert.Equal(t, int32(0), atomic.LoadInt32(&policy.calls))
	f.assertNoNetwork(t)

	f = newFixture(t)
	policy = &countingPolicy{err: errors.New("rpc: endpoint unreachable")}
	_, err = f.exec.Execute(context.Background(), payload.Intent{Kind: payload.KindBuy, Amount: decimal.NewFromInt(1), Policy: policy})
	assert.ErrorContains(t, err, "compute minimum received")
	assert.Equal(t, 0, f.seq.calls)
	assert.Equal(t, 0, f.wallet.createCalls())
}

func TestExplorerLink(t *testing.T) {
	assert.Equal(t, "https://suprascan.io/tx/abc", ExplorerLink("", "abc"))
	assert.Equal(t, "https://testnet.suprascan.io/tx/abc", ExplorerLink("https://testnet.suprascan.io/", "abc"))
}
