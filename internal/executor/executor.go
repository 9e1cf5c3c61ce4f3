package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ziggly-wallet/internal/balance"
	"ziggly-wallet/internal/payload"
	"ziggly-wallet/internal/provider"
	"ziggly-wallet/internal/session"
	"ziggly-wallet/pkg/address"
	"ziggly-wallet/pkg/errno"
	"ziggly-wallet/pkg/logger"
	"ziggly-wallet/pkg/monitor"
	"ziggly-wallet/pkg/utils/lock"
)

// SessionView 执行器只读会话, 从不修改
type SessionView interface {
	Snapshot() session.State
	Handle() (provider.Provider, bool)
}

type SequenceSource interface {
	SequenceNumber(ctx context.Context, addr string) (uint64, error)
}

type BalanceSource interface {
	Fetch(ctx context.Context, addr string) (balance.Snapshot, error)
}

type Config struct {
	RequiredChainID string
	ExplorerURL     string
	NativeSymbol    string // buy / transfer 扣除的资产
	TradeToken      string // sell 扣除的资产, 例如 PREZIGGLY
	LockTTL         time.Duration
}

type Result struct {
	TxID            string          `json:"txId"`
	ExplorerURL     string          `json:"explorerUrl"`
	SequenceNumber  uint64          `json:"sequenceNumber"`
	MinimumReceived decimal.Decimal `json:"minimumReceived"`
	Payload         payload.Tuple   `json:"payload"`
}

// 本进程最近一次交给钱包的 sequence number.
// inFlight 期间不论过期时间都视为占用.
type submission struct {
	sequence uint64
	expiry   time.Time
	inFlight bool
}

type Executor struct {
	session  SessionView
	seq      SequenceSource
	balances BalanceSource
	builder  *payload.Builder
	locker   lock.DistributedLock
	cfg      Config
	log      *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	last  map[string]submission
	gates map[string]chan struct{} // 本进程内按发送者串行, 不依赖锁的 TTL
}

func New(sv SessionView, seq SequenceSource, balances BalanceSource, builder *payload.Builder, locker lock.DistributedLock, cfg Config) *Executor {
	if cfg.RequiredChainID == "" {
		cfg.RequiredChainID = "8"
	}
	if cfg.NativeSymbol == "" {
		cfg.NativeSymbol = "SUPRA"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if locker == nil {
		locker = lock.NewMemoryLock()
	}
	return &Executor{
		session:  sv,
		seq:      seq,
		balances: balances,
		builder:  builder,
		locker:   locker,
		cfg:      cfg,
		log:      logger.Named("executor"),
		now:      time.Now,
		last:     make(map[string]submission),
		gates:    make(map[string]chan struct{}),
	}
}

// Execute runs one trade or transfer end to end. Preconditions are checked
// in a fixed order and each failure maps to its own error; nothing touches
// the network until the session, network, provider and amount checks pass.
func (e *Executor) Execute(ctx context.Context, intent payload.Intent) (res Result, err error) {
	start := time.Now()
	defer func() {
		monitor.Business.ObserveTx(string(intent.Kind), outcome(err), start)
	}()

	// 1. 会话
	st := e.session.Snapshot()
	active, ok := st.ActiveAccount()
	if !ok {
		return Result{}, errno.ErrNotConnected
	}
	if intent.Sender == "" {
		intent.Sender = active
	} else if !address.Equal(intent.Sender, active) {
		return Result{}, fmt.Errorf("%w: sender %s is not the active account", errno.ErrNotConnected, intent.Sender)
	}

	// 2. 网络
	if st.ChainID() != e.cfg.RequiredChainID {
		return Result{}, fmt.Errorf("%w: wallet on chain %q", errno.ErrUnsupportedNetwork, st.ChainID())
	}

	// 3. provider
	p, ok := e.session.Handle()
	if !ok {
		return Result{}, errno.ErrProviderUnavailable
	}

	// 4. 金额 (以及收款地址), 用 sequence 0 试构造一次
	if !intent.Amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: %s must be greater than zero", errno.ErrInvalidAmount, intent.Amount)
	}
	if _, err := e.builder.Build(intent, 0); err != nil {
		return Result{}, err
	}

	// 5. minimum received, 前置检查全部通过后才允许策略访问链上价格
	if intent.Policy != nil && intent.Kind != payload.KindTransfer {
		minimum, err := intent.Policy.MinimumReceived(ctx, intent.Kind, intent.Amount)
		if err != nil {
			return Result{}, fmt.Errorf("compute minimum received: %w", err)
		}
		intent.MinimumReceived = minimum
	}

	// 6. 余额, 每次重新读取
	if err := e.checkBalance(ctx, intent); err != nil {
		return Result{}, err
	}

	// 7. 同一发送者串行: 进程内 gate + 多实例分布式锁
	key := lockKey(intent.Sender)
	leave, err := e.enter(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("acquire sender lock: %w", err)
	}
	defer leave()
	release, err := lock.Obtain(ctx, e.locker, "tx:"+key, e.cfg.LockTTL, 50*time.Millisecond)
	if err != nil {
		return Result{}, fmt.Errorf("acquire sender lock: %w", err)
	}
	defer release()

	// 8. sequence number, 失败直接放弃, 不回退到 0
	seq, err := e.seq.SequenceNumber(ctx, intent.Sender)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", errno.ErrSequenceFetchFailed, err)
	}

	// 9. 构造 payload
	tuple, err := e.builder.Build(intent, seq)
	if err != nil {
		return Result{}, err
	}

	// 10. 交给钱包前先占用 sequence
	undo, err := e.reserve(key, seq, time.Unix(tuple.Options.TxExpiryTime, 0))
	if err != nil {
		return Result{}, err
	}

	// 11. 钱包生成 raw transaction
	raw, err := p.CreateRawTransactionData(ctx, tuple)
	if err != nil {
		undo()
		if provider.IsUserRejection(err) {
			return Result{}, fmt.Errorf("%w: %v", errno.ErrTransactionRejected, err)
		}
		return Result{}, fmt.Errorf("%w: %v", errno.ErrTransactionBuildFailed, err)
	}
	if raw == nil || raw.RawTransaction == "" {
		undo()
		return Result{}, fmt.Errorf("%w: wallet returned no raw transaction", errno.ErrTransactionBuildFailed)
	}

	// 12. 签名并广播
	hash, err := p.SendTransaction(ctx, *raw)
	if err != nil {
		if provider.IsUserRejection(err) {
			undo()
			return Result{}, fmt.Errorf("%w: %v", errno.ErrTransactionRejected, err)
		}
		// 广播结果未知, 保留占用直到过期
		e.settle(key)
		return Result{}, fmt.Errorf("%w: %v", errno.ErrBroadcastFailed, err)
	}
	e.settle(key)

	txID := hash
	if txID == "" {
		// 部分钱包版本 sendTransaction 不返回 hash
		txID = raw.RawTransaction
	}

	e.log.Info("transaction submitted",
		zap.String("kind", string(intent.Kind)),
		zap.String("sender", intent.Sender),
		zap.Uint64("sequence", seq),
		zap.String("tx_id", txID))

	return Result{
		TxID:            txID,
		ExplorerURL:     ExplorerLink(e.cfg.ExplorerURL, txID),
		SequenceNumber:  seq,
		MinimumReceived: intent.MinimumReceived,
		Payload:         tuple,
	}, nil
}

func (e *Executor) checkBalance(ctx context.Context, intent payload.Intent) error {
	snap, err := e.balances.Fetch(ctx, intent.Sender)
	if err != nil {
		if errors.Is(err, errno.ErrBalanceFetchFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", errno.ErrBalanceFetchFailed, err)
	}
	asset := e.cfg.NativeSymbol
	if intent.Kind == payload.KindSell {
		asset = e.cfg.TradeToken
	}
	if have := snap.Balance(asset); have.LessThan(intent.Amount) {
		return fmt.Errorf("%w: need %s %s, have %s", errno.ErrInsufficientBalance, intent.Amount, asset, have)
	}
	return nil
}

// enter 进程内按发送者排队, ctx 结束时放弃
func (e *Executor) enter(ctx context.Context, key string) (func(), error) {
	e.mu.Lock()
	gate, ok := e.gates[key]
	if !ok {
		gate = make(chan struct{}, 1)
		e.gates[key] = gate
	}
	e.mu.Unlock()

	select {
	case gate <- struct{}{}:
		return func() { <-gate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reserve 同一发送者的 sequence 必须比上一笔 (仍可能上链的) 交易大.
// 成功时记录为 in-flight, 返回的 undo 在钱包未收下交易时恢复原记录.
func (e *Executor) reserve(key string, seq uint64, expiry time.Time) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, had := e.last[key]
	if had && seq <= prev.sequence && (prev.inFlight || e.now().Before(prev.expiry)) {
		return nil, fmt.Errorf("%w: sequence %d already used by a pending transaction", errno.ErrSequenceFetchFailed, seq)
	}
	e.last[key] = submission{sequence: seq, expiry: expiry, inFlight: true}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if cur, ok := e.last[key]; ok && cur.sequence == seq && cur.inFlight {
			if had {
				e.last[key] = prev
			} else {
				delete(e.last, key)
			}
		}
	}, nil
}

// settle 钱包已处理, 占用保持到过期时间
func (e *Executor) settle(key string) {
	e.mu.Lock()
	if cur, ok := e.last[key]; ok {
		cur.inFlight = false
		e.last[key] = cur
	}
	e.mu.Unlock()
}

// ExplorerLink <explorer>/tx/<id>
func ExplorerLink(base, txID string) string {
	if base == "" {
		base = "https://suprascan.io"
	}
	return strings.TrimRight(base, "/") + "/tx/" + txID
}

func lockKey(sender string) string {
	if norm, err := address.Normalize(sender); err == nil {
		return norm
	}
	return strings.ToLower(sender)
}

var outcomes = map[int]string{
	errno.ErrNotConnected.Code:           "not_connected",
	errno.ErrUnsupportedNetwork.Code:     "unsupported_network",
	errno.ErrProviderUnavailable.Code:    "provider_unavailable",
	errno.ErrInvalidAmount.Code:          "invalid_amount",
	errno.ErrInvalidAddress.Code:         "invalid_address",
	errno.ErrInsufficientBalance.Code:    "insufficient_balance",
	errno.ErrBalanceFetchFailed.Code:     "balance_fetch_failed",
	errno.ErrSequenceFetchFailed.Code:    "sequence_fetch_failed",
	errno.ErrTransactionBuildFailed.Code: "build_failed",
	errno.ErrTransactionRejected.Code:    "rejected",
	errno.ErrBroadcastFailed.Code:        "broadcast_failed",
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	code, _ := errno.Decode(err)
	if label, ok := outcomes[code]; ok {
		return label
	}
	return "error"
}
