package balance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ziggly-wallet/internal/rpc"
	"ziggly-wallet/internal/token"
	"ziggly-wallet/pkg/address"
	"ziggly-wallet/pkg/errno"
	"ziggly-wallet/pkg/logger"
	"ziggly-wallet/pkg/monitor"
)

// ChainReader 余额查询依赖的 RPC 能力
type ChainReader interface {
	NativeBalance(ctx context.Context, addr string) (uint64, error)
	CoinBalance(ctx context.Context, addr, coinType string) (uint64, error)
}

type TokenBalance struct {
	TokenName string          `json:"tokenName"`
	CoinType  string          `json:"coinType"`
	Balance   decimal.Decimal `json:"balance"`
	ValueUSD  decimal.Decimal `json:"valueUSD"`
}

// Snapshot 每次查询整体重建, native 在前, 其余按 registry 顺序
type Snapshot struct {
	Address   string         `json:"address"`
	Tokens    []TokenBalance `json:"tokens"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// Balance 按名称查找, 不存在时为 0
func (s Snapshot) Balance(name string) decimal.Decimal {
	for _, t := range s.Tokens {
		if strings.EqualFold(t.TokenName, name) {
			return t.Balance
		}
	}
	return decimal.Zero
}

func (s Snapshot) TotalUSD() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Tokens {
		total = total.Add(t.ValueUSD)
	}
	return total
}

type Reader struct {
	chain    ChainReader
	registry *token.Registry
	log      *zap.Logger
	now      func() time.Time
}

func NewReader(chain ChainReader, registry *token.Registry) *Reader {
	return &Reader{
		chain:    chain,
		registry: registry,
		log:      logger.Named("balance"),
		now:      time.Now,
	}
}

type entry struct {
	name     string
	coinType string
	decimals int32
	price    decimal.Decimal
	native   bool
}

// Fetch reads the native balance and every listed token in parallel. A token
// without a CoinStore resource counts as zero; only an invalid address or an
// unreachable endpoint fails the whole snapshot.
func (r *Reader) Fetch(ctx context.Context, addr string) (Snapshot, error) {
	start := time.Now()
	defer monitor.Business.ObserveBalanceFetch(start)

	norm, err := address.Normalize(addr)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w: %q", errno.ErrBalanceFetchFailed, errno.ErrInvalidAddress, addr)
	}

	n := r.registry.Native()
	entries := []entry{{name: n.Symbol, coinType: n.CoinType, decimals: n.Decimals, price: n.PriceUSD, native: true}}
	for _, t := range r.registry.All() {
		entries = append(entries, entry{name: t.Symbol(), coinType: t.CoinType(), decimals: t.Decimals, price: t.PriceUSD})
	}

	results := make([]TokenBalance, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			var units uint64
			var err error
			if e.native {
				units, err = r.chain.NativeBalance(gctx, norm)
			} else {
				units, err = r.chain.CoinBalance(gctx, norm, e.coinType)
			}
			if err != nil {
				if fatal(err) {
					return err
				}
				// 没有 CoinStore 资源 = 余额为 0
				r.log.Debug("token balance treated as zero",
					zap.String("token", e.name), zap.String("address", norm), zap.Error(err))
				units = 0
			}
			bal := decimal.NewFromUint64(units).Shift(-e.decimals)
			results[i] = TokenBalance{
				TokenName: e.name,
				CoinType:  e.coinType,
				Balance:   bal,
				ValueUSD:  bal.Mul(e.price),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", errno.ErrBalanceFetchFailed, err)
	}

	return Snapshot{Address: norm, Tokens: results, FetchedAt: r.now()}, nil
}

func fatal(err error) bool {
	return errors.Is(err, rpc.ErrUnreachable) ||
		errors.Is(err, errno.ErrInvalidAddress) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
