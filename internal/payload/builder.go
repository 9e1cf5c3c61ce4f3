package payload

import (
	"fmt"
	"time"

	"ziggly-wallet/pkg/errno"
)

const (
	// DefaultExpiryWindow trade/transfer 默认 30 秒过期
	DefaultExpiryWindow = 30 * time.Second

	// MaxExpirySeconds 单笔交易可指定的最长过期窗口
	MaxExpirySeconds int64 = 3600

	TransferContract = "0000000000000000000000000000000000000000000000000000000000000001"
	TransferModule   = "supra_account"
	TransferFunction = "transfer"

	NativeDecimals int32 = 8
)

// Route 描述一种 Kind 对应的 entry function 以及金额精度
type Route struct {
	ContractAddress string
	ModuleName      string
	FunctionName    string
	TypeArguments   []string
	AmountDecimals  int32 // Intent.Amount 的资产精度
	MinimumDecimals int32 // Intent.MinimumReceived 的资产精度
}

// TransferRoute 0x1::supra_account::transfer, 参数 [address, u64]
func TransferRoute() Route {
	return Route{
		ContractAddress: TransferContract,
		ModuleName:      TransferModule,
		FunctionName:    TransferFunction,
		AmountDecimals:  NativeDecimals,
	}
}

// PumpRoutes returns the buy and sell routes of a bonding-curve pump module
// trading preCoin (held before listing) against SUPRA. Buy spends SUPRA and
// receives tokens; sell spends tokens and receives SUPRA.
func PumpRoutes(contract, module, preCoin, mainCoin string, tokenDecimals int32) (buy Route, sell Route) {
	typeArgs := []string{preCoin, mainCoin}
	buy = Route{
		ContractAddress: contract,
		ModuleName:      module,
		FunctionName:    string(KindBuy),
		TypeArguments:   typeArgs,
		AmountDecimals:  NativeDecimals,
		MinimumDecimals: tokenDecimals,
	}
	sell = Route{
		ContractAddress: contract,
		ModuleName:      module,
		FunctionName:    string(KindSell),
		TypeArguments:   append([]string(nil), typeArgs...),
		AmountDecimals:  tokenDecimals,
		MinimumDecimals: NativeDecimals,
	}
	return buy, sell
}

// Builder 纯函数式构造 payload, 不做任何 I/O
type Builder struct {
	routes map[Kind]Route
	window time.Duration
	now    func() time.Time
}

type Option func(*Builder)

func WithExpiryWindow(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithClock 测试中固定时间
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func NewBuilder(routes map[Kind]Route, opts ...Option) *Builder {
	b := &Builder{
		routes: make(map[Kind]Route, len(routes)),
		window: DefaultExpiryWindow,
		now:    time.Now,
	}
	for k, r := range routes {
		b.routes[k] = r
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Route 返回 kind 对应的路由
func (b *Builder) Route(kind Kind) (Route, bool) {
	r, ok := b.routes[kind]
	return r, ok
}

// Build turns an intent plus a freshly fetched sequence number into the
// provider payload tuple. The intent is never modified and the same inputs
// under the same clock always produce an identical tuple.
func (b *Builder) Build(intent Intent, sequence uint64) (Tuple, error) {
	route, ok := b.routes[intent.Kind]
	if !ok {
		return Tuple{}, fmt.Errorf("%w: no route for kind %q", errno.ErrTransactionBuildFailed, intent.Kind)
	}
	if !intent.Amount.IsPositive() {
		return Tuple{}, fmt.Errorf("%w: %s must be greater than zero", errno.ErrInvalidAmount, intent.Amount)
	}
	if intent.Sender == "" {
		return Tuple{}, fmt.Errorf("%w: empty sender", errno.ErrInvalidAddress)
	}

	amount, err := ToUnits(intent.Amount, route.AmountDecimals)
	if err != nil {
		return Tuple{}, err
	}
	if amount == 0 {
		// 低于最小精度, floor 后为 0
		return Tuple{}, fmt.Errorf("%w: %s is below the smallest unit", errno.ErrInvalidAmount, intent.Amount)
	}

	var args [2][]byte
	switch intent.Kind {
	case KindTransfer:
		recipient, err := EncodeAddress(intent.Recipient)
		if err != nil {
			return Tuple{}, err
		}
		args = [2][]byte{recipient, EncodeU64(amount)}
	default:
		minimum, err := ToUnits(intent.MinimumReceived, route.MinimumDecimals)
		if err != nil {
			return Tuple{}, err
		}
		args = [2][]byte{EncodeU64(amount), EncodeU64(minimum)}
	}

	return Tuple{
		Sender:          intent.Sender,
		SequenceNumber:  sequence,
		ContractAddress: route.ContractAddress,
		ModuleName:      route.ModuleName,
		FunctionName:    route.FunctionName,
		TypeArguments:   append([]string{}, route.TypeArguments...),
		Args:            args,
		Options:         Options{TxExpiryTime: b.ExpiryTime(intent.ExpirySeconds)},
	}, nil
}

// ExpiryTime = ceil(now 秒) + window, override 最多 MaxExpirySeconds
func (b *Builder) ExpiryTime(overrideSeconds int64) int64 {
	window := b.window
	if overrideSeconds > 0 {
		window = time.Duration(min(overrideSeconds, MaxExpirySeconds)) * time.Second
	}
	now := b.now()
	secs := now.Unix()
	if now.Nanosecond() > 0 {
		secs++
	}
	return secs + int64(window/time.Second)
}
