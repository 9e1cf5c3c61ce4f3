package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"ziggly-wallet/internal/payload"
)

// ChainInfo getChainId 的返回值
type ChainInfo struct {
	ChainID string `json:"chainId"`
}

// RawTransactionData createRawTransactionData 的返回值
type RawTransactionData struct {
	RawTransaction string `json:"rawTransaction"`
}

// EventKind 钱包推送的事件
type EventKind string

const (
	EventAccountChanged EventKind = "accountChanged"
	EventNetworkChanged EventKind = "networkChanged"
	EventDisconnect     EventKind = "disconnect"
)

type Event struct {
	Kind EventKind       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Provider is the injected wallet object (StarKey's window.starkey.supra).
// Every call may block on the user approving a popup.
type Provider interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Account(ctx context.Context) ([]string, error)
	GetChainID(ctx context.Context) (ChainInfo, error)
	ChangeNetwork(ctx context.Context, chain ChainInfo) error
	// CreateRawTransactionData may return nil when the wallet produced nothing.
	CreateRawTransactionData(ctx context.Context, tuple payload.Tuple) (*RawTransactionData, error)
	// SendTransaction returns the transaction hash if the wallet reports one.
	SendTransaction(ctx context.Context, raw RawTransactionData) (string, error)
	// Events is closed when the handle goes away.
	Events() <-chan Event
}

// Locator 查找当前注入的 provider, 对应页面上的 window.starkey?.supra
type Locator interface {
	Lookup() (Provider, bool)
}

// ParseNetwork accepts `"8"`, `8` or `{"chainId":"8"}`. Anything else is invalid.
func ParseNetwork(raw json.RawMessage) (ChainInfo, bool) {
	data := []byte(strings.TrimSpace(string(raw)))
	if len(data) == 0 {
		return ChainInfo{}, false
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil || strings.TrimSpace(s) == "" {
			return ChainInfo{}, false
		}
		return ChainInfo{ChainID: strings.TrimSpace(s)}, true
	case '{':
		var obj struct {
			ChainID json.RawMessage `json:"chainId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil || len(obj.ChainID) == 0 || obj.ChainID[0] == '{' {
			return ChainInfo{}, false
		}
		return ParseNetwork(obj.ChainID)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return ChainInfo{}, false
		}
		if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
			return ChainInfo{}, false
		}
		return ChainInfo{ChainID: n.String()}, true
	}
}

// RPCError 钱包返回的错误 (EIP-1193 风格, 4001 = 用户拒绝)
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return "wallet error " + strconv.Itoa(e.Code) + ": " + e.Message
}

const CodeUserRejected = 4001

// ErrUserRejected 用户在钱包弹窗里取消
var ErrUserRejected = errors.New("user rejected the request")

// IsUserRejection classifies a provider error as an explicit user cancellation.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	// 请求被取消或超时属于传输层失败, 不是用户操作
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	if rpcErr.Code == CodeUserRejected {
		return true
	}
	// 部分钱包用其它 code, 只能看钱包返回的 message
	msg := strings.ToLower(rpcErr.Message)
	for _, word := range []string{"reject", "denied", "cancel"} {
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}
