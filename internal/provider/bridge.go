package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ziggly-wallet/internal/payload"
)

const (
	writeTimeout = 10 * time.Second
	eventBuffer  = 64
)

var ErrBridgeClosed = errors.New("provider bridge closed")

// 页面 -> 服务端的消息: 调用结果或者事件推送
type inbound struct {
	ID     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
	Event  EventKind       `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// 服务端 -> 页面的调用
type outbound struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Bridge is a Provider backed by a browser page that holds the injected
// wallet and relays calls and events over a websocket.
type Bridge struct {
	conn        *websocket.Conn
	callTimeout time.Duration
	log         *zap.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan inbound

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*Bridge)
}

func newBridge(conn *websocket.Conn, callTimeout time.Duration, log *zap.Logger, onClose func(*Bridge)) *Bridge {
	return &Bridge{
		conn:        conn,
		callTimeout: callTimeout,
		log:         log,
		pending:     make(map[uint64]chan inbound),
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
		onClose:     onClose,
	}
}

func (b *Bridge) Events() <-chan Event { return b.events }

// Done is closed once the socket is gone.
func (b *Bridge) Done() <-chan struct{} { return b.done }

func (b *Bridge) Connect(ctx context.Context) error {
	return b.call(ctx, "connect", nil, nil)
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	return b.call(ctx, "disconnect", nil, nil)
}

func (b *Bridge) Account(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := b.call(ctx, "account", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (b *Bridge) GetChainID(ctx context.Context) (ChainInfo, error) {
	var raw json.RawMessage
	if err := b.call(ctx, "getChainId", nil, &raw); err != nil {
		return ChainInfo{}, err
	}
	info, ok := ParseNetwork(raw)
	if !ok {
		return ChainInfo{}, fmt.Errorf("unreadable chain id %s", string(raw))
	}
	return info, nil
}

func (b *Bridge) ChangeNetwork(ctx context.Context, chain ChainInfo) error {
	return b.call(ctx, "changeNetwork", chain, nil)
}

func (b *Bridge) CreateRawTransactionData(ctx context.Context, tuple payload.Tuple) (*RawTransactionData, error) {
	var raw json.RawMessage
	if err := b.call(ctx, "createRawTransactionData", tuple, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	// 钱包有的版本直接返回字符串
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &RawTransactionData{RawTransaction: s}, nil
	}
	var data RawTransactionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("malformed raw transaction data: %w", err)
	}
	return &data, nil
}

func (b *Bridge) SendTransaction(ctx context.Context, raw RawTransactionData) (string, error) {
	params := map[string]interface{}{"data": raw}
	var result json.RawMessage
	if err := b.call(ctx, "sendTransaction", params, &result); err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(result, &hash); err == nil {
		return hash, nil
	}
	var obj struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(result, &obj); err == nil {
		return obj.Hash, nil
	}
	return "", nil
}

func (b *Bridge) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}

	id := b.nextID.Add(1)
	ch := make(chan inbound, 1)
	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
	}()

	b.writeMu.Lock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := b.conn.WriteJSON(outbound{ID: id, Method: method, Params: params})
	b.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write %s: %w", method, err)
	}

	var timeout <-chan time.Time
	if b.callTimeout > 0 {
		timer := time.NewTimer(b.callTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return fmt.Errorf("%s: no answer from wallet after %s", method, b.callTimeout)
	case <-b.done:
		return ErrBridgeClosed
	}
}

// readLoop 读取页面消息, 直到连接断开
func (b *Bridge) readLoop() {
	defer b.shutdown()

	for {
		var msg inbound
		if err := b.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Warn("provider bridge read failed", zap.Error(err))
			}
			return
		}

		if msg.Event != "" {
			select {
			case b.events <- Event{Kind: msg.Event, Data: msg.Data}:
			case <-b.done:
				return
			}
			continue
		}

		b.pendingMu.Lock()
		ch, ok := b.pending[msg.ID]
		b.pendingMu.Unlock()
		if !ok {
			b.log.Debug("response for unknown call", zap.Uint64("id", msg.ID))
			continue
		}
		select {
		case ch <- msg:
		default: // 重复的响应
		}
	}
}

func (b *Bridge) shutdown() {
	b.Close()
	// 连接断开等价于钱包 disconnect
	select {
	case b.events <- Event{Kind: EventDisconnect}:
	default:
	}
	close(b.events)
	if b.onClose != nil {
		b.onClose(b)
	}
}

// Close 关闭底层连接, 挂起的调用返回 ErrBridgeClosed
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		b.writeMu.Lock()
		_ = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		b.writeMu.Unlock()
		err = b.conn.Close()
	})
	return err
}
