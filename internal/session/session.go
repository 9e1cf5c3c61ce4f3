package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ziggly-wallet/internal/provider"
	"ziggly-wallet/pkg/errno"
	"ziggly-wallet/pkg/logger"
	"ziggly-wallet/pkg/monitor"
)

type Config struct {
	RequiredChainID   string
	AlternateChainIDs []string // 已知可以切换到主网的网络
	DetectTimeout     time.Duration
	DetectInterval    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequiredChainID:   "8",
		AlternateChainIDs: []string{"6"},
		DetectTimeout:     provider.DefaultDetectTimeout,
		DetectInterval:    provider.DefaultDetectInterval,
	}
}

// Session owns the wallet provider handle and the connection state.
// All state changes go through its methods or its event loop.
type Session struct {
	loc provider.Locator
	cfg Config
	log *zap.Logger

	// connect / switch / disconnect 串行执行
	opMu sync.Mutex

	mu     sync.RWMutex
	handle provider.Provider
	status Status
	state  State

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(loc provider.Locator, cfg Config) *Session {
	if cfg.RequiredChainID == "" {
		cfg.RequiredChainID = "8"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		loc:    loc,
		cfg:    cfg,
		log:    logger.Named("session"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close 停止事件循环以及进行中的 provider 探测
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Handle 当前 provider, 未探测到时返回 false
func (s *Session) Handle() (provider.Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle, s.handle != nil
}

// Connect detects the wallet, connects, forces mainnet and loads accounts.
// On success the session is Connected on the required chain; on any failure
// it is left in the empty Disconnected state.
func (s *Session) Connect(ctx context.Context) (State, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.status = StatusConnecting
	s.mu.Unlock()

	p, err := s.detect(ctx)
	if err != nil {
		s.reset()
		monitor.Business.ObserveConnect("unavailable")
		return State{}, err
	}

	if err := p.Connect(ctx); err != nil {
		s.reset()
		monitor.Business.ObserveConnect("failed")
		return State{}, fmt.Errorf("%w: %v", errno.ErrConnectFailed, err)
	}

	chain, err := s.ensureMainnet(ctx, p)
	if err != nil {
		s.teardown(ctx, p)
		monitor.Business.ObserveConnect("unsupported_network")
		return State{}, err
	}

	accounts, err := p.Account(ctx)
	if err != nil || len(accounts) == 0 {
		s.teardown(ctx, p)
		monitor.Business.ObserveConnect("failed")
		if err == nil {
			err = fmt.Errorf("wallet returned no accounts")
		}
		return State{}, fmt.Errorf("%w: %v", errno.ErrConnectFailed, err)
	}

	s.mu.Lock()
	s.state = State{Accounts: append([]string{}, accounts...), Network: &chain}
	s.status = StatusConnected
	out := s.state.clone()
	s.mu.Unlock()

	monitor.Business.ObserveConnect("ok")
	s.log.Info("wallet connected", zap.String("account", accounts[0]), zap.String("chain_id", chain.ChainID))
	return out, nil
}

// Disconnect 尽力通知钱包, 本地状态无条件清空
func (s *Session) Disconnect(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if p, ok := s.Handle(); ok {
		s.teardown(ctx, p)
		return
	}
	s.reset()
}

// SwitchToMainnet is a no-op on the required chain. Otherwise it asks the
// wallet to switch; a refusal tears the session down.
func (s *Session) SwitchToMainnet(ctx context.Context) (State, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	p := s.handle
	connected := s.status == StatusConnected && len(s.state.Accounts) > 0
	current := s.state.ChainID()
	s.mu.RUnlock()

	if !connected || p == nil {
		return State{}, errno.ErrNotConnected
	}
	if current == s.cfg.RequiredChainID {
		return s.Snapshot(), nil
	}

	chain, err := s.switchNetwork(ctx, p)
	if err != nil {
		s.teardown(ctx, p)
		return State{}, err
	}

	s.mu.Lock()
	s.state.Network = &chain
	out := s.state.clone()
	s.mu.Unlock()
	return out, nil
}

func (s *Session) detect(ctx context.Context) (provider.Provider, error) {
	// 探测同时受调用方 ctx 和会话生命周期约束
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	p, err := provider.Detect(dctx, s.loc, s.cfg.DetectTimeout, s.cfg.DetectInterval)
	if err != nil {
		return nil, err
	}
	s.adopt(p)
	return p, nil
}

// adopt 新的 handle 实例只订阅一次事件
func (s *Session) adopt(p provider.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == p {
		return
	}
	s.handle = p
	s.wg.Add(1)
	go s.consume(p)
}

func (s *Session) ensureMainnet(ctx context.Context, p provider.Provider) (provider.ChainInfo, error) {
	chain, err := p.GetChainID(ctx)
	if err != nil {
		return provider.ChainInfo{}, fmt.Errorf("%w: chain id unreadable: %v", errno.ErrUnsupportedNetwork, err)
	}
	switch {
	case chain.ChainID == s.cfg.RequiredChainID:
		return chain, nil
	case s.isAlternate(chain.ChainID):
		s.log.Info("wallet on alternate network, requesting switch",
			zap.String("from", chain.ChainID), zap.String("to", s.cfg.RequiredChainID))
		return s.switchNetwork(ctx, p)
	default:
		return provider.ChainInfo{}, fmt.Errorf("%w: chain id %q", errno.ErrUnsupportedNetwork, chain.ChainID)
	}
}

func (s *Session) switchNetwork(ctx context.Context, p provider.Provider) (provider.ChainInfo, error) {
	if err := p.ChangeNetwork(ctx, provider.ChainInfo{ChainID: s.cfg.RequiredChainID}); err != nil {
		return provider.ChainInfo{}, fmt.Errorf("%w: switch refused: %v", errno.ErrUnsupportedNetwork, err)
	}
	chain, err := p.GetChainID(ctx)
	if err != nil {
		return provider.ChainInfo{}, fmt.Errorf("%w: chain id unreadable after switch: %v", errno.ErrUnsupportedNetwork, err)
	}
	if chain.ChainID != s.cfg.RequiredChainID {
		return provider.ChainInfo{}, fmt.Errorf("%w: still on chain %q after switch", errno.ErrUnsupportedNetwork, chain.ChainID)
	}
	return chain, nil
}

func (s *Session) isAlternate(id string) bool {
	for _, alt := range s.cfg.AlternateChainIDs {
		if alt == id {
			return true
		}
	}
	return false
}

func (s *Session) teardown(ctx context.Context, p provider.Provider) {
	if err := p.Disconnect(ctx); err != nil {
		s.log.Warn("wallet disconnect failed", zap.Error(err))
	}
	s.reset()
}

func (s *Session) reset() {
	s.mu.Lock()
	s.state = State{}
	s.status = StatusDisconnected
	s.mu.Unlock()
}

// consume 每个 handle 一个 goroutine, 按到达顺序逐个处理事件
func (s *Session) consume(p provider.Provider) {
	defer s.wg.Done()
	events := p.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.dropHandle(p)
				return
			}
			s.apply(p, ev)
		}
	}
}

func (s *Session) apply(p provider.Provider, ev provider.Event) {
	monitor.Business.ObserveProviderEvent(string(ev.Kind))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != p {
		return // 旧 handle 的事件
	}

	switch ev.Kind {
	case provider.EventAccountChanged:
		if s.status != StatusConnected {
			return
		}
		addr := parseAccount(ev.Data)
		if addr == "" {
			// 钱包锁定或没有账户
			s.state = State{}
			s.status = StatusDisconnected
			s.log.Info("account cleared by wallet")
			return
		}
		s.state.Accounts = []string{addr}
		s.log.Info("account changed", zap.String("account", addr))
	case provider.EventNetworkChanged:
		if s.status != StatusConnected {
			return
		}
		// 原样记录, 执行交易前会再检查主网
		if chain, ok := provider.ParseNetwork(ev.Data); ok {
			s.state.Network = &chain
			s.log.Info("network changed", zap.String("chain_id", chain.ChainID))
		} else {
			s.state.Network = nil
			s.log.Warn("invalid network event payload", zap.ByteString("data", ev.Data))
		}
	case provider.EventDisconnect:
		s.state = State{}
		s.status = StatusDisconnected
		s.log.Info("wallet disconnected")
	default:
		s.log.Debug("ignored provider event", zap.String("event", string(ev.Kind)))
	}
}

func (s *Session) dropHandle(p provider.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != p {
		return
	}
	s.handle = nil
	s.state = State{}
	s.status = StatusDisconnected
}

// parseAccount accepts "0x..", ["0x.."] or {"address":"0x.."}.
func parseAccount(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	var obj struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Address)
	}
	return ""
}
