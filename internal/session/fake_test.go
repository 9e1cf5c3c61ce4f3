package session

import (
	"context"
	"errors"
	"sync"

	"ziggly-wallet/internal/payload"
	"ziggly-wallet/internal/provider"
)

// fakeProvider 可配置的钱包
type fakeProvider struct {
	mu        sync.Mutex
	chainID   string
	accounts  []string
	rejectNet bool
	failConn  error
	calls     []string
	events    chan provider.Event
}

func newFakeProvider(chainID string, accounts ...string) *fakeProvider {
	return &fakeProvider{chainID: chainID, accounts: accounts, events: make(chan provider.Event, 8)}
}

func (f *fakeProvider) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeProvider) Connect(context.Context) error {
	f.record("connect")
	return f.failConn
}

func (f *fakeProvider) Disconnect(context.Context) error {
	f.record("disconnect")
	return errors.New("wallet already gone")
}

func (f *fakeProvider) Account(context.Context) ([]string, error) {
	f.record("account")
	return f.accounts, nil
}

func (f *fakeProvider) GetChainID(context.Context) (provider.ChainInfo, error) {
	f.record("getChainId")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chainID == "" {
		return provider.ChainInfo{}, errors.New("no chain")
	}
	return provider.ChainInfo{ChainID: f.chainID}, nil
}

func (f *fakeProvider) ChangeNetwork(_ context.Context, chain provider.ChainInfo) error {
	f.record("changeNetwork")
	if f.rejectNet {
		return &provider.RPCError{Code: provider.CodeUserRejected, Message: "User rejected"}
	}
	f.mu.Lock()
	f.chainID = chain.ChainID
	f.mu.Unlock()
	return nil
}

func (f *fakeProvider) CreateRawTransactionData(context.Context, payload.Tuple) (*provider.RawTransactionData, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) SendTransaction(context.Context, provider.RawTransactionData) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeProvider) Events() <-chan provider.Event { return f.events }

// staticLocator 在 appearAfter 次查找之后返回 p
type staticLocator struct {
	mu          sync.Mutex
	p           provider.Provider
	lookups     int
	appearAfter int
}

func (l *staticLocator) Lookup() (provider.Provider, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups++
	if l.p == nil || l.lookups <= l.appearAfter {
		return nil, false
	}
	return l.p, true
}
