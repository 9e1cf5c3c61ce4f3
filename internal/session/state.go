package session

import (
	"ziggly-wallet/internal/provider"
)

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State 会话状态. Accounts 为空 <=> 未连接
type State struct {
	Accounts []string            `json:"accounts"`
	Network  *provider.ChainInfo `json:"network,omitempty"`
}

// ActiveAccount 当前账户 (accounts[0])
func (s State) ActiveAccount() (string, bool) {
	if len(s.Accounts) == 0 {
		return "", false
	}
	return s.Accounts[0], true
}

// ChainID 未知时返回空串
func (s State) ChainID() string {
	if s.Network == nil {
		return ""
	}
	return s.Network.ChainID
}

func (s State) clone() State {
	out := State{Accounts: append([]string{}, s.Accounts...)}
	if s.Network != nil {
		n := *s.Network
		out.Network = &n
	}
	return out
}
