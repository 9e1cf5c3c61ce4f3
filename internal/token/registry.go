package token

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ziggly-wallet/pkg/config"
)

// Token 一个上架的 meme token
type Token struct {
	Name     string          `json:"name"`
	Ticker   string          `json:"ticker"`
	PreCA    string          `json:"preCa"`  // bonding 阶段的 coin type
	MainCA   string          `json:"mainCa"` // 上线后的 coin type
	Decimals int32           `json:"decimals"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
}

// CoinType 余额查询使用的 coin type (pre 阶段)
func (t Token) CoinType() string {
	return t.PreCA
}

// Symbol coin type 最后一段, 例如 PREZIGGLY
func (t Token) Symbol() string {
	parts := strings.Split(t.PreCA, "::")
	return parts[len(parts)-1]
}

// Native SUPRA
type Native struct {
	Symbol   string
	CoinType string
	Decimals int32
	PriceUSD decimal.Decimal
}

func DefaultNative() Native {
	return Native{
		Symbol:   "SUPRA",
		CoinType: "0x1::supra_coin::SupraCoin",
		Decimals: 8,
		PriceUSD: decimal.RequireFromString("0.01"),
	}
}

// Registry 有序的 token 列表
type Registry struct {
	native Native
	tokens []Token
}

func NewRegistry(native Native, tokens []Token) (*Registry, error) {
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if t.Ticker == "" || t.PreCA == "" {
			return nil, fmt.Errorf("token %q: ticker and pre_ca are required", t.Name)
		}
		if t.Decimals < 0 || t.Decimals > 18 {
			return nil, fmt.Errorf("token %s: decimals %d out of range", t.Ticker, t.Decimals)
		}
		key := strings.ToUpper(t.Ticker)
		if seen[key] {
			return nil, fmt.Errorf("token %s listed twice", t.Ticker)
		}
		seen[key] = true
	}
	return &Registry{native: native, tokens: append([]Token{}, tokens...)}, nil
}

// FromConfig 从 config.Global 的 chain/tokens 段构建
func FromConfig(cfg config.Config) (*Registry, error) {
	native := DefaultNative()
	if cfg.Chain.NativeSymbol != "" {
		native.Symbol = cfg.Chain.NativeSymbol
	}
	if cfg.Chain.NativeDecimals > 0 {
		native.Decimals = cfg.Chain.NativeDecimals
	}
	if cfg.Chain.NativePriceUSD != "" {
		p, err := decimal.NewFromString(cfg.Chain.NativePriceUSD)
		if err != nil {
			return nil, fmt.Errorf("chain.native_price_usd: %w", err)
		}
		native.PriceUSD = p
	}

	tokens := make([]Token, 0, len(cfg.Tokens))
	for _, tc := range cfg.Tokens {
		price := decimal.Zero
		if tc.PriceUSD != "" {
			p, err := decimal.NewFromString(tc.PriceUSD)
			if err != nil {
				return nil, fmt.Errorf("token %s price_usd: %w", tc.Ticker, err)
			}
			price = p
		}
		tokens = append(tokens, Token{
			Name:     tc.Name,
			Ticker:   tc.Ticker,
			PreCA:    tc.PreCA,
			MainCA:   tc.MainCA,
			Decimals: tc.Decimals,
			PriceUSD: price,
		})
	}
	return NewRegistry(native, tokens)
}

func (r *Registry) Native() Native { return r.native }

// All 返回副本, 保持配置顺序
func (r *Registry) All() []Token {
	return append([]Token{}, r.tokens...)
}

// Lookup 按 ticker 或 symbol (PREZIGGLY) 查找, 忽略大小写
func (r *Registry) Lookup(name string) (Token, bool) {
	for _, t := range r.tokens {
		if strings.EqualFold(t.Ticker, name) || strings.EqualFold(t.Symbol(), name) {
			return t, true
		}
	}
	return Token{}, false
}
