package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ziggly-wallet/pkg/address"
	"ziggly-wallet/pkg/errno"
)

const (
	DefaultEndpoint = "https://rpc-mainnet.supra.com"
	DefaultBasePath = "/rpc/v1"
	DefaultTimeout  = 15 * time.Second

	// NativeCoinType SUPRA
	NativeCoinType = "0x1::supra_coin::SupraCoin"
)

var (
	// ErrNotFound 账户或资源不存在 (HTTP 404 或空结果)
	ErrNotFound = errors.New("rpc: not found")
	// ErrUnreachable 网络错误或节点 5xx
	ErrUnreachable = errors.New("rpc: endpoint unreachable")
)

// StatusError 其他非 2xx 响应
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rpc: unexpected status %d: %s", e.Status, e.Body)
}

// Client is a Supra REST RPC client. Calls are never retried.
type Client struct {
	endpoint string
	basePath string
	client   *http.Client
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

func WithBasePath(p string) ClientOption {
	return func(c *Client) {
		c.basePath = "/" + strings.Trim(p, "/")
	}
}

func NewClient(endpoint string, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		basePath: DefaultBasePath,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// U64 接受 JSON 数字或字符串 ("12")
type U64 uint64

func (u *U64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 %q: %w", s, err)
	}
	*u = U64(v)
	return nil
}

type accountInfo struct {
	SequenceNumber    U64    `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

// SequenceNumber 账户当前的 sequence number, 每次交易前都要重新获取
func (c *Client) SequenceNumber(ctx context.Context, addr string) (uint64, error) {
	norm, err := normalize(addr)
	if err != nil {
		return 0, err
	}
	var info accountInfo
	if err := c.get(ctx, "accounts/"+norm, &info); err != nil {
		return 0, err
	}
	return uint64(info.SequenceNumber), nil
}

func (c *Client) AccountExists(ctx context.Context, addr string) (bool, error) {
	_, err := c.SequenceNumber(ctx, addr)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Resource loads one Move resource of addr into out.
func (c *Client) Resource(ctx context.Context, addr, resourceType string, out interface{}) error {
	norm, err := normalize(addr)
	if err != nil {
		return err
	}
	var raw json.RawMessage
	if err := c.get(ctx, "accounts/"+norm+"/resources/"+url.PathEscape(resourceType), &raw); err != nil {
		return err
	}
	data, err := unwrapResult(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type coinStore struct {
	Coin struct {
		Value U64 `json:"value"`
	} `json:"coin"`
}

// CoinBalance 0x1::coin::CoinStore<coinType> 中的余额 (最小单位)
func (c *Client) CoinBalance(ctx context.Context, addr, coinType string) (uint64, error) {
	var store coinStore
	if err := c.Resource(ctx, addr, "0x1::coin::CoinStore<"+coinType+">", &store); err != nil {
		return 0, err
	}
	return uint64(store.Coin.Value), nil
}

func (c *Client) NativeBalance(ctx context.Context, addr string) (uint64, error) {
	return c.CoinBalance(ctx, addr, NativeCoinType)
}

type CoinInfo struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// CoinInfo 读取发行账户下的 0x1::coin::CoinInfo<coinType>
func (c *Client) CoinInfo(ctx context.Context, coinType string) (CoinInfo, error) {
	owner, _, ok := strings.Cut(coinType, "::")
	if !ok {
		return CoinInfo{}, fmt.Errorf("%w: coin type %q", errno.ErrInvalidAddress, coinType)
	}
	var info CoinInfo
	if err := c.Resource(ctx, owner, "0x1::coin::CoinInfo<"+coinType+">", &info); err != nil {
		return CoinInfo{}, err
	}
	return info, nil
}

type viewRequest struct {
	Function      string        `json:"function"`
	TypeArguments []string      `json:"type_arguments"`
	Arguments     []interface{} `json:"arguments"`
}

// View calls a read-only Move function and returns its return values.
func (c *Client) View(ctx context.Context, function string, typeArgs []string, args []interface{}) ([]json.RawMessage, error) {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []interface{}{}
	}
	var resp struct {
		Result []json.RawMessage `json:"result"`
	}
	req := viewRequest{Function: function, TypeArguments: typeArgs, Arguments: args}
	if err := c.post(ctx, "view", req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) url(path string) string {
	return c.endpoint + c.basePath + "/" + path
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return fmt.Errorf("%w: empty response", ErrNotFound)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// 资源接口返回 {"result":[obj]} 或者直接 obj
func unwrapResult(raw json.RawMessage) (json.RawMessage, error) {
	var wrapped struct {
		Result []json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Result != nil {
		if len(wrapped.Result) == 0 || string(wrapped.Result[0]) == "null" {
			return nil, ErrNotFound
		}
		return wrapped.Result[0], nil
	}
	return raw, nil
}

func normalize(addr string) (string, error) {
	norm, err := address.Normalize(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %q", errno.ErrInvalidAddress, addr)
	}
	return norm, nil
}
