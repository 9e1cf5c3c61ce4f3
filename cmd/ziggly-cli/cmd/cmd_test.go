package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", t.TempDir()))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTxLink(t *testing.T) {
	out, err := run(t, "tx-link", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "https://suprascan.io/tx/0xabc\n", out)
}

func TestPayloadBuy(t *testing.T) {
	out, err := run(t, "payload", "--kind", "buy", "--sender", "0xaa", "--amount", "10", "--min", "1000", "--sequence", "3")
	require.NoError(t, err)

	var tuple []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &tuple))
	require.Len(t, tuple, 8)
	assert.JSONEq(t, `"0xaa"`, string(tuple[0]))
	assert.JSONEq(t, `3`, string(tuple[1]))
	assert.JSONEq(t, `"buy"`, string(tuple[4]))
	// 10 SUPRA = 1_000_000_000 最小单位, 小端
	assert.JSONEq(t, `[[0,202,154,59,0,0,0,0],[0,202,154,59,0,0,0,0]]`, string(tuple[6]))
}

func TestBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc/v1/accounts/0x"+strings.Repeat("0", 63)+"1/transactions", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("count"))
		_, _ = w.Write([]byte(`{"record":[{"hash":"0xfeed","block_header":{"height":"4211000"}}]}`))
	}))
	defer srv.Close()

	out, err := run(t, "block", "--rpc", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Latest block: 4211000 (block_height)")
	assert.Contains(t, out, "https://suprascan.io/tx/0xfeed")
}

func TestPayloadExpiryIsCapped(t *testing.T) {
	out, err := run(t, "payload", "--kind", "buy", "--sender", "0xaa", "--amount", "1", "--sequence", "1", "--expiry", "99999999999")
	require.NoError(t, err)

	var tuple []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &tuple))
	var opts struct {
		TxExpiryTime int64 `json:"txExpiryTime"`
	}
	require.NoError(t, json.Unmarshal(tuple[7], &opts))
	assert.LessOrEqual(t, opts.TxExpiryTime, time.Now().Unix()+3601)
	assert.Greater(t, opts.TxExpiryTime, time.Now().Unix())
}

func TestPayloadRejectsBadInput(t *testing.T) {
	_, err := run(t, "payload", "--kind", "swap", "--sender", "0xaa", "--amount", "1", "--sequence", "1")
	assert.Error(t, err)

	_, err = run(t, "payload", "--kind", "buy", "--sender", "0xaa", "--amount", "0", "--sequence", "1")
	assert.Error(t, err)
}
