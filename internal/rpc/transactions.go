package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Transaction 账户交易列表里用到的字段
type Transaction struct {
	Hash            string `json:"hash"`
	BlockHeight     uint64 `json:"blockHeight"`
	TimestampMillis uint64 `json:"timestampMillis"`
}

type txRecord struct {
	Hash        string          `json:"hash"`
	BlockHeight U64             `json:"block_height"`
	Timestamp   json.RawMessage `json:"timestamp"`
	BlockHeader *struct {
		Height    U64 `json:"height"`
		Timestamp struct {
			Micros U64 `json:"microseconds_since_unix_epoch"`
		} `json:"timestamp"`
	} `json:"block_header"`
}

func (r txRecord) toTransaction() Transaction {
	tx := Transaction{Hash: r.Hash, BlockHeight: uint64(r.BlockHeight)}
	var ts U64
	if len(r.Timestamp) > 0 && json.Unmarshal(r.Timestamp, &ts) == nil {
		tx.TimestampMillis = uint64(ts)
	}
	if h := r.BlockHeader; h != nil {
		if tx.BlockHeight == 0 {
			tx.BlockHeight = uint64(h.Height)
		}
		if tx.TimestampMillis == 0 {
			tx.TimestampMillis = uint64(h.Timestamp.Micros) / 1000
		}
	}
	return tx
}

// AccountTransactions 按时间倒序返回 addr 发出的交易, 最新的在前
func (c *Client) AccountTransactions(ctx context.Context, addr string, start uint64, count int) ([]Transaction, error) {
	norm, err := normalize(addr)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 1
	}
	q := url.Values{}
	q.Set("start", strconv.FormatUint(start, 10))
	q.Set("count", strconv.Itoa(count))

	var raw json.RawMessage
	if err := c.get(ctx, "accounts/"+norm+"/transactions?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	records, err := decodeTxRecords(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		out = append(out, r.toTransaction())
	}
	return out, nil
}

// 节点返回 {"record":[...]}, SDK 风格为 {"transactions":[...]}, 也可能直接是数组
func decodeTxRecords(raw json.RawMessage) ([]txRecord, error) {
	var list []txRecord
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Record       []txRecord `json:"record"`
		Transactions []txRecord `json:"transactions"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	if wrapped.Record != nil {
		return wrapped.Record, nil
	}
	return wrapped.Transactions, nil
}
