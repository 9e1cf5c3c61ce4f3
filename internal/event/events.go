package event

import "time"

// DefaultTopic 交易提交事件
const DefaultTopic = "ziggly_events_tx"

// TransactionSubmitted 钱包确认并广播后发布
// Topic: ziggly_events_tx
type TransactionSubmitted struct {
	TxID           string    `json:"tx_id"`
	Kind           string    `json:"kind"` // buy / sell / transfer
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient,omitempty"`
	Amount         string    `json:"amount"` // Decimal string
	Asset          string    `json:"asset"`
	SequenceNumber uint64    `json:"sequence_number"`
	ExplorerURL    string    `json:"explorer_url"`
	SubmittedAt    time.Time `json:"submitted_at"`
}
