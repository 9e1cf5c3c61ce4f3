package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ziggly-wallet/internal/event"
	"ziggly-wallet/internal/service/mq"
	"ziggly-wallet/pkg/logger"
)

const DefaultLength = 50

// Feed 最近 N 笔交易的环形缓冲, 由 MQ 消费者写入
type Feed struct {
	mu    sync.RWMutex
	items []event.TransactionSubmitted
	next  int
	full  bool
	seen  map[string]bool
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultLength
	}
	return &Feed{
		items: make([]event.TransactionSubmitted, size),
		seen:  make(map[string]bool, size),
	}
}

// Add 写入一条, 相同 tx id 只记录一次 (MQ 至少一次投递)
func (f *Feed) Add(ev event.TransactionSubmitted) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[ev.TxID] {
		return
	}
	if f.full {
		delete(f.seen, f.items[f.next].TxID)
	}
	f.items[f.next] = ev
	f.seen[ev.TxID] = true
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
}

// Recent 新的在前, limit <= 0 返回全部
func (f *Feed) Recent(limit int) []event.TransactionSubmitted {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.next
	if f.full {
		n = len(f.items)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]event.TransactionSubmitted, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (f.next - i + len(f.items)) % len(f.items)
		out = append(out, f.items[idx])
	}
	return out
}

// Handle mq 回调
func (f *Feed) Handle(msg *mq.Message) error {
	var ev event.TransactionSubmitted
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return fmt.Errorf("decode %s message %s: %w", msg.Topic, msg.ID, err)
	}
	if ev.TxID == "" {
		return fmt.Errorf("message %s has no tx id", msg.ID)
	}
	f.Add(ev)
	return nil
}

// Run 阻塞消费直到 ctx 结束
func (f *Feed) Run(ctx context.Context, consumer mq.Consumer, topic string) error {
	return consumer.Subscribe(ctx, topic, f.Handle)
}

// Recorder 把提交成功的交易发到 MQ
type Recorder struct {
	producer mq.Producer
	topic    string
}

func NewRecorder(producer mq.Producer, topic string) *Recorder {
	if topic == "" {
		topic = event.DefaultTopic
	}
	return &Recorder{producer: producer, topic: topic}
}

// Record 发布失败只记日志, 交易本身已经广播
func (r *Recorder) Record(ctx context.Context, ev event.TransactionSubmitted) {
	if r == nil || r.producer == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("marshal activity event failed", zap.Error(err))
		return
	}
	if err := r.producer.Publish(ctx, r.topic, ev.Sender, payload); err != nil {
		logger.Warn("publish activity event failed", zap.String("tx_id", ev.TxID), zap.Error(err))
	}
}
