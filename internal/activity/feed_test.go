package activity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ziggly-wallet/internal/event"
	"ziggly-wallet/internal/service/mq"
)

func tx(i int) event.TransactionSubmitted {
	return event.TransactionSubmitted{TxID: fmt.Sprintf("0x%02d", i), Kind: "buy", Sender: "0xaa", Amount: "10"}
}

func ids(evs []event.TransactionSubmitted) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.TxID
	}
	return out
}

func TestFeedKeepsNewestFirst(t *testing.T) {
	f := NewFeed(3)
	assert.Empty(t, f.Recent(0))

	f.Add(tx(1))
	f.Add(tx(2))
	assert.Equal(t, []string{"0x02", "0x01"}, ids(f.Recent(0)))

	f.Add(tx(3))
	f.Add(tx(4))
	assert.Equal(t, []string{"0x04", "0x03", "0x02"}, ids(f.Recent(0)))
	assert.Equal(t, []string{"0x04"}, ids(f.Recent(1)))

	// 被挤出去的 tx 可以再次写入
	f.Add(tx(1))
	assert.Equal(t, []string{"0x01", "0x04", "0x03"}, ids(f.Recent(10)))
}

func TestFeedDeduplicates(t *testing.T) {
	f := NewFeed(5)
	f.Add(tx(1))
	f.Add(tx(1))
	assert.Len(t, f.Recent(0), 1)
}

func TestHandleRejectsBadPayload(t *testing.T) {
	f := NewFeed(5)
	assert.Error(t, f.Handle(&mq.Message{ID: "1", Payload: []byte("not json")}))
	assert.Error(t, f.Handle(&mq.Message{ID: "2", Payload: []byte(`{"kind":"buy"}`)}))
	assert.Empty(t, f.Recent(0))
}

func TestRecorderToFeedThroughBroker(t *testing.T) {
	broker := mq.NewMemoryBroker()
	defer broker.Close()
	feed := NewFeed(10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx, broker, event.DefaultTopic) }()

	rec := NewRecorder(broker, "")
	// 订阅是异步注册的, 重复发布直到被消费
	require.Eventually(t, func() bool {
		rec.Record(ctx, tx(7))
		return len(feed.Recent(0)) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "0x07", feed.Recent(0)[0].TxID)

	var nilRecorder *Recorder
	nilRecorder.Record(ctx, tx(8))
}
