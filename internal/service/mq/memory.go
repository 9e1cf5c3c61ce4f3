package mq

import (
	"context"
	"strconv"
	"sync"
)

// MemoryBroker 单进程内的 Producer + Consumer, 未启用 redis/kafka 时使用
type MemoryBroker struct {
	mu     sync.Mutex
	seq    int
	subs   map[string][]chan *Message
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string][]chan *Message)}
}

// Publish 投递给当前所有订阅者, 订阅者积压时丢弃
func (b *MemoryBroker) Publish(_ context.Context, topic string, key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.seq++
	for _, ch := range b.subs[topic] {
		msg := &Message{
			ID:      strconv.Itoa(b.seq),
			Topic:   topic,
			Key:     key,
			Payload: append([]byte(nil), payload...),
		}
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	ch := make(chan *Message, 256)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	defer b.unsubscribe(topic, ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			_ = handler(msg)
		}
	}
}

func (b *MemoryBroker) unsubscribe(topic string, ch chan *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, c := range subs {
		if c == ch {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Close 结束所有订阅
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
