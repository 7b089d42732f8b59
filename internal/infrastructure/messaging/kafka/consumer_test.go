package kafka

import (
	"context"
	stdliberrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	pkgerrors "github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

type mockKafkaReader struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
	closed    atomic.Bool
}

func newMockReader(msgs ...kafka.Message) *mockKafkaReader {
	ch := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &mockKafkaReader{msgs: ch}
}

func (r *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *mockKafkaReader) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *mockKafkaReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestNewConsumer_Validation(t *testing.T) {
	_, err := NewConsumer(config.KafkaConfig{}, []string{"t"}, nil)
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = NewConsumer(config.KafkaConfig{Brokers: []string{"b"}}, []string{"t"}, nil)
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = NewConsumer(config.KafkaConfig{Brokers: []string{"b"}, GroupID: "g"}, nil, nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	r := newMockReader(
		kafka.Message{Topic: TopicCorpusBuilt, Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "event_type", Value: []byte("corpus.built")}}},
		kafka.Message{Topic: "unknown", Offset: 2, Value: []byte("b")},
	)
	c := newConsumer(r, RetryConfig{}, nil)

	got := make(chan *Message, 1)
	c.Subscribe(TopicCorpusBuilt, func(_ context.Context, m *Message) error {
		got <- m
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	select {
	case m := <-got:
		assert.Equal(t, "a", string(m.Value))
		assert.Equal(t, "corpus.built", m.Headers["event_type"])
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}

	assert.Eventually(t, func() bool { return len(r.committedOffsets()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, r.closed.Load())
	assert.Equal(t, int64(1), c.Processed())
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := newConsumer(newMockReader(), RetryConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	var calls int
	err := c.processMessage(context.Background(), &Message{Topic: "t"}, func(context.Context, *Message) error {
		calls++
		if calls < 3 {
			return stdliberrors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestProcessMessage_RetryExhausted(t *testing.T) {
	c := newConsumer(newMockReader(), RetryConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)
	var calls int
	err := c.processMessage(context.Background(), &Message{Topic: "t"}, func(context.Context, *Message) error {
		calls++
		return stdliberrors.New("permanent")
	})
	assert.EqualError(t, err, "permanent")
	assert.Equal(t, 3, calls)
}
