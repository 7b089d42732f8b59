package kafka

import (
	"context"
	stdliberrors "errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	pkgerrors "github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func TestNewProducer_Validation(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{}, nil)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewProducer(config.KafkaConfig{Brokers: []string{"b:9092"}, MaxRetries: -1}, nil)
	assert.True(t, pkgerrors.IsValidation(err))

	p, err := NewProducer(config.KafkaConfig{Brokers: []string{"b:9092"}}, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, nil)

	err := p.Publish(context.Background(), &ProducerMessage{
		Topic:   TopicProtocolAnalyzed,
		Key:     []byte("k"),
		Value:   []byte(`{"x":1}`),
		Headers: map[string]string{"event_type": TopicProtocolAnalyzed},
	})
	require.NoError(t, err)
	require.Len(t, w.written, 1)
	assert.Equal(t, TopicProtocolAnalyzed, w.written[0].Topic)
	assert.Equal(t, "k", string(w.written[0].Key))
	assert.False(t, w.written[0].Time.IsZero())
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte(TopicProtocolAnalyzed)}}, w.written[0].Headers)
	assert.Equal(t, int64(1), p.Sent())
}

func TestPublish_Rejects(t *testing.T) {
	p := newProducer(&mockKafkaWriter{}, nil)
	ctx := context.Background()

	assert.True(t, pkgerrors.IsValidation(p.Publish(ctx, &ProducerMessage{Value: []byte("v")})))
	assert.True(t, pkgerrors.IsValidation(p.Publish(ctx, &ProducerMessage{Topic: "t"})))
	assert.True(t, pkgerrors.IsValidation(p.Publish(ctx, &ProducerMessage{Topic: "t", Value: make([]byte, defaultMaxMessageBytes+1)})))
}

func TestPublish_WriterFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return stdliberrors.New("leader not available")
	}}
	p := newProducer(w, nil)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessageQueue))
	assert.Equal(t, int64(1), p.Failed())
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
		return kafka.WriteErrors{nil, stdliberrors.New("too large"), nil}
	}}
	p := newProducer(w, nil)

	msgs := []*ProducerMessage{
		{Topic: "a", Value: []byte("1")},
		{Topic: "b", Value: []byte("2")},
		{Topic: "c", Value: []byte("3")},
	}
	res, err := p.PublishBatch(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "b", res.Errors[0].Topic)
}

func TestPublishBatch_TotalFailure(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error {
		return stdliberrors.New("network")
	}}
	p := newProducer(w, nil)

	res, err := p.PublishBatch(context.Background(), []*ProducerMessage{{Topic: "a", Value: []byte("1")}, {Topic: "a", Value: []byte("2")}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, -1, res.Errors[0].Index)
}

func TestClose_Idempotent(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	assert.ErrorIs(t, p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("v")}), ErrProducerClosed)
}

func TestPublisher_WrapsEnvelope(t *testing.T) {
	w := &mockKafkaWriter{}
	pub := NewPublisher(newProducer(w, nil), "protointel-api", nil)

	payload := ProtocolAnalyzedPayload{AnalysisID: "a-1", Phase: "PHASE2", ComplexityScore: 75, ComplexityCategory: "Complex"}
	require.NoError(t, pub.PublishEvent(context.Background(), TopicProtocolAnalyzed, "a-1", payload))
	require.Len(t, w.written, 1)

	env, err := MessageToEventEnvelope(&Message{Value: w.written[0].Value})
	require.NoError(t, err)
	assert.Equal(t, TopicProtocolAnalyzed, env.EventType)
	assert.Equal(t, "protointel-api", env.Source)
	assert.Equal(t, schemaVersion, env.SchemaVersion)
	assert.NotEmpty(t, env.EventID)

	var got ProtocolAnalyzedPayload
	require.NoError(t, env.DecodePayload(&got))
	assert.Equal(t, payload, got)
}
