package kafka

import (
	"context"
	stdliberrors "errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

type mockConn struct {
	created    []kafka.TopicConfig
	createErr  error
	partitions map[string][]kafka.Partition
}

func (m *mockConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, topics...)
	return nil
}

func (m *mockConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if len(topics) == 1 {
		return m.partitions[topics[0]], nil
	}
	return nil, nil
}

func (m *mockConn) Close() error { return nil }

func TestDefaultTopics(t *testing.T) {
	names := make([]string, 0, 3)
	for _, tc := range DefaultTopics() {
		names = append(names, tc.Name)
	}
	assert.Equal(t, []string{"protocol.collected", "corpus.built", "protocol.analyzed"}, names)
}

func TestEnsureDefaultTopics(t *testing.T) {
	conn := &mockConn{}
	m := &TopicManager{conn: conn, logger: logging.NewNopLogger()}
	require.NoError(t, m.EnsureDefaultTopics(context.Background()))
	require.Len(t, conn.created, 3)
	assert.Equal(t, "retention.ms", conn.created[1].ConfigEntries[0].ConfigName)
	assert.Equal(t, "2592000000", conn.created[1].ConfigEntries[0].ConfigValue)
}

func TestCreateTopic_ExistingIsOK(t *testing.T) {
	conn := &mockConn{
		createErr:  stdliberrors.New("topic already exists"),
		partitions: map[string][]kafka.Partition{"corpus.built": {{Topic: "corpus.built"}}},
	}
	m := &TopicManager{conn: conn, logger: logging.NewNopLogger()}
	assert.NoError(t, m.CreateTopic(context.Background(), TopicConfig{Name: "corpus.built", NumPartitions: 1, ReplicationFactor: 1}))

	err := m.CreateTopic(context.Background(), TopicConfig{Name: "other", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessageQueue))

	err = m.CreateTopic(context.Background(), TopicConfig{Name: "bad"})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestEventEnvelope_DecodeEmptyPayload(t *testing.T) {
	env := &EventEnvelope{}
	var p CorpusBuiltPayload
	assert.NoError(t, env.DecodePayload(&p))
	assert.Equal(t, CorpusBuiltPayload{}, p)
}

func TestMessageToEventEnvelope_Errors(t *testing.T) {
	_, err := MessageToEventEnvelope(&Message{})
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = MessageToEventEnvelope(&Message{Value: []byte("{")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}
