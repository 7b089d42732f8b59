package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

const (
	TopicProtocolCollected = "protocol.collected"
	TopicCorpusBuilt       = "corpus.built"
	TopicProtocolAnalyzed  = "protocol.analyzed"
)

const schemaVersion = "v1"

// EventEnvelope wraps every event payload.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ProtocolCollectedPayload announces one harvested registry study.
type ProtocolCollectedPayload struct {
	RunID           string  `json:"run_id"`
	NCTID           string  `json:"nct_id"`
	Phase           string  `json:"phase"`
	TherapeuticArea string  `json:"therapeutic_area"`
	ComplexityScore float64 `json:"complexity_score"`
	HasProtocolDoc  bool    `json:"has_protocol_document"`
}

// CorpusBuiltPayload announces a new reference dataset.
type CorpusBuiltPayload struct {
	RunID          string         `json:"run_id"`
	DatasetKey     string         `json:"dataset_key"`
	Location       string         `json:"location"`
	TotalProtocols int            `json:"total_protocols"`
	PhaseCounts    map[string]int `json:"phase_counts"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// ProtocolAnalyzedPayload summarises one analysis run.
type ProtocolAnalyzedPayload struct {
	AnalysisID          string    `json:"analysis_id"`
	Phase               string    `json:"phase"`
	TherapeuticArea     string    `json:"therapeutic_area"`
	ComplexityScore     float64   `json:"complexity_score"`
	ComplexityCategory  string    `json:"complexity_category"`
	EstimatedMonths     float64   `json:"estimated_months"`
	DifficultyTier      string    `json:"difficulty_tier"`
	BurdenScore         float64   `json:"burden_score"`
	Benchmarked         bool      `json:"benchmarked"`
	RecommendationCount int       `json:"recommendation_count"`
	AnalyzedAt          time.Time `json:"analyzed_at"`
}

// NewEventEnvelope marshals payload into a fresh envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.  An empty payload leaves
// target untouched.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode payload").WithDetail(e.EventType)
	}
	return nil
}

// ToMessage serialises the envelope for topic, keyed by key.
func (e *EventEnvelope) ToMessage(topic, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

// MessageToEventEnvelope decodes an inbound message.
func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// ---------------------------------------------------------------------------
// Topic administration
// ---------------------------------------------------------------------------

// TopicConfig describes a topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates topics on startup.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to dial kafka").WithDetail(brokers[0])
	}
	return &TopicManager{conn: conn, logger: logging.OrNop(logger)}, nil
}

// CreateTopic creates cfg; an existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "partitions and replication factor must be > 0").WithDetail(cfg.Name)
	}
	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10),
		})
	}
	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to create topic").WithDetail(cfg.Name)
	}
	m.logger.Info("topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether name has partitions.
func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureDefaultTopics creates the three event topics.
func (m *TopicManager) EnsureDefaultTopics(ctx context.Context) error {
	for _, t := range DefaultTopics() {
		if err := m.CreateTopic(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics lists the event topics with their retention.
func DefaultTopics() []TopicConfig {
	const day = int64(24 * 3600 * 1000)
	return []TopicConfig{
		{Name: TopicProtocolCollected, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 7 * day},
		{Name: TopicCorpusBuilt, NumPartitions: 1, ReplicationFactor: 1, RetentionMs: 30 * day},
		{Name: TopicProtocolAnalyzed, NumPartitions: 6, ReplicationFactor: 1, RetentionMs: 30 * day},
	}
}
