// Package events publishes executed interventions to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"activity-nudge-lab/internal/domain"
)

// DefaultTopic receives intervention events.
const DefaultTopic = "interventions.executed"

// InterventionEvent is the message value of an executed intervention.
type InterventionEvent struct {
	EntryID                 string    `json:"entry_id"`
	ParticipantID           string    `json:"participant_id"`
	Date                    string    `json:"date"`
	Time                    string    `json:"time"`
	StepClassification      string    `json:"step_classification"`
	SedentaryClassification string    `json:"sedentary_classification"`
	StepMean                float64   `json:"step_mean"`
	SedentaryMean           float64   `json:"sedentary_mean"`
	MessageKind             string    `json:"message_kind"`
	Delivered               bool      `json:"delivered"`
	RecordedAt              time.Time `json:"recorded_at"`
}

// NewInterventionEvent converts a log entry into its event form.
func NewInterventionEvent(e *domain.InterventionLogEntry) InterventionEvent {
	return InterventionEvent{
		EntryID:                 e.EntryID,
		ParticipantID:           e.ParticipantID,
		Date:                    string(e.Date),
		Time:                    e.Time.String(),
		StepClassification:      string(e.StepClassification),
		SedentaryClassification: string(e.SedentaryClassification),
		StepMean:                e.StepMean,
		SedentaryMean:           e.SedentaryMean,
		MessageKind:             string(e.MessageKind),
		Delivered:               e.Delivered,
		RecordedAt:              e.RecordedAt,
	}
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher lazily manages writers per topic.
type KafkaPublisher struct {
	brokers   []string
	topic     string
	newWriter func(topic string) messageWriter

	mu      sync.Mutex
	writers map[string]messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher. Empty topic uses DefaultTopic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &KafkaPublisher{
		brokers: brokers,
		topic:   topic,
		writers: make(map[string]messageWriter),
	}
	p.newWriter = p.kafkaWriter
	return p
}

// PublishIntervention writes the entry keyed by participant, so one
// participant's events stay ordered within a partition.
func (p *KafkaPublisher) PublishIntervention(ctx context.Context, e *domain.InterventionLogEntry) error {
	value, err := json.Marshal(NewInterventionEvent(e))
	if err != nil {
		return fmt.Errorf("marshal intervention event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.ParticipantID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("intervention.executed")},
			{Key: "entry_id", Value: []byte(e.EntryID)},
		},
	}
	if err := p.writerForTopic(p.topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) writerForTopic(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := p.newWriter(topic)
	p.writers[topic] = writer
	return writer
}

func (p *KafkaPublisher) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
}

// Close releases all writers.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
