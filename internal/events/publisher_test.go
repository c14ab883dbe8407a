package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-nudge-lab/internal/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestPublisher(w *fakeWriter) (*KafkaPublisher, *int) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "")
	created := 0
	p.newWriter = func(string) messageWriter {
		created++
		return w
	}
	return p, &created
}

func TestKafkaPublisher_PublishIntervention(t *testing.T) {
	w := &fakeWriter{}
	p, created := newTestPublisher(w)

	entry := &domain.InterventionLogEntry{
		EntryID:                 "e-1",
		ParticipantID:           "P001",
		Date:                    "2026-04-08",
		Time:                    domain.NewTimeOfDay(10, 0, 5),
		StepClassification:      domain.BelowThreshold,
		SedentaryClassification: domain.AboveThreshold,
		MessageKind:             domain.MessageWalkMore,
		Delivered:               true,
		RecordedAt:              time.Date(2026, 4, 8, 1, 0, 5, 0, time.UTC),
	}
	require.NoError(t, p.PublishIntervention(context.Background(), entry))
	require.NoError(t, p.PublishIntervention(context.Background(), entry))

	assert.Equal(t, 1, *created, "writer should be reused per topic")
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "P001", string(w.msgs[0].Key))

	var ev InterventionEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "10:00:05", ev.Time)
	assert.Equal(t, "WALK_MORE", ev.MessageKind)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p, _ := newTestPublisher(w)

	err := p.PublishIntervention(context.Background(), &domain.InterventionLogEntry{EntryID: "e-1", ParticipantID: "P001"})
	assert.Error(t, err)
}
