package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/storage"
)

func TestActivityRecordStore_AppendNewAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewActivityRecordStore(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	var records []*domain.ActivityRecord
	for i := 0; i < 12; i++ {
		records = append(records, &domain.ActivityRecord{
			ParticipantID: "p1",
			Metric:        domain.MetricHeart,
			Date:          "2024-05-01",
			Time:          domain.NewTimeOfDay(10, 0, 0) + domain.TimeOfDay(i*5),
			Value:         float64(60 + i),
			RecordedAt:    now,
		})
	}

	n, err := store.AppendNew(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	// Overlapping re-fetch: only the new tick is inserted.
	overlap := append(records[6:], &domain.ActivityRecord{
		ParticipantID: "p1", Metric: domain.MetricHeart, Date: "2024-05-01",
		Time: domain.NewTimeOfDay(10, 1, 0), Value: 99, RecordedAt: now,
	})
	n, err = store.AppendNew(ctx, overlap)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetByDateRange(ctx, "p1", domain.MetricHeart, "2024-05-01", "2024-05-02")
	require.NoError(t, err)
	require.Len(t, got, 13)
	assert.Equal(t, domain.Date("2024-05-01"), got[0].Date)
	assert.Equal(t, 60.0, got[0].Value)

	window, err := store.GetByTimeRange(ctx, "p1", domain.MetricHeart, "2024-05-01",
		domain.NewTimeOfDay(10, 0, 30), domain.NewTimeOfDay(10, 1, 0))
	require.NoError(t, err)
	assert.Len(t, window, 7)
}

func TestActivityRecordStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewActivityRecordStore(conn)
	r := &domain.ActivityRecord{ParticipantID: "p1", Metric: domain.MetricSteps, Date: "2024-05-01", Time: 600, Value: 1}

	_, err := store.AppendNew(context.Background(), []*domain.ActivityRecord{r, r})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
