package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"activity-nudge-lab/internal/domain"
)

var interventionCSVHeader = []string{
	"entry_id", "participant_id", "date", "time",
	"step_classification", "sedentary_classification", "step_mean", "sedentary_mean",
	"message_kind", "message", "delivered", "recorded_at",
}

// WriteInterventionCSV writes entries as CSV with a header row.
// Message texts are quoted as needed.
func WriteInterventionCSV(w io.Writer, entries []*domain.InterventionLogEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(interventionCSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			e.EntryID,
			e.ParticipantID,
			string(e.Date),
			e.Time.String(),
			string(e.StepClassification),
			string(e.SedentaryClassification),
			strconv.FormatFloat(e.StepMean, 'f', 6, 64),
			strconv.FormatFloat(e.SedentaryMean, 'f', 6, 64),
			string(e.MessageKind),
			e.Message,
			strconv.FormatBool(e.Delivered),
			e.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write entry %s: %w", e.EntryID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
