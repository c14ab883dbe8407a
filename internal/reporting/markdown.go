package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Intervention Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Range: %s to %s (exclusive)\n\n", r.From, r.To))

	// Totals
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Participants | %d |\n", len(r.Participants)))
	sb.WriteString(fmt.Sprintf("| Interventions | %d |\n", r.TotalInterventions))
	sb.WriteString(fmt.Sprintf("| Delivered | %d |\n", r.Delivered))
	sb.WriteString("\n")

	if r.TotalInterventions == 0 {
		sb.WriteString("No interventions in range.\n")
		return sb.String()
	}

	// Message kinds
	sb.WriteString("## Messages\n\n")
	sb.WriteString("| Kind | Count |\n")
	sb.WriteString("|------|-------|\n")
	for _, k := range r.MessageKinds {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", k.Kind, k.Count))
	}
	sb.WriteString("\n")

	// Participants
	sb.WriteString("## Participants\n\n")
	sb.WriteString("| Participant | Interventions | WALK_MORE | TAKE_A_BREAK | ON_TRACK | Delivery Rate |\n")
	sb.WriteString("|-------------|---------------|-----------|--------------|----------|---------------|\n")
	for _, p := range r.Participants {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %.2f%% |\n",
			p.ParticipantID, p.Interventions, p.WalkMore, p.TakeABreak, p.OnTrack, p.DeliveryRate()*100))
	}

	return sb.String()
}
