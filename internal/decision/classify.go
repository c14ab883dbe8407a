package decision

import "activity-nudge-lab/internal/domain"

// DefaultThresholdK is the band half-width in standard deviations.
const DefaultThresholdK = 0.5

// Classify places v against the baseline band [mean - k*stddev, mean + k*stddev].
// Both comparisons are strict: a value on a bound is within the band.
// A baseline without a spread classifies every value as within.
func Classify(v float64, b domain.Baseline, k float64) domain.Classification {
	if !b.HasSpread() {
		return domain.WithinThreshold
	}
	sd := *b.StdDev
	low := b.Mean - k*sd
	high := b.Mean + k*sd

	switch {
	case v < low:
		return domain.BelowThreshold
	case v > high:
		return domain.AboveThreshold
	default:
		return domain.WithinThreshold
	}
}

// SelectMessage maps the (step, sedentary) classification pair to a message kind.
//
//	steps BELOW, sedentary ABOVE -> WALK_MORE
//	steps ABOVE, sedentary BELOW -> TAKE_A_BREAK
//	anything else                -> ON_TRACK
func SelectMessage(step, sedentary domain.Classification) domain.MessageKind {
	switch {
	case step == domain.BelowThreshold && sedentary == domain.AboveThreshold:
		return domain.MessageWalkMore
	case step == domain.AboveThreshold && sedentary == domain.BelowThreshold:
		return domain.MessageTakeABreak
	default:
		return domain.MessageOnTrack
	}
}

// Messages holds the text sent for each message kind.
type Messages struct {
	WalkMore   string `toml:"walk_more"`
	TakeABreak string `toml:"take_a_break"`
	OnTrack    string `toml:"on_track"`
}

// DefaultMessages returns the stock nudge texts.
func DefaultMessages() Messages {
	return Messages{
		WalkMore:   "You've taken fewer steps and sat longer than your recent pace. How about a short walk to refresh? 🏃",
		TakeABreak: "Lots of steps and little sitting lately. Remember to take a break ☕",
		OnTrack:    "You're on track! Keep it up 💪",
	}
}

// Text returns the message text of kind. Empty overrides fall back to the defaults.
func (m Messages) Text(kind domain.MessageKind) string {
	def := DefaultMessages()
	pick := func(s, fallback string) string {
		if s == "" {
			return fallback
		}
		return s
	}

	switch kind {
	case domain.MessageWalkMore:
		return pick(m.WalkMore, def.WalkMore)
	case domain.MessageTakeABreak:
		return pick(m.TakeABreak, def.TakeABreak)
	default:
		return pick(m.OnTrack, def.OnTrack)
	}
}
