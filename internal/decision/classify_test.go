package decision

import (
	"testing"

	"activity-nudge-lab/internal/domain"
)

func spread(v float64) *float64 { return &v }

func TestClassify_Boundaries(t *testing.T) {
	b := domain.Baseline{Mean: 100, StdDev: spread(20)}

	tests := []struct {
		v    float64
		want domain.Classification
	}{
		{89.9, domain.BelowThreshold},
		{90, domain.WithinThreshold},
		{100, domain.WithinThreshold},
		{110, domain.WithinThreshold},
		{110.1, domain.AboveThreshold},
	}
	for _, tt := range tests {
		if got := Classify(tt.v, b, 0.5); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.v, got, tt.want)
		}
	}
}

func TestClassify_ZeroStdDev(t *testing.T) {
	b := domain.Baseline{Mean: 5, StdDev: spread(0)}

	if got := Classify(5, b, 0.5); got != domain.WithinThreshold {
		t.Errorf("expected WITHIN at the mean, got %s", got)
	}
	if got := Classify(5.01, b, 0.5); got != domain.AboveThreshold {
		t.Errorf("expected ABOVE, got %s", got)
	}
}

func TestClassify_NoSpread(t *testing.T) {
	b := domain.Baseline{Mean: 5}

	for _, v := range []float64{0, 5, 500} {
		if got := Classify(v, b, 0.5); got != domain.WithinThreshold {
			t.Errorf("Classify(%v) without spread = %s, want WITHIN", v, got)
		}
	}
}

func TestSelectMessage(t *testing.T) {
	classes := []domain.Classification{domain.BelowThreshold, domain.WithinThreshold, domain.AboveThreshold}

	for _, step := range classes {
		for _, sed := range classes {
			want := domain.MessageOnTrack
			switch {
			case step == domain.BelowThreshold && sed == domain.AboveThreshold:
				want = domain.MessageWalkMore
			case step == domain.AboveThreshold && sed == domain.BelowThreshold:
				want = domain.MessageTakeABreak
			}
			if got := SelectMessage(step, sed); got != want {
				t.Errorf("SelectMessage(%s, %s) = %s, want %s", step, sed, got, want)
			}
		}
	}
}

func TestMessages_TextFallsBack(t *testing.T) {
	m := Messages{WalkMore: "go for a walk"}

	if got := m.Text(domain.MessageWalkMore); got != "go for a walk" {
		t.Errorf("expected override, got %q", got)
	}
	if got := m.Text(domain.MessageOnTrack); got != DefaultMessages().OnTrack {
		t.Errorf("expected default on-track text, got %q", got)
	}
}
