package domain

import "time"

// Credential is the upstream OAuth credential owned by a participant.
// AccessToken and RefreshToken are rotated in place by the refresh guard.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	ClientSecret string
	ExpiresAt    time.Time // zero when unknown
}

// Participant is a study subject identified by an experiment identifier.
// Corresponds to participants table.
type Participant struct {
	ExperimentID            string
	DisplayName             string
	NotificationDestination string // chat destination, e.g. a Slack DM channel
	Credential              Credential
	Active                  bool
	CreatedAt               time.Time
}
