// Package credential wraps upstream fetches with a single token refresh on expiry.
package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"activity-nudge-lab/internal/domain"
	"activity-nudge-lab/internal/fitbit"
)

var (
	// ErrExpiredAfterRetry means the token was rejected and could not be renewed.
	ErrExpiredAfterRetry = errors.New("credential expired after refresh retry")

	// ErrUpstream wraps every non-authorization fetch failure.
	ErrUpstream = errors.New("upstream error")
)

// Fetcher retrieves intraday data with an access token.
type Fetcher interface {
	FetchIntraday(ctx context.Context, accessToken string, req fitbit.IntradayRequest) (*fitbit.IntradayResponse, error)
}

// TokenRefresher renews an access token from the credential's refresh token.
type TokenRefresher interface {
	Refresh(ctx context.Context, cred domain.Credential) (*fitbit.Token, error)
}

// CredentialSaver persists a renewed credential.
type CredentialSaver interface {
	UpdateCredential(ctx context.Context, participantID string, cred domain.Credential) error
}

// RefreshObserver is notified of refresh attempts. Optional.
type RefreshObserver interface {
	ObserveRefresh(success bool)
}

// Guard performs fetches and recovers from one authorization failure per call.
type Guard struct {
	fetcher   Fetcher
	refresher TokenRefresher
	saver     CredentialSaver
	observer  RefreshObserver
	now       func() time.Time
	logger    *zap.Logger
}

// GuardOption configures Guard.
type GuardOption func(*Guard)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

// WithObserver sets the refresh observer.
func WithObserver(o RefreshObserver) GuardOption {
	return func(g *Guard) { g.observer = o }
}

// WithNow sets the clock used to compute token expiry.
func WithNow(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// NewGuard creates a refresh guard.
func NewGuard(fetcher Fetcher, refresher TokenRefresher, saver CredentialSaver, opts ...GuardOption) *Guard {
	g := &Guard{
		fetcher:   fetcher,
		refresher: refresher,
		saver:     saver,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch calls the fetcher with cred's access token.
//
// On an authorization failure the token is refreshed once, cred is updated in
// place and persisted, and the fetch is retried once. A failed refresh or a
// second authorization failure returns ErrExpiredAfterRetry. Any other failure
// returns ErrUpstream without retrying.
//
// cred is owned by the caller for the duration of the call.
func (g *Guard) Fetch(ctx context.Context, participantID string, cred *domain.Credential, req fitbit.IntradayRequest) (*fitbit.IntradayResponse, error) {
	resp, err := g.fetcher.FetchIntraday(ctx, cred.AccessToken, req)
	if err == nil {
		return resp, nil
	}
	if !errors.Is(err, fitbit.ErrUnauthorized) {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, req.Metric, err)
	}

	log := g.logger.With(zap.String("participant", participantID), zap.String("metric", string(req.Metric)))
	log.Info("access token rejected, refreshing")

	tok, err := g.refresher.Refresh(ctx, *cred)
	if err != nil {
		g.observe(false)
		log.Warn("token refresh failed", zap.Error(err))
		return nil, fmt.Errorf("%w: refresh: %w", ErrExpiredAfterRetry, err)
	}
	g.observe(true)

	tok.Apply(cred, g.now())
	if err := g.saver.UpdateCredential(ctx, participantID, *cred); err != nil {
		log.Error("persist refreshed credential failed", zap.Error(err))
	}

	resp, err = g.fetcher.FetchIntraday(ctx, cred.AccessToken, req)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, fitbit.ErrUnauthorized) {
		return nil, ErrExpiredAfterRetry
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, req.Metric, err)
}

func (g *Guard) observe(success bool) {
	if g.observer != nil {
		g.observer.ObserveRefresh(success)
	}
}
