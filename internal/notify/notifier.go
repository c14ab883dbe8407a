// Package notify delivers intervention messages to participants.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrDeliveryFailed is returned when a channel rejects a message.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Notifier delivers text to a destination.
type Notifier interface {
	Notify(ctx context.Context, destination, text string) error
}

// Multi fans a message out to every notifier. All are attempted; failures are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, destination, text string) error {
	var errs []error
	for i, n := range m {
		if err := n.Notify(ctx, destination, text); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, destination, text string) error {
	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification", zap.String("destination", destination), zap.String("text", text))
	return nil
}
