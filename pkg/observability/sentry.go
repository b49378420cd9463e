package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryConfig holds Sentry-specific configuration. Reporting is disabled
// when DSN is empty.
type SentryConfig struct {
	DSN          string
	Environment  string
	Release      string
	SampleRate   float64
	FlushTimeout time.Duration
}

// InitSentry initializes the Sentry SDK. It returns false without error when
// no DSN is configured.
func InitSentry(cfg SentryConfig) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return true, nil
}

// FlushSentry flushes any buffered events to Sentry.
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureError reports err to Sentry with the given tags. It is a no-op
// when Sentry is not initialized.
func CaptureError(ctx context.Context, err error, tags map[string]string) {
	hub := hubFor(ctx)
	if hub == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic to Sentry. It is a no-op when
// Sentry is not initialized.
func CapturePanic(ctx context.Context, recovered any, tags map[string]string) {
	hub := hubFor(ctx)
	if hub == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetLevel(sentry.LevelFatal)
		hub.RecoverWithContext(ctx, recovered)
	})
}

// hubFor returns the hub bound to ctx, or a clone of the current hub so
// concurrent requests never share a scope stack. It returns nil when no
// client is bound.
func hubFor(ctx context.Context) *sentry.Hub {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	if hub.Client() == nil {
		return nil
	}
	return hub
}
