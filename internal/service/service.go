// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the ballot store
//
// Services take repository interfaces, never a concrete store, so the same
// code runs on SQLite, MongoDB, or the in-memory fakes used in tests.
//
// STORE CALLS:
// Every repository call made from this package goes through readStore or
// writeStore (below). Both bound the call with Options.StoreTimeout and turn
// untyped driver failures into apperror.StoreUnavailable. Reads are retried
// on StoreUnavailable; writes never are, because a write that timed out may
// still have committed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/campus-ballot/internal/apperror"
)

// Defaults applied to zero Options fields.
const (
	DefaultStoreTimeout   = 5 * time.Second
	DefaultResyncInterval = 30 * time.Second

	readAttempts     = 3
	readRetryBackoff = 50 * time.Millisecond
)

// Options tunes the services. The zero value is usable.
type Options struct {
	// StoreTimeout bounds each individual store call.
	StoreTimeout time.Duration
	// Clock returns the current time. Tests pin it.
	Clock func() time.Time
	// ResyncInterval is how often a live tally is recomputed even without
	// a change notification, covering notifications a busy feed dropped.
	ResyncInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.ResyncInterval <= 0 {
		o.ResyncInterval = DefaultResyncInterval
	}
	return o
}

// base is embedded by every service: shared options plus the logger.
type base struct {
	opts   Options
	logger *slog.Logger
}

func newBase(opts Options, logger *slog.Logger) base {
	return base{opts: opts.withDefaults(), logger: logger}
}

func (b *base) now() time.Time {
	return b.opts.Clock()
}

// readStore runs an idempotent store read with a per-attempt timeout,
// retrying up to readAttempts times with doubling backoff while the store
// reports itself unavailable.
func readStore[T any](ctx context.Context, b *base, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		err     error
		backoff = readRetryBackoff
	)
	for attempt := 1; attempt <= readAttempts; attempt++ {
		var v T
		v, err = callStore(ctx, b, op, fn)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, apperror.ErrStoreUnavailable) || attempt == readAttempts {
			break
		}

		b.logger.Warn("retrying store read",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.String("error", errorCause(err)),
		)
		select {
		case <-ctx.Done():
			return zero, apperror.StoreUnavailable(op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return zero, err
}

// writeStore runs a store mutation once, with a timeout.
func writeStore(ctx context.Context, b *base, op string, fn func(context.Context) error) error {
	_, err := callStore(ctx, b, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func callStore[T any](ctx context.Context, b *base, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.StoreTimeout)
	defer cancel()

	v, err := fn(ctx)
	if err == nil {
		return v, nil
	}
	err = classifyStoreError(op, err)
	if errors.Is(err, apperror.ErrStoreUnavailable) {
		b.logger.Error("store call failed",
			slog.String("op", op),
			slog.String("error", errorCause(err)),
		)
	}
	return v, err
}

// classifyStoreError keeps typed domain errors and wraps everything else
// (driver errors, timeouts, dropped connections) as StoreUnavailable.
func classifyStoreError(op string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.StoreUnavailable(op, err)
}

// errorCause returns the most useful text for logs: the driver error behind
// a StoreUnavailable, or the error itself.
func errorCause(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return appErr.Cause.Error()
	}
	return err.Error()
}
