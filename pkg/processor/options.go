package processor

import (
	"context"
	"log/slog"
	"time"
)

// Option is a functional option for configuring a processor
type Option func(*options)

type options struct {
	ctx              context.Context
	logger           *slog.Logger
	admissionTimeout time.Duration
	retryDelay       time.Duration
}

func defaultOptions() *options {
	return &options{
		ctx:        context.Background(),
		logger:     slog.Default(),
		retryDelay: 500 * time.Millisecond,
	}
}

// WithContext sets the base context passed to handlers and the admission policy.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithLogger sets the logger for the processor
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAdmissionTimeout bounds every admission policy call.
func WithAdmissionTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.admissionTimeout = d
		}
	}
}

// WithPolicyRetryDelay sets how long to wait before asking the policy again after it failed.
// Zero disables the timer; the next submit or completion still retries.
func WithPolicyRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}
