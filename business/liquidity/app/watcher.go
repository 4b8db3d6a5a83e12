package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fd1az/liquidity-engine/internal/apperror"
	"github.com/fd1az/liquidity-engine/internal/logger"
)

// WatcherConfig holds the polling cadence.
type WatcherConfig struct {
	Interval time.Duration
	Timeout  time.Duration // per estimate, 0 = Interval
}

// Watcher re-estimates a fixed request on every tick and reports the result.
type Watcher struct {
	estimator Estimator
	reporter  Reporter
	request   EstimateRequest
	config    WatcherConfig
	logger    logger.LoggerInterface

	lastSuccess atomic.Int64 // unix nanos

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a Watcher.
func NewWatcher(estimator Estimator, reporter Reporter, req EstimateRequest, cfg WatcherConfig, log logger.LoggerInterface) *Watcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	return &Watcher{
		estimator: estimator,
		reporter:  reporter,
		request:   req,
		config:    cfg,
		logger:    log,
	}
}

// RunOnce estimates and reports a single time.
func (w *Watcher) RunOnce(ctx context.Context) (*Estimate, error) {
	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	est, err := w.estimator.Estimate(ctx, w.request)
	if err != nil {
		return nil, err
	}
	w.lastSuccess.Store(est.CreatedAt.UnixNano())

	switch est.Outcome() {
	case OutcomeNone:
		w.logger.Warn(ctx, "no liquidity for requested trade",
			"estimate_id", est.ID,
			"pair", w.request.Pair.String(),
			"side", w.request.Side)
	case OutcomePartial:
		w.logger.Warn(ctx, "insufficient liquidity for full fill",
			"estimate_id", est.ID,
			"requested", w.request.Amount.String(),
			"filled", est.Fill.FilledAmount.String(),
			"shortfall", est.Shortfall().String())
	}

	if w.reporter != nil {
		if err := w.reporter.Report(ctx, est); err != nil {
			w.logger.Warn(ctx, "failed to report estimate", "estimate_id", est.ID, "error", err)
		}
	}
	return est, nil
}

// Start runs the loop in the background until Stop or ctx ends. The first
// estimate runs immediately.
func (w *Watcher) Start(ctx context.Context) error {
	if w.config.Interval <= 0 {
		return apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("watcher interval must be positive"))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("watcher already running"))
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	w.logger.Info(ctx, "starting liquidity watcher",
		"pair", w.request.Pair.String(),
		"side", w.request.Side,
		"amount", w.request.Amount.String(),
		"interval", w.config.Interval)

	go w.run(ctx, w.done)
	return nil
}

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			args := append(apperror.LogArgs(err), "retryable", apperror.IsRetryable(err))
			w.logger.Error(ctx, "estimate failed", args...)
			if er, ok := w.reporter.(ErrorReporter); ok {
				er.ReportError(ctx, err)
			}
		}

		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "watcher stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the loop and waits for the in-flight estimate.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// LastSuccess is when the last estimate completed, zero if none has.
func (w *Watcher) LastSuccess() time.Time {
	n := w.lastSuccess.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
