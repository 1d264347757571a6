// Package retention prunes assessment history older than the configured window.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hamza-Xoho/digital-surveyor/internal/metrics"
	"github.com/Hamza-Xoho/digital-surveyor/internal/sqlcgen"
)

// Queries is the minimal DB interface the worker needs. *sqlcgen.Queries satisfies it.
type Queries interface {
	DeleteAssessmentsBefore(ctx context.Context, arg sqlcgen.DeleteAssessmentsBeforeParams) (int64, error)
}

type Worker struct {
	log          zerolog.Logger
	q            Queries
	retention    time.Duration
	pollInterval time.Duration
	maxBackoff   time.Duration
	batchSize    int32
	now          func() time.Time
	metrics      *metrics.Metrics
}

type Options struct {
	Retention    time.Duration
	PollInterval time.Duration
	MaxBackoff   time.Duration
	BatchSize    int32
	Now          func() time.Time
}

func New(log zerolog.Logger, q Queries, opts Options, m *metrics.Metrics) *Worker {
	retention := opts.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	pi := opts.PollInterval
	if pi <= 0 {
		pi = time.Hour
	}
	mb := opts.MaxBackoff
	if mb <= 0 {
		mb = 6 * time.Hour
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 500
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		log:          log,
		q:            q,
		retention:    retention,
		pollInterval: pi,
		maxBackoff:   mb,
		batchSize:    batch,
		now:          now,
		metrics:      m,
	}
}

// Run prunes once per poll interval until ctx is done. Failures back off
// exponentially up to MaxBackoff.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.q == nil {
		return
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	var consecutiveFailures int
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := w.PruneOnce(ctx); err != nil {
			consecutiveFailures++
			w.log.Warn().Err(err).Int("failures", consecutiveFailures).Msg("history prune failed")
		} else {
			consecutiveFailures = 0
		}

		timer.Reset(backoffDuration(w.pollInterval, w.maxBackoff, consecutiveFailures))
	}
}

// PruneOnce deletes every row older than the retention window, in batches.
func (w *Worker) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)
	var total int64
	for {
		n, err := w.q.DeleteAssessmentsBefore(ctx, sqlcgen.DeleteAssessmentsBeforeParams{
			Cutoff: cutoff,
			Limit:  w.batchSize,
		})
		if err != nil {
			return total, err
		}
		total += n
		w.metrics.AddHistoryPruned(n)
		if n < int64(w.batchSize) {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
	if total > 0 {
		w.log.Info().Int64("deleted", total).Time("cutoff", cutoff).Msg("history pruned")
	}
	return total, nil
}

func backoffDuration(base, limit time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = time.Hour
	}
	if failures <= 0 {
		return base
	}

	// Exponential-ish backoff: base * 2^failures, capped.
	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > limit {
		return limit
	}
	return d
}
