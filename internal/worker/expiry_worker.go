package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yourorg/rentnest/internal/domain"
	"github.com/yourorg/rentnest/internal/observability/metrics"
)

// ExpiryResponse is stored on applications closed by the sweeper.
const ExpiryResponse = "Application automatically expired after 30 days of no response"

// ExpirySweeper closes pending applications that have sat without an owner
// decision for longer than the configured window.
type ExpirySweeper struct {
	applications domain.ApplicationRepository
	logger       *slog.Logger
	schedule     string
	window       time.Duration
	now          func() time.Time
}

// NewExpirySweeper creates a new expiry sweeper. schedule is a cron
// expression; window is how long a pending application may wait before it
// expires.
func NewExpirySweeper(
	applications domain.ApplicationRepository,
	logger *slog.Logger,
	schedule string,
	window time.Duration,
) *ExpirySweeper {
	if logger == nil {
		logger = slog.Default()
	}

	return &ExpirySweeper{
		applications: applications,
		logger:       logger,
		schedule:     schedule,
		window:       window,
		now:          time.Now,
	}
}

// Start runs the sweeper on its cron schedule until ctx is cancelled.
func (w *ExpirySweeper) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(w.schedule, func() {
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.Error("scheduled expiry sweep failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	w.logger.Info("expiry sweeper started",
		slog.String("schedule", w.schedule),
		slog.Duration("window", w.window),
	)

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	w.logger.Info("expiry sweeper stopped")
	return nil
}

// Sweep expires every pending application older than the window in a single
// bulk update and returns how many were closed. Applications already decided
// are untouched, so running it twice in a row expires nothing the second
// time.
func (w *ExpirySweeper) Sweep(ctx context.Context) (int64, error) {
	now := w.now()
	cutoff := now.Add(-w.window)

	expired, err := w.applications.ExpireStale(ctx, cutoff, ExpiryResponse, now)
	if err != nil {
		metrics.SweeperRun("error", 0)
		w.logger.Error("expiry sweep failed",
			slog.Time("cutoff", cutoff),
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	metrics.SweeperRun("success", expired)
	if expired > 0 {
		w.logger.Info("expired stale applications",
			slog.Int64("count", expired),
			slog.Time("cutoff", cutoff),
		)
	} else {
		w.logger.Debug("no stale applications to expire", slog.Time("cutoff", cutoff))
	}

	return expired, nil
}
