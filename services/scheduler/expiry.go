// Package scheduler runs the periodic certificate lifecycle jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"certhub/store"

	"github.com/jinzhu/now"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultExpirySchedule = "0 1 * * *"

// ExpiryScheduler moves active certificates to expired once their expiry day
// has passed.
type ExpiryScheduler struct {
	store    store.CertificateStore
	logger   *zap.Logger
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

func NewExpiryScheduler(certs store.CertificateStore, schedule string, logger *zap.Logger) *ExpiryScheduler {
	if schedule == "" {
		schedule = DefaultExpirySchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpiryScheduler{
		store:    certs,
		logger:   logger.Named("expiry-scheduler"),
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		now:      time.Now,
	}
}

// Start registers the sweep and starts the cron runner.
func (s *ExpiryScheduler) Start() error {
	s.logger.Info("Initializing certificate expiry scheduler", zap.String("schedule", s.schedule))

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.logger.Info("Running certificate expiry sweep")
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("Certificate expiry sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Certificate expiry scheduler started")
	return nil
}

// Stop waits for a running sweep to finish or ctx to end.
func (s *ExpiryScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Expiry scheduler stop timed out")
	}
}

// RunOnce expires every active certificate whose expiry date falls before today.
func (s *ExpiryScheduler) RunOnce(ctx context.Context) (int64, error) {
	cutoff := now.With(s.now().UTC()).BeginningOfDay()
	n, err := s.store.ExpireDue(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Expired certificates", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
