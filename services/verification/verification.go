// Package verification answers public certificate lookups and keeps the
// verification audit trail.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"certhub/models"
	"certhub/store"

	"go.uber.org/zap"
)

const (
	RevokedMessage = "This certificate has been revoked"
	ExpiredMessage = "This certificate has expired"
)

// Result is the outcome of verifying one certificate number.
type Result struct {
	Valid       bool                      `json:"valid"`
	Status      models.CertificateStatus  `json:"status,omitempty"`
	Message     string                    `json:"message,omitempty"`
	Certificate *models.PublicCertificate `json:"certificate,omitempty"`
}

// LogViewRequest is a view reported by a page outside this service.
type LogViewRequest struct {
	CertificateNumber string
	ViewedAt          time.Time
	IPAddress         string
	UserAgent         string
}

type Service struct {
	store        store.CertificateStore
	logger       *zap.Logger
	now          func() time.Time
	dedupeWindow time.Duration
	countLogView bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDedupeWindow sets how close two counted views of a certificate may be
// before the later one stops counting. It only applies with log-view counting.
func WithDedupeWindow(d time.Duration) Option {
	return func(s *Service) { s.dedupeWindow = d }
}

// WithLogViewCounting lets externally logged views increment the
// verification count. Off by default, a logged view is audited only.
func WithLogViewCounting(enabled bool) Option {
	return func(s *Service) { s.countLogView = enabled }
}

func NewService(certs store.CertificateStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:        certs,
		logger:       logger.Named("verification"),
		now:          time.Now,
		dedupeWindow: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify looks up a certificate and applies the lifecycle rules. Only an
// active certificate is audited, and a failed audit never changes the answer.
// Unknown numbers return store.ErrNotFound.
func (s *Service) Verify(ctx context.Context, number, ip, userAgent string) (*Result, error) {
	cert, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	switch cert.Status {
	case models.CertificateRevoked:
		return &Result{Valid: false, Status: models.CertificateRevoked, Message: RevokedMessage}, nil
	case models.CertificateExpired:
		return &Result{Valid: false, Status: models.CertificateExpired, Message: ExpiredMessage}, nil
	}

	at := s.now()
	if cert.ExpiredAt(at) {
		s.markExpired(ctx, number)
		return &Result{Valid: false, Status: models.CertificateExpired, Message: ExpiredMessage}, nil
	}

	view := store.ViewRecord{
		CertificateNumber: number,
		IPAddress:         ip,
		UserAgent:         userAgent,
		Source:            models.ViewSourceAPI,
		ViewedAt:          at,
	}
	if s.countLogView {
		// A page load that already logged its view must not count twice.
		view.DedupeWindow = s.dedupeWindow
		view.DedupeSource = models.ViewSourceExternal
	}
	s.audit(ctx, view)

	public := cert.Public()
	return &Result{Valid: true, Certificate: &public}, nil
}

func (s *Service) audit(ctx context.Context, view store.ViewRecord) {
	// The caller may already be gone; the bookkeeping still completes.
	ctx = context.WithoutCancel(ctx)
	if _, err := s.store.RecordView(ctx, view); err != nil {
		s.logger.Error("Failed to record certificate verification",
			zap.String("certificate_number", view.CertificateNumber),
			zap.String("ip", view.IPAddress),
			zap.Error(err))
	}
}

func (s *Service) markExpired(ctx context.Context, number string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.store.UpdateStatus(ctx, number, models.CertificateExpired, ""); err != nil {
		s.logger.Warn("Failed to mark certificate expired",
			zap.String("certificate_number", number),
			zap.Error(err))
		return
	}
	s.logger.Info("Certificate expired on verification", zap.String("certificate_number", number))
}

// LogView records a view reported by an external verification page. The
// view is audited and its address kept. It counts only with log-view counting
// enabled and when no counted view of the certificate, from any address, lies
// within the dedupe window.
func (s *Service) LogView(ctx context.Context, req LogViewRequest) (bool, error) {
	if req.CertificateNumber == "" {
		return false, fmt.Errorf("certificate number is required")
	}
	viewedAt := req.ViewedAt
	if viewedAt.IsZero() {
		viewedAt = s.now()
	}

	counted, err := s.store.RecordView(ctx, store.ViewRecord{
		CertificateNumber: req.CertificateNumber,
		IPAddress:         req.IPAddress,
		UserAgent:         req.UserAgent,
		Source:            models.ViewSourceExternal,
		ViewedAt:          viewedAt,
		Uncounted:         !s.countLogView,
		DedupeWindow:      s.dedupeWindow,
	})
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("Failed to log certificate view",
				zap.String("certificate_number", req.CertificateNumber),
				zap.Error(err))
		}
		return false, err
	}

	s.logger.Debug("Certificate view logged",
		zap.String("certificate_number", req.CertificateNumber),
		zap.String("ip", req.IPAddress),
		zap.Bool("counted", counted))
	return counted, nil
}
