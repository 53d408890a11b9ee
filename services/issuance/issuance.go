// Package issuance turns a certificate request into a PDF, records it and
// optionally emails it to the recipient.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"certhub/models"
	"certhub/services/mailer"
	"certhub/services/qrcode"
	"certhub/services/renderer"
	"certhub/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrGeneration covers QR encoding, template rendering and PDF capture.
	ErrGeneration = errors.New("certificate generation failed")
	// ErrMailDelivery means the PDF was produced but the mail transport refused it.
	ErrMailDelivery = errors.New("certificate email delivery failed")
	ErrMissingEmail = errors.New("email address is required")
)

type QREncoder interface {
	Encode(url string) (string, error)
}

type Renderer interface {
	Resolve(f renderer.Fields) renderer.Fields
	Render(f renderer.Fields, qrDataURL string) (string, error)
}

type Capturer interface {
	Capture(ctx context.Context, html string) ([]byte, error)
}

type Archiver interface {
	Store(ctx context.Context, number string, pdf []byte) (string, error)
	Remove(ctx context.Context, number string) error
}

// Request carries everything printed on or recorded with a certificate.
// Empty text fields fall back to the renderer defaults.
type Request struct {
	FullName          string
	Email             string
	CourseName        string
	CourseSubtitle    string
	CertificateNumber string
	IssueDate         string
	InstructorName    string
	VerificationURL   string
	UserID            *uint
	CourseID          string
	CompletionDate    *time.Time
	ExpiryDate        *time.Time
	Score             *float64
}

// Result is a generated certificate. When Persisted is false the PDF is still
// usable and PersistErr says why the record was not stored.
type Result struct {
	PDF         []byte
	Certificate *models.Certificate
	Persisted   bool
	PersistErr  error
	ArchiveKey  string
}

type Deps struct {
	Store               store.CertificateStore
	QR                  QREncoder
	Renderer            Renderer
	Capturer            Capturer
	Mailer              mailer.Mailer
	Archiver            Archiver
	Logger              *zap.Logger
	VerificationBaseURL string
	Organization        string
	Now                 func() time.Time
}

type Service struct {
	store        store.CertificateStore
	qr           QREncoder
	renderer     Renderer
	capturer     Capturer
	mailer       mailer.Mailer
	archiver     Archiver
	logger       *zap.Logger
	baseURL      string
	organization string
	now          func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		store:        d.Store,
		qr:           d.QR,
		renderer:     d.Renderer,
		capturer:     d.Capturer,
		mailer:       d.Mailer,
		archiver:     d.Archiver,
		logger:       d.Logger.Named("issuance"),
		baseURL:      strings.TrimRight(d.VerificationBaseURL, "/"),
		organization: d.Organization,
		now:          d.Now,
	}
}

// Issue generates the PDF and records the certificate as active.
func (s *Service) Issue(ctx context.Context, req Request) (*Result, error) {
	cert, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	qr, err := s.qr.Encode(cert.VerificationURL)
	if err != nil {
		return nil, fmt.Errorf("%w: encode qr code: %w", ErrGeneration, err)
	}
	html, err := s.renderer.Render(fieldsOf(cert), qr)
	if err != nil {
		return nil, fmt.Errorf("%w: render template: %w", ErrGeneration, err)
	}
	pdf, err := s.capturer.Capture(ctx, html)
	if err != nil {
		s.logger.Error("PDF capture failed", zap.String("certificate_number", cert.CertificateNumber), zap.Error(err))
		return nil, fmt.Errorf("%w: capture pdf: %w", ErrGeneration, err)
	}

	res := &Result{PDF: pdf, Certificate: cert}
	// The PDF exists now; losing the record must not lose the document.
	if err := s.store.Create(context.WithoutCancel(ctx), cert); err != nil {
		s.logger.Error("Failed to save certificate record",
			zap.String("certificate_number", cert.CertificateNumber),
			zap.Error(err))
		res.PersistErr = err
		return res, nil
	}
	res.Persisted = true

	if s.archiver != nil {
		key, err := s.archiver.Store(context.WithoutCancel(ctx), cert.CertificateNumber, pdf)
		if err != nil {
			s.logger.Warn("Failed to archive certificate PDF",
				zap.String("certificate_number", cert.CertificateNumber),
				zap.Error(err))
		} else {
			res.ArchiveKey = key
		}
	}

	s.logger.Info("Certificate issued",
		zap.String("certificate_number", cert.CertificateNumber),
		zap.String("course", cert.CourseName),
		zap.Int("pdf_bytes", len(pdf)))
	return res, nil
}

// Send issues the certificate and emails it as Certificate_<number>.pdf. On a
// mail failure the result is still returned so callers can report whether the
// record was stored.
func (s *Service) Send(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, ErrMissingEmail
	}
	res, err := s.Issue(ctx, req)
	if err != nil {
		return nil, err
	}

	cert := res.Certificate
	content := mailer.CertificateEmail{
		Organization:    s.organization,
		FullName:        cert.FullName,
		CourseName:      cert.CourseName,
		VerificationURL: cert.VerificationURL,
	}
	msg := &mailer.Message{
		To:      []string{strings.TrimSpace(req.Email)},
		Subject: content.Subject(),
		Text:    content.Text(),
		HTML:    content.HTML(),
		Attachments: []mailer.Attachment{{
			Filename:    AttachmentName(cert.CertificateNumber),
			ContentType: "application/pdf",
			Data:        res.PDF,
		}},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return res, fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}
	return res, nil
}

// Save records a certificate without rendering a PDF.
func (s *Service) Save(ctx context.Context, req Request) (*models.Certificate, error) {
	cert, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, cert); err != nil {
		return nil, err
	}
	s.logger.Info("Certificate saved", zap.String("certificate_number", cert.CertificateNumber))
	return cert, nil
}

// Delete removes the record and, when archiving is on, its stored PDF.
func (s *Service) Delete(ctx context.Context, number string) error {
	if err := s.store.Delete(ctx, number); err != nil {
		return err
	}
	if s.archiver != nil {
		if err := s.archiver.Remove(ctx, number); err != nil {
			s.logger.Warn("Failed to remove archived PDF", zap.String("certificate_number", number), zap.Error(err))
		}
	}
	s.logger.Info("Certificate deleted", zap.String("certificate_number", number))
	return nil
}

// prepare resolves defaults and rejects numbers already on record.
func (s *Service) prepare(ctx context.Context, req Request) (*models.Certificate, error) {
	number := strings.TrimSpace(req.CertificateNumber)
	if number == "" {
		number = GenerateNumber(s.now())
	}

	if _, err := s.store.FindByNumber(ctx, number); err == nil {
		return nil, fmt.Errorf("%s: %w", number, store.ErrDuplicateNumber)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check certificate number: %w", err)
	}

	f := s.renderer.Resolve(renderer.Fields{
		FullName:          req.FullName,
		CourseName:        req.CourseName,
		CourseSubtitle:    req.CourseSubtitle,
		CertificateNumber: number,
		IssueDate:         req.IssueDate,
		InstructorName:    req.InstructorName,
	})

	verifyURL := strings.TrimSpace(req.VerificationURL)
	if verifyURL == "" {
		verifyURL = qrcode.VerificationURL(s.baseURL, number)
	}

	return &models.Certificate{
		FullName:          f.FullName,
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		CourseName:        f.CourseName,
		CourseSubtitle:    f.CourseSubtitle,
		CertificateNumber: f.CertificateNumber,
		IssueDate:         f.IssueDate,
		InstructorName:    f.InstructorName,
		VerificationURL:   verifyURL,
		UserID:            req.UserID,
		CourseID:          req.CourseID,
		CompletionDate:    req.CompletionDate,
		ExpiryDate:        req.ExpiryDate,
		Score:             req.Score,
		Status:            models.CertificateActive,
	}, nil
}

func fieldsOf(c *models.Certificate) renderer.Fields {
	return renderer.Fields{
		FullName:          c.FullName,
		CourseName:        c.CourseName,
		CourseSubtitle:    c.CourseSubtitle,
		CertificateNumber: c.CertificateNumber,
		IssueDate:         c.IssueDate,
		InstructorName:    c.InstructorName,
	}
}

// GenerateNumber returns a fresh CERT-<year>-<8 hex> number.
func GenerateNumber(at time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("CERT-%d-%s", at.Year(), strings.ToUpper(id[:8]))
}

// NumberFromID builds the number used when a caller passes a numeric id.
func NumberFromID(id string, at time.Time) string {
	return fmt.Sprintf("CERT-%s-%d", id, at.Year())
}

func AttachmentName(number string) string {
	return "Certificate_" + number + ".pdf"
}

// DownloadName is the file name offered to browsers.
func DownloadName(number string) string {
	return "certificate-" + number + ".pdf"
}
