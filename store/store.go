// Package store persists certificates, their verification audit trail and
// user accounts.
package store

import (
	"context"
	"errors"
	"time"

	"certhub/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateNumber  = errors.New("certificate number already exists")
	ErrDuplicateAccount = errors.New("account already exists")
)

// CertificateStore is the authoritative record of issued certificates.
type CertificateStore interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByNumber(ctx context.Context, number string) (*models.Certificate, error)
	FindByUser(ctx context.Context, userID uint) ([]models.Certificate, error)
	FindAll(ctx context.Context) ([]models.Certificate, error)
	UpdateStatus(ctx context.Context, number string, status models.CertificateStatus, reason string) (*models.Certificate, error)
	// RecordView appends an audit entry, adds the address and, unless the view
	// is Uncounted or a counted view of the certificate falls inside
	// DedupeWindow, increments the verification count.
	RecordView(ctx context.Context, view ViewRecord) (counted bool, err error)
	Delete(ctx context.Context, number string) error
	// ExpireDue moves active certificates whose expiry date is before cutoff to expired.
	ExpireDue(ctx context.Context, cutoff time.Time) (int64, error)
}

// ViewRecord describes one verification of a certificate.
type ViewRecord struct {
	CertificateNumber string
	IPAddress         string
	UserAgent         string
	Source            models.ViewSource
	ViewedAt          time.Time
	// Uncounted keeps the audit row and address but never increments.
	Uncounted bool
	// DedupeWindow of zero always counts the view. Otherwise the view counts
	// only when no counted view of the same certificate, from any address,
	// lies within the window around ViewedAt.
	DedupeWindow time.Duration
	// DedupeSource limits the window check to counted views from one source.
	DedupeSource models.ViewSource
}

type viewMetadata struct {
	UserAgent  string    `json:"userAgent,omitempty"`
	ReportedAt time.Time `json:"reportedAt"`
}

var (
	_ CertificateStore = (*GormCertificateStore)(nil)
	_ CertificateStore = (*MongoCertificateStore)(nil)
)
