package models

import (
	"time"

	"github.com/jinzhu/now"
	"gorm.io/datatypes"
)

type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "active"
	CertificateExpired CertificateStatus = "expired"
	CertificateRevoked CertificateStatus = "revoked"
)

// Valid reports whether s is one of the known lifecycle states.
func (s CertificateStatus) Valid() bool {
	switch s {
	case CertificateActive, CertificateExpired, CertificateRevoked:
		return true
	}
	return false
}

// Certificate is an issued course-completion certificate.
// The same struct is stored by the gorm and MongoDB backends.
type Certificate struct {
	ID                uint              `json:"-" gorm:"primaryKey" bson:"-"`
	FullName          string            `json:"fullName" gorm:"not null" bson:"fullName"`
	Email             string            `json:"email" gorm:"default:''" bson:"email"`
	CourseName        string            `json:"courseName" gorm:"not null" bson:"courseName"`
	CourseSubtitle    string            `json:"courseSubtitle" bson:"courseSubtitle"`
	CertificateNumber string            `json:"certificateNumber" gorm:"uniqueIndex;size:191;not null" bson:"certificateNumber"`
	IssueDate         string            `json:"issueDate" bson:"issueDate"`
	InstructorName    string            `json:"instructorName" bson:"instructorName"`
	VerificationURL   string            `json:"verificationUrl" bson:"verificationUrl"`
	UserID            *uint             `json:"userId,omitempty" gorm:"index" bson:"userId,omitempty"`
	CourseID          string            `json:"courseId,omitempty" bson:"courseId,omitempty"`
	CompletionDate    *time.Time        `json:"completionDate,omitempty" bson:"completionDate,omitempty"`
	ExpiryDate        *time.Time        `json:"expiryDate,omitempty" gorm:"index" bson:"expiryDate,omitempty"`
	Score             *float64          `json:"score,omitempty" bson:"score,omitempty"`
	Status            CertificateStatus `json:"status" gorm:"size:16;default:'active';index" bson:"status"`
	RevokeReason      string            `json:"revokeReason,omitempty" bson:"revokeReason,omitempty"`
	VerificationCount int64             `json:"verificationCount" gorm:"default:0" bson:"verificationCount"`
	LastVerifiedAt    *time.Time        `json:"lastVerifiedAt,omitempty" bson:"lastVerifiedAt,omitempty"`
	VerificationIPs   []string          `json:"verificationIPs" gorm:"-" bson:"verificationIPs"`
	CreatedAt         time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// PublicCertificate is the subset disclosed by the public verification endpoints.
type PublicCertificate struct {
	FullName          string            `json:"fullName"`
	CourseName        string            `json:"courseName"`
	CourseSubtitle    string            `json:"courseSubtitle"`
	CertificateNumber string            `json:"certificateNumber"`
	IssueDate         string            `json:"issueDate"`
	Status            CertificateStatus `json:"status"`
}

func (c *Certificate) Public() PublicCertificate {
	return PublicCertificate{
		FullName:          c.FullName,
		CourseName:        c.CourseName,
		CourseSubtitle:    c.CourseSubtitle,
		CertificateNumber: c.CertificateNumber,
		IssueDate:         c.IssueDate,
		Status:            c.Status,
	}
}

// ExpiredAt reports whether the certificate's expiry day has ended before t.
// A certificate stays valid for the whole of its expiry day.
func (c *Certificate) ExpiredAt(t time.Time) bool {
	if c.ExpiryDate == nil {
		return false
	}
	return t.UTC().After(now.With(c.ExpiryDate.UTC()).EndOfDay())
}

// CertificateIP is one distinct client address that verified a certificate.
type CertificateIP struct {
	ID                uint      `gorm:"primaryKey"`
	CertificateNumber string    `gorm:"size:191;not null;uniqueIndex:idx_certificate_ip"`
	IPAddress         string    `gorm:"size:64;not null;uniqueIndex:idx_certificate_ip"`
	CreatedAt         time.Time
}

type ViewSource string

const (
	ViewSourceAPI      ViewSource = "api"
	ViewSourceExternal ViewSource = "external"
)

// CertificateView is one entry of the verification audit trail.
type CertificateView struct {
	ID                string         `json:"id" gorm:"primaryKey;size:36" bson:"_id"`
	CertificateNumber string         `json:"certificateNumber" gorm:"size:191;not null;index:idx_view_lookup" bson:"certificateNumber"`
	IPAddress         string         `json:"ipAddress" gorm:"size:64;index:idx_view_lookup" bson:"ipAddress"`
	Source            ViewSource     `json:"source" gorm:"size:16" bson:"source"`
	Counted           bool           `json:"counted" bson:"counted"`
	ViewedAt          time.Time      `json:"viewedAt" gorm:"index" bson:"viewedAt"`
	Metadata          datatypes.JSON `json:"metadata" bson:"metadata,omitempty"`
}
