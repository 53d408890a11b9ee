package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"certhub/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCertificateStore keeps certificates in a relational database.
type GormCertificateStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormCertificateStore(db *gorm.DB) *GormCertificateStore {
	return &GormCertificateStore{db: db, now: time.Now}
}

// AutoMigrate creates or updates the certificate tables.
func (s *GormCertificateStore) AutoMigrate() error {
	return s.db.AutoMigrate(&models.Certificate{}, &models.CertificateIP{}, &models.CertificateView{})
}

func (s *GormCertificateStore) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.Status == "" {
		cert.Status = models.CertificateActive
	}
	normalizeTimes(cert)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := numberExists(tx, cert.CertificateNumber)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateNumber
		}
		return tx.Create(cert).Error
	})
	if err == nil {
		cert.VerificationIPs = []string{}
		return nil
	}
	if errors.Is(err, ErrDuplicateNumber) {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, cert.CertificateNumber)
	}

	// A concurrent insert may have won the unique index between check and create.
	if exists, lookupErr := numberExists(s.db.WithContext(ctx), cert.CertificateNumber); lookupErr == nil && exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, cert.CertificateNumber)
	}
	return fmt.Errorf("create certificate: %w", err)
}

// normalizeTimes stores every timestamp in UTC so range filters compare consistently.
func normalizeTimes(cert *models.Certificate) {
	if cert.CompletionDate != nil {
		t := cert.CompletionDate.UTC()
		cert.CompletionDate = &t
	}
	if cert.ExpiryDate != nil {
		t := cert.ExpiryDate.UTC()
		cert.ExpiryDate = &t
	}
}

func numberExists(db *gorm.DB, number string) (bool, error) {
	var count int64
	if err := db.Model(&models.Certificate{}).Where("certificate_number = ?", number).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check certificate number: %w", err)
	}
	return count > 0, nil
}

func (s *GormCertificateStore) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	db := s.db.WithContext(ctx)

	var cert models.Certificate
	if err := db.Where("certificate_number = ?", number).First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}

	certs := []models.Certificate{cert}
	if err := attachIPs(db, certs); err != nil {
		return nil, err
	}
	return &certs[0], nil
}

func (s *GormCertificateStore) FindByUser(ctx context.Context, userID uint) ([]models.Certificate, error) {
	db := s.db.WithContext(ctx)

	var certs []models.Certificate
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&certs).Error; err != nil {
		return nil, fmt.Errorf("list user certificates: %w", err)
	}
	if err := attachIPs(db, certs); err != nil {
		return nil, err
	}
	return certs, nil
}

func (s *GormCertificateStore) FindAll(ctx context.Context) ([]models.Certificate, error) {
	db := s.db.WithContext(ctx)

	var certs []models.Certificate
	if err := db.Order("created_at DESC").Order("id DESC").Find(&certs).Error; err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	if err := attachIPs(db, certs); err != nil {
		return nil, err
	}
	return certs, nil
}

// attachIPs fills VerificationIPs for every certificate in one query.
func attachIPs(db *gorm.DB, certs []models.Certificate) error {
	if len(certs) == 0 {
		return nil
	}

	numbers := make([]string, len(certs))
	for i := range certs {
		numbers[i] = certs[i].CertificateNumber
		certs[i].VerificationIPs = []string{}
	}

	var rows []models.CertificateIP
	if err := db.Where("certificate_number IN ?", numbers).Order("id ASC").Find(&rows).Error; err != nil {
		return fmt.Errorf("load verification addresses: %w", err)
	}

	index := make(map[string]int, len(certs))
	for i := range certs {
		index[certs[i].CertificateNumber] = i
	}
	for _, row := range rows {
		if i, ok := index[row.CertificateNumber]; ok {
			certs[i].VerificationIPs = append(certs[i].VerificationIPs, row.IPAddress)
		}
	}
	return nil
}

func (s *GormCertificateStore) UpdateStatus(ctx context.Context, number string, status models.CertificateStatus, reason string) (*models.Certificate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid certificate status %q", status)
	}
	if status != models.CertificateRevoked {
		reason = ""
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := numberExists(tx, number)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return tx.Model(&models.Certificate{}).
			Where("certificate_number = ?", number).
			Updates(map[string]any{
				"status":        status,
				"revoke_reason": reason,
				"updated_at":    s.now().UTC(),
			}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update certificate status: %w", err)
	}
	return s.FindByNumber(ctx, number)
}

// RecordView runs the whole audit update in one transaction: the view row,
// the expression increment and the conflict-ignoring address insert. The
// certificate row is locked first so concurrent views of one certificate run
// their window check one at a time.
func (s *GormCertificateStore) RecordView(ctx context.Context, view ViewRecord) (bool, error) {
	now := s.now().UTC()
	viewedAt := view.ViewedAt.UTC()
	if view.ViewedAt.IsZero() {
		viewedAt = now
	}
	if view.Source == "" {
		view.Source = models.ViewSourceAPI
	}

	meta, err := json.Marshal(viewMetadata{UserAgent: view.UserAgent, ReportedAt: viewedAt})
	if err != nil {
		return false, fmt.Errorf("encode view metadata: %w", err)
	}

	counted := !view.Uncounted
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Certificate
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("certificate_number = ?", view.CertificateNumber).
			Take(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lock certificate: %w", err)
		}

		if counted && view.DedupeWindow > 0 {
			q := tx.Model(&models.CertificateView{}).
				Where("certificate_number = ? AND counted = ?", view.CertificateNumber, true).
				Where("viewed_at BETWEEN ? AND ?", viewedAt.Add(-view.DedupeWindow), viewedAt.Add(view.DedupeWindow))
			if view.DedupeSource != "" {
				q = q.Where("source = ?", view.DedupeSource)
			}
			var prior int64
			if err := q.Count(&prior).Error; err != nil {
				return fmt.Errorf("check prior views: %w", err)
			}
			counted = prior == 0
		}

		row := models.CertificateView{
			ID:                uuid.NewString(),
			CertificateNumber: view.CertificateNumber,
			IPAddress:         view.IPAddress,
			Source:            view.Source,
			Counted:           counted,
			ViewedAt:          viewedAt,
			Metadata:          datatypes.JSON(meta),
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert view: %w", err)
		}

		if counted {
			if err := tx.Model(&models.Certificate{}).
				Where("certificate_number = ?", view.CertificateNumber).
				Updates(map[string]any{
					"verification_count": gorm.Expr("verification_count + ?", 1),
					"last_verified_at":   now,
				}).Error; err != nil {
				return fmt.Errorf("increment verification count: %w", err)
			}
		}

		if view.IPAddress != "" {
			ip := models.CertificateIP{CertificateNumber: view.CertificateNumber, IPAddress: view.IPAddress, CreatedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ip).Error; err != nil {
				return fmt.Errorf("add verification address: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}
	return counted, nil
}

func (s *GormCertificateStore) Delete(ctx context.Context, number string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("certificate_number = ?", number).Delete(&models.Certificate{})
		if result.Error != nil {
			return fmt.Errorf("delete certificate: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("certificate_number = ?", number).Delete(&models.CertificateIP{}).Error; err != nil {
			return fmt.Errorf("delete verification addresses: %w", err)
		}
		if err := tx.Where("certificate_number = ?", number).Delete(&models.CertificateView{}).Error; err != nil {
			return fmt.Errorf("delete views: %w", err)
		}
		return nil
	})
}

func (s *GormCertificateStore) ExpireDue(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Certificate{}).
		Where("status = ? AND expiry_date IS NOT NULL AND expiry_date < ?", models.CertificateActive, cutoff.UTC()).
		Updates(map[string]any{"status": models.CertificateExpired, "updated_at": s.now().UTC()})
	if result.Error != nil {
		return 0, fmt.Errorf("expire certificates: %w", result.Error)
	}
	return result.RowsAffected, nil
}
