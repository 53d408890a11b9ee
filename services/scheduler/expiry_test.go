package scheduler

import (
	"context"
	"testing"
	"time"

	"certhub/models"
	"certhub/store"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStore(t *testing.T) *store.GormCertificateStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := store.NewGormCertificateStore(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func seedExpiring(t *testing.T, s store.CertificateStore, number string, expiry *time.Time) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &models.Certificate{
		FullName:          "Jane Doe",
		CourseName:        "ISO 9001:2015",
		CertificateNumber: number,
		ExpiryDate:        expiry,
	}))
}

func TestRunOnceExpiresPastDays(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	today := time.Date(2026, 6, 15, 14, 0, 0, 0, time.UTC)
	lastWeek := today.AddDate(0, 0, -7)
	thisMorning := time.Date(2026, 6, 15, 0, 30, 0, 0, time.UTC)
	nextMonth := today.AddDate(0, 1, 0)

	seedExpiring(t, s, "CERT-PAST", &lastWeek)
	seedExpiring(t, s, "CERT-TODAY", &thisMorning)
	seedExpiring(t, s, "CERT-FUTURE", &nextMonth)
	seedExpiring(t, s, "CERT-NEVER", nil)
	seedExpiring(t, s, "CERT-REVOKED", &lastWeek)
	_, err := s.UpdateStatus(ctx, "CERT-REVOKED", models.CertificateRevoked, "fraud")
	require.NoError(t, err)

	sched := NewExpiryScheduler(s, "", zap.NewNop())
	sched.now = func() time.Time { return today }

	n, err := sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	want := map[string]models.CertificateStatus{
		"CERT-PAST":    models.CertificateExpired,
		"CERT-TODAY":   models.CertificateActive,
		"CERT-FUTURE":  models.CertificateActive,
		"CERT-NEVER":   models.CertificateActive,
		"CERT-REVOKED": models.CertificateRevoked,
	}
	for number, status := range want {
		got, err := s.FindByNumber(ctx, number)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status, number)
	}

	n, err = sched.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	sched := NewExpiryScheduler(setupStore(t), "not a cron line", nil)
	assert.Error(t, sched.Start())
}

func TestStartAndStop(t *testing.T) {
	sched := NewExpiryScheduler(setupStore(t), "@every 1h", zap.NewNop())
	require.NoError(t, sched.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sched.Stop(ctx)
}
