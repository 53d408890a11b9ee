package database

import (
	"testing"

	"certhub/config"
	"certhub/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRunMigrations(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, RunMigrations(db, zap.New(core)))

	for _, model := range []interface{}{&models.User{}, &models.Certificate{}, &models.CertificateIP{}, &models.CertificateView{}} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.Equal(t, 1, logs.FilterMessage("Running migrations").Len())
	assert.Equal(t, 1, logs.FilterMessage("Migrations completed").Len())

	// Re-running is harmless.
	require.NoError(t, RunMigrations(db, nil))
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, Name: "certs", Host: "localhost", Port: "5432"})
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}

	_, err := Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
