package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"certhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// setupMongoStore needs a reachable server in MONGO_TEST_URI.
func setupMongoStore(t *testing.T) *MongoCertificateStore {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)

	db := client.Database(fmt.Sprintf("certhub_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := NewMongoCertificateStore(db)
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestMongoCreateDuplicate(t *testing.T) {
	s := setupMongoStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestCertificate("CERT-2026-001")))
	assert.ErrorIs(t, s.Create(ctx, newTestCertificate("CERT-2026-001")), ErrDuplicateNumber)
}

func TestMongoRecordViewAndRevoke(t *testing.T) {
	s := setupMongoStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTestCertificate("CERT-2026-001")))

	for _, ip := range []string{"10.0.0.1", "10.0.0.1", "10.0.0.2"} {
		_, err := s.RecordView(ctx, ViewRecord{CertificateNumber: "CERT-2026-001", IPAddress: ip})
		require.NoError(t, err)
	}

	got, err := s.FindByNumber(ctx, "CERT-2026-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.VerificationCount)
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, got.VerificationIPs)

	revoked, err := s.UpdateStatus(ctx, "CERT-2026-001", models.CertificateRevoked, "fraud")
	require.NoError(t, err)
	assert.Equal(t, "fraud", revoked.RevokeReason)

	_, err = s.RecordView(ctx, ViewRecord{CertificateNumber: "CERT-MISSING"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "CERT-2026-001"))
	assert.ErrorIs(t, s.Delete(ctx, "CERT-2026-001"), ErrNotFound)
}
