package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"certhub/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	certificatesCollection = "certificates"
	viewsCollection        = "certificate_views"
)

// MongoCertificateStore keeps certificates as documents, one per certificate.
// Audit updates are a single $inc/$set/$addToSet update on that document.
type MongoCertificateStore struct {
	certs *mongo.Collection
	views *mongo.Collection
	now   func() time.Time
}

func NewMongoCertificateStore(db *mongo.Database) *MongoCertificateStore {
	return &MongoCertificateStore{
		certs: db.Collection(certificatesCollection),
		views: db.Collection(viewsCollection),
		now:   time.Now,
	}
}

// EnsureIndexes creates the unique number index and the view lookup index.
func (s *MongoCertificateStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.certs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "certificateNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expiryDate", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create certificate indexes: %w", err)
	}
	_, err = s.views.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "certificateNumber", Value: 1}, {Key: "ipAddress", Value: 1}, {Key: "viewedAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create view indexes: %w", err)
	}
	return nil
}

func (s *MongoCertificateStore) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.Status == "" {
		cert.Status = models.CertificateActive
	}
	normalizeTimes(cert)
	now := s.now().UTC()
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now
	// $addToSet needs an array, never null.
	if cert.VerificationIPs == nil {
		cert.VerificationIPs = []string{}
	}

	if _, err := s.certs.InsertOne(ctx, cert); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateNumber, cert.CertificateNumber)
		}
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

func (s *MongoCertificateStore) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	var cert models.Certificate
	err := s.certs.FindOne(ctx, bson.M{"certificateNumber": number}).Decode(&cert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &cert, nil
}

func (s *MongoCertificateStore) FindByUser(ctx context.Context, userID uint) ([]models.Certificate, error) {
	return s.find(ctx, bson.M{"userId": userID})
}

func (s *MongoCertificateStore) FindAll(ctx context.Context) ([]models.Certificate, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoCertificateStore) find(ctx context.Context, filter bson.M) ([]models.Certificate, error) {
	cursor, err := s.certs.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer cursor.Close(ctx)

	certs := []models.Certificate{}
	if err := cursor.All(ctx, &certs); err != nil {
		return nil, fmt.Errorf("decode certificates: %w", err)
	}
	return certs, nil
}

func (s *MongoCertificateStore) UpdateStatus(ctx context.Context, number string, status models.CertificateStatus, reason string) (*models.Certificate, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid certificate status %q", status)
	}

	update := bson.M{"$set": bson.M{"status": status, "updatedAt": s.now().UTC()}}
	if status == models.CertificateRevoked {
		update["$set"].(bson.M)["revokeReason"] = reason
	} else {
		update["$unset"] = bson.M{"revokeReason": ""}
	}

	var cert models.Certificate
	err := s.certs.FindOneAndUpdate(ctx,
		bson.M{"certificateNumber": number},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&cert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update certificate status: %w", err)
	}
	return &cert, nil
}

// RecordView has no multi-document transaction; the certificate update itself
// is atomic, the view entry is written first.
func (s *MongoCertificateStore) RecordView(ctx context.Context, view ViewRecord) (bool, error) {
	now := s.now().UTC()
	viewedAt := view.ViewedAt.UTC()
	if view.ViewedAt.IsZero() {
		viewedAt = now
	}
	if view.Source == "" {
		view.Source = models.ViewSourceAPI
	}

	n, err := s.certs.CountDocuments(ctx, bson.M{"certificateNumber": view.CertificateNumber})
	if err != nil {
		return false, fmt.Errorf("find certificate: %w", err)
	}
	if n == 0 {
		return false, ErrNotFound
	}

	counted := !view.Uncounted
	if counted && view.DedupeWindow > 0 {
		filter := bson.M{
			"certificateNumber": view.CertificateNumber,
			"counted":           true,
			"viewedAt": bson.M{
				"$gte": viewedAt.Add(-view.DedupeWindow),
				"$lte": viewedAt.Add(view.DedupeWindow),
			},
		}
		if view.DedupeSource != "" {
			filter["source"] = view.DedupeSource
		}
		prior, err := s.views.CountDocuments(ctx, filter)
		if err != nil {
			return false, fmt.Errorf("check prior views: %w", err)
		}
		counted = prior == 0
	}

	meta, err := json.Marshal(viewMetadata{UserAgent: view.UserAgent, ReportedAt: viewedAt})
	if err != nil {
		return false, fmt.Errorf("encode view metadata: %w", err)
	}
	if _, err := s.views.InsertOne(ctx, models.CertificateView{
		ID:                uuid.NewString(),
		CertificateNumber: view.CertificateNumber,
		IPAddress:         view.IPAddress,
		Source:            view.Source,
		Counted:           counted,
		ViewedAt:          viewedAt,
		Metadata:          meta,
	}); err != nil {
		return false, fmt.Errorf("insert view: %w", err)
	}

	update := bson.M{}
	if counted {
		update["$inc"] = bson.M{"verificationCount": 1}
		update["$set"] = bson.M{"lastVerifiedAt": now}
	}
	if view.IPAddress != "" {
		update["$addToSet"] = bson.M{"verificationIPs": view.IPAddress}
	}
	if len(update) == 0 {
		return counted, nil
	}

	res, err := s.certs.UpdateOne(ctx, bson.M{"certificateNumber": view.CertificateNumber}, update)
	if err != nil {
		return false, fmt.Errorf("update verification audit: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return counted, nil
}

func (s *MongoCertificateStore) Delete(ctx context.Context, number string) error {
	res, err := s.certs.DeleteOne(ctx, bson.M{"certificateNumber": number})
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := s.views.DeleteMany(ctx, bson.M{"certificateNumber": number}); err != nil {
		return fmt.Errorf("delete views: %w", err)
	}
	return nil
}

func (s *MongoCertificateStore) ExpireDue(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.certs.UpdateMany(ctx,
		bson.M{"status": models.CertificateActive, "expiryDate": bson.M{"$lt": cutoff.UTC()}},
		bson.M{"$set": bson.M{"status": models.CertificateExpired, "updatedAt": s.now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("expire certificates: %w", err)
	}
	return res.ModifiedCount, nil
}
