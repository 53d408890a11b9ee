package issuance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"certhub/models"
	"certhub/services/mailer"
	"certhub/services/qrcode"
	"certhub/services/renderer"
	"certhub/store"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type MockCapturer struct {
	mock.Mock
}

func (m *MockCapturer) Capture(ctx context.Context, html string) ([]byte, error) {
	args := m.Called(ctx, html)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg *mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Store(ctx context.Context, number string, pdf []byte) (string, error) {
	args := m.Called(ctx, number, pdf)
	return args.String(0), args.Error(1)
}

func (m *MockArchiver) Remove(ctx context.Context, number string) error {
	args := m.Called(ctx, number)
	return args.Error(0)
}

// failingCreateStore behaves like the real store except that inserts fail.
type failingCreateStore struct {
	store.CertificateStore
	err error
}

func (s failingCreateStore) Create(context.Context, *models.Certificate) error {
	return s.err
}

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

type fixture struct {
	store    *store.GormCertificateStore
	capturer *MockCapturer
	mailer   *MockMailer
	archiver *MockArchiver
	svc      *Service
}

func newFixture(t *testing.T, certs store.CertificateStore) *fixture {
	t.Helper()
	r, err := renderer.New(nil, zap.NewNop(), renderer.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	f := &fixture{capturer: &MockCapturer{}, mailer: &MockMailer{}, archiver: &MockArchiver{}}
	if gs, ok := certs.(*store.GormCertificateStore); ok {
		f.store = gs
	}
	f.svc = NewService(Deps{
		Store:               certs,
		QR:                  qrcode.NewEncoder(128),
		Renderer:            r,
		Capturer:            f.capturer,
		Mailer:              f.mailer,
		Archiver:            f.archiver,
		Logger:              zap.NewNop(),
		VerificationBaseURL: "https://certs.example.com/",
		Organization:        "Broadbeach Online",
		Now:                 func() time.Time { return fixedNow },
	})
	return f
}

func janeDoe() Request {
	return Request{
		FullName:          "Jane Doe",
		Email:             "Jane@Example.com",
		CourseName:        "ISO 9001:2015",
		CertificateNumber: "CERT-2026-001",
	}
}

var pdfBytes = []byte("%PDF-1.4 certificate")

func TestIssuePersistsAndArchives(t *testing.T) {
	f := newFixture(t, setupStore(t))
	f.capturer.On("Capture", mock.Anything, mock.MatchedBy(func(html string) bool {
		return strings.Contains(html, "Jane Doe") && strings.Contains(html, "data:image/png;base64,") && !strings.Contains(html, "{{")
	})).Return(pdfBytes, nil).Once()
	f.archiver.On("Store", mock.Anything, "CERT-2026-001", pdfBytes).Return("certificates/CERT-2026-001.pdf", nil).Once()

	res, err := f.svc.Issue(context.Background(), janeDoe())
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, res.PDF)
	assert.True(t, res.Persisted)
	assert.NoError(t, res.PersistErr)
	assert.Equal(t, "certificates/CERT-2026-001.pdf", res.ArchiveKey)

	got, err := f.store.FindByNumber(context.Background(), "CERT-2026-001")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateActive, got.Status)
	assert.Equal(t, "jane@example.com", got.Email)
	assert.Equal(t, "https://certs.example.com/verify?cert=CERT-2026-001", got.VerificationURL)
	assert.Equal(t, "01 Mar 2026", got.IssueDate)
	assert.Equal(t, renderer.DefaultSubtitle, got.CourseSubtitle)
	assert.Equal(t, renderer.DefaultInstructor, got.InstructorName)

	f.capturer.AssertExpectations(t)
	f.archiver.AssertExpectations(t)
}

func TestIssueRejectsExistingNumberBeforeRendering(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Create(context.Background(), &models.Certificate{FullName: "A", CourseName: "B", CertificateNumber: "CERT-2026-001"}))
	f := newFixture(t, s)

	_, err := f.svc.Issue(context.Background(), janeDoe())
	assert.ErrorIs(t, err, store.ErrDuplicateNumber)
	f.capturer.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestIssueCaptureFailureIsGenerationError(t *testing.T) {
	f := newFixture(t, setupStore(t))
	f.capturer.On("Capture", mock.Anything, mock.Anything).Return(nil, errors.New("context deadline exceeded")).Once()

	res, err := f.svc.Issue(context.Background(), janeDoe())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrGeneration)

	_, err = f.store.FindByNumber(context.Background(), "CERT-2026-001")
	assert.ErrorIs(t, err, store.ErrNotFound, "nothing is recorded for a failed generation")
}

func TestIssueQRFailureIsGenerationError(t *testing.T) {
	f := newFixture(t, setupStore(t))
	f.svc.qr = failingEncoder{}

	_, err := f.svc.Issue(context.Background(), janeDoe())
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, qrcode.ErrEmptyURL)
	f.capturer.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

type failingEncoder struct{}

func (failingEncoder) Encode(string) (string, error) { return "", qrcode.ErrEmptyURL }

func TestIssuePersistFailureStillReturnsPDF(t *testing.T) {
	base := setupStore(t)
	f := newFixture(t, failingCreateStore{CertificateStore: base, err: errors.New("disk full")})
	f.capturer.On("Capture", mock.Anything, mock.Anything).Return(pdfBytes, nil).Once()

	res, err := f.svc.Issue(context.Background(), janeDoe())
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, res.PDF)
	assert.False(t, res.Persisted)
	assert.EqualError(t, res.PersistErr, "disk full")
	f.archiver.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, setupStore(t))
	f.capturer.On("Capture", mock.Anything, mock.Anything).Return(pdfBytes, nil).Once()
	f.archiver.On("Store", mock.Anything, "CERT-2026-001", pdfBytes).Return("", errors.New("AccessDenied")).Once()

	res, err := f.svc.Issue(context.Background(), janeDoe())
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Empty(t, res.ArchiveKey)
}

func TestIssueGeneratesNumberWhenMissing(t *testing.T) {
	f := newFixture(t, setupStore(t))
	f.capturer.On("Capture", mock.Anything, mock.Anything).Return(pdfBytes, nil)
	f.archiver.On("Store", mock.Anything, mock.Anything, mock.Anything).Return("k", nil)

	req := janeDoe()
	req.CertificateNumber = ""
	first, err := f.svc.Issue(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.Issue(context.Background(), req)
	require.NoError(t, err)

	assert.Regexp(t, `^CERT-2026-[0-9A-F]{8}$`, first.Certificate.CertificateNumber)
	assert.NotEqual(t, first.Certificate.CertificateNumber, second.Certificate.CertificateNumber)
}

func TestSendAttachesPDF(t *testing.T) {
	f := newFixture(t, setupStore(t))
	f.capturer.On("Capture", mock.Anything, mock.Anything).Return(pdfBytes, nil).Once()
	f.archiver.On("Store", mock.Anything, mock.Anything, mock.Anything).Return("k", nil)

	var sent *mailer.Message
	f.mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(*mailer.Message)
	}).Return(nil).Once()

	res, err := f.svc.Send(context.Background(), janeDoe())
	require.NoError(t, err)
	assert.True(t, res.Persisted)

	require.NotNil(t, sent)
	assert.Equal(t, []string{"Jane@Example.com"}, sent.To)
	assert.Equal(t, "Certificate of Completion: ISO 9001:2015", sent.Subject)
	assert.Contains(t, sent.Text, "Dear Jane Doe")
	assert.Contains(t, sent.HTML, "https://certs.example.com/verify?cert=CERT-2026-001")
	require.Len(t, sent.Attachments, 1)
	assert.Equal(t, "Certificate_CERT-2026-001.pdf", sent.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", sent.Attachments[0].ContentType)
	assert.Equal(t, pdfBytes, sent.Attachments[0].Data)
}

func TestSendMailFailureKeepsPersistedFlag(t *testing.T) {
	f := newFixture(t, setupStore(t))
	f.capturer.On("Capture", mock.Anything, mock.Anything).Return(pdfBytes, nil).Once()
	f.archiver.On("Store", mock.Anything, mock.Anything, mock.Anything).Return("k", nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("535 auth failed")).Once()

	res, err := f.svc.Send(context.Background(), janeDoe())
	assert.ErrorIs(t, err, ErrMailDelivery)
	require.NotNil(t, res)
	assert.True(t, res.Persisted)
}

func TestSendRequiresEmail(t *testing.T) {
	f := newFixture(t, setupStore(t))
	req := janeDoe()
	req.Email = ""

	_, err := f.svc.Send(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingEmail)
	f.capturer.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestSaveAndDelete(t *testing.T) {
	f := newFixture(t, setupStore(t))
	ctx := context.Background()

	cert, err := f.svc.Save(ctx, janeDoe())
	require.NoError(t, err)
	assert.Equal(t, "CERT-2026-001", cert.CertificateNumber)

	_, err = f.svc.Save(ctx, janeDoe())
	assert.ErrorIs(t, err, store.ErrDuplicateNumber)

	f.archiver.On("Remove", mock.Anything, "CERT-2026-001").Return(errors.New("NoSuchKey")).Once()
	require.NoError(t, f.svc.Delete(ctx, "CERT-2026-001"))
	assert.ErrorIs(t, f.svc.Delete(ctx, "CERT-2026-001"), store.ErrNotFound)
	f.archiver.AssertExpectations(t)
}

func TestNumberHelpers(t *testing.T) {
	assert.Equal(t, "CERT-42-2026", NumberFromID("42", fixedNow))
	assert.Equal(t, "Certificate_CERT-1.pdf", AttachmentName("CERT-1"))
	assert.Equal(t, "certificate-CERT-1.pdf", DownloadName("CERT-1"))
}
