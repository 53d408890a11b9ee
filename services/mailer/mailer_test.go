package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"certhub/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPDF = []byte("%PDF-1.4 fake certificate body that is long enough to wrap across more than one base64 line in the message")

func testMessage() *Message {
	return &Message{
		To:      []string{"jane@example.com"},
		Subject: "Certificate of Completion: ISO 9001:2015",
		Text:    "Dear Jane Doe",
		HTML:    "<p>Dear Jane Doe</p>",
		Attachments: []Attachment{{
			Filename:    "Certificate_CERT-2026-001.pdf",
			ContentType: "application/pdf",
			Data:        testPDF,
		}},
	}
}

type parsedPart struct {
	contentType string
	filename    string
	body        []byte
}

func parseMIME(t *testing.T, raw []byte) (*mail.Message, []parsedPart) {
	t.Helper()
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	var parts []parsedPart
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)

		ct := p.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/alternative") {
			_, altParams, err := mime.ParseMediaType(ct)
			require.NoError(t, err)
			ar := multipart.NewReader(bytes.NewReader(data), altParams["boundary"])
			for {
				ap, err := ar.NextPart()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				body, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, ap))
				require.NoError(t, err)
				parts = append(parts, parsedPart{contentType: ap.Header.Get("Content-Type"), body: body})
			}
			continue
		}

		body, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(data), "\r\n", ""))
		require.NoError(t, err)
		parts = append(parts, parsedPart{contentType: ct, filename: p.FileName(), body: body})
	}
	return msg, parts
}

func TestBuildMIMEAttachment(t *testing.T) {
	raw, err := buildMIME(Sender{Name: "LMS Platform", Address: "no-reply@example.com"}, testMessage(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	msg, parts := parseMIME(t, raw)
	assert.Equal(t, "jane@example.com", msg.Header.Get("To"))
	from, err := mail.ParseAddress(msg.Header.Get("From"))
	require.NoError(t, err)
	assert.Equal(t, "no-reply@example.com", from.Address)

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Certificate of Completion: ISO 9001:2015", subject)

	require.Len(t, parts, 3)
	assert.Equal(t, "text/plain; charset=utf-8", parts[0].contentType)
	assert.Equal(t, "Dear Jane Doe", string(parts[0].body))
	assert.Equal(t, "text/html; charset=utf-8", parts[1].contentType)
	assert.Equal(t, "Certificate_CERT-2026-001.pdf", parts[2].filename)
	assert.True(t, strings.HasPrefix(parts[2].contentType, "application/pdf"))
	assert.Equal(t, testPDF, parts[2].body)
}

func TestWrapBase64LineLength(t *testing.T) {
	out := wrapBase64(bytes.Repeat([]byte("x"), 500))
	for _, line := range strings.Split(strings.TrimSuffix(string(out), "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

func TestSMTPMailerSend(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "mailer@example.com", Password: "pw"},
		Sender{Name: "LMS Platform"}, zap.NewNop())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotRaw []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotRaw = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.Send(context.Background(), testMessage()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "mailer@example.com", gotFrom, "sender falls back to the SMTP user")
	assert.Equal(t, []string{"jane@example.com"}, gotTo)
	_, parts := parseMIME(t, gotRaw)
	assert.Equal(t, "Certificate_CERT-2026-001.pdf", parts[len(parts)-1].filename)
}

func TestSMTPMailerErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587}, Sender{Address: "a@example.com"}, nil)
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("535 auth failed") }

	err := m.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")

	assert.ErrorIs(t, m.Send(context.Background(), &Message{Subject: "x"}), ErrNoRecipients)
}

type fakeSendGrid struct {
	got    *sgmail.SGMailV3
	status int
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*rest.Response, error) {
	f.got = email
	return &rest.Response{StatusCode: f.status, Body: "{}"}, nil
}

func TestSendGridMailer(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	m := &SendGridMailer{client: fake, from: Sender{Name: "LMS Platform", Address: "no-reply@example.com"}, logger: zap.NewNop()}

	require.NoError(t, m.Send(context.Background(), testMessage()))
	require.NotNil(t, fake.got)
	assert.Equal(t, "no-reply@example.com", fake.got.From.Address)
	require.Len(t, fake.got.Attachments, 1)
	assert.Equal(t, "Certificate_CERT-2026-001.pdf", fake.got.Attachments[0].Filename)
	assert.Equal(t, base64.StdEncoding.EncodeToString(testPDF), fake.got.Attachments[0].Content)
	require.Len(t, fake.got.Personalizations, 1)
	assert.Equal(t, "jane@example.com", fake.got.Personalizations[0].To[0].Address)

	fake.status = 401
	assert.Error(t, m.Send(context.Background(), testMessage()))
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESMailer(t *testing.T) {
	fake := &fakeSES{}
	m := &SESMailer{client: fake, from: Sender{Name: "LMS Platform", Address: "no-reply@example.com"}, logger: zap.NewNop(), now: time.Now}

	require.NoError(t, m.Send(context.Background(), testMessage()))
	assert.Equal(t, "no-reply@example.com", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"jane@example.com"}, fake.input.Destination.ToAddresses)
	_, parts := parseMIME(t, fake.input.Content.Raw.Data)
	assert.Equal(t, testPDF, parts[len(parts)-1].body)

	fake.err = errors.New("MessageRejected")
	assert.Error(t, m.Send(context.Background(), testMessage()))
}

func TestNewSelectsProvider(t *testing.T) {
	m, err := New(context.Background(), config.MailConfig{Provider: config.MailSMTP, SMTPHost: "smtp.example.com", SMTPPort: 587}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	m, err = New(context.Background(), config.MailConfig{Provider: config.MailSendGrid, SendGridAPIKey: "SG.x"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SendGridMailer{}, m)

	_, err = New(context.Background(), config.MailConfig{Provider: "pigeon"}, zap.NewNop())
	assert.Error(t, err)
}

func TestCertificateEmailContent(t *testing.T) {
	e := CertificateEmail{
		Organization:    "Broadbeach Online",
		FullName:        "Jane <Doe>",
		CourseName:      "ISO 9001:2015",
		VerificationURL: "https://certs.example.com/verify?cert=CERT-2026-001",
	}
	assert.Equal(t, "Certificate of Completion: ISO 9001:2015", e.Subject())
	assert.Contains(t, e.Text(), "https://certs.example.com/verify?cert=CERT-2026-001")
	assert.Contains(t, e.HTML(), "Jane &lt;Doe&gt;")
	assert.NotContains(t, e.HTML(), "Jane <Doe>")
}
