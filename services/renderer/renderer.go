// Package renderer composes the self-contained certificate HTML document.
package renderer

import (
	"errors"
	"fmt"
	"html"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"certhub/templates"

	"go.uber.org/zap"
)

const (
	DefaultInstructor = "CSSMBB®, PMP®, CSM® Lead Auditor, Implementor, Tutor & Assessor ISO9001, ISO14001, ISO45001, ISO22000, ISO27001, ISO14064-1, ISO14067, GHG protocol"
	DefaultSubtitle   = "Certified Quality Management Internal Auditor"
	DefaultCourse     = "ISO 9001:2015 (QMS)"
	DefaultName       = "YOUR NAME"

	// IssueDateLayout renders dates as "05 Mar 2026".
	IssueDateLayout = "02 Jan 2006"

	tokenQRCode = "qrCode"
)

var (
	tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]*)\s*\}\}`)

	textTokens = []string{"fullName", "courseName", "courseSubtitle", "certificateNumber", "issueDate", "instructorName"}

	ErrEmptyQRCode = errors.New("qr code is required")
)

// Fields are the textual values printed on a certificate.
type Fields struct {
	FullName          string
	CourseName        string
	CourseSubtitle    string
	CertificateNumber string
	IssueDate         string
	InstructorName    string
}

// Renderer substitutes certificate fields, images and the QR code into a template.
type Renderer struct {
	template string
	assets   Assets
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Renderer)

// WithClock replaces time.Now for default dates and numbers.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithTemplate replaces the embedded certificate template.
func WithTemplate(tmpl string) Option {
	return func(r *Renderer) { r.template = tmpl }
}

// New validates the template and binds the asset set. Every {{token}} in the
// template must be a known placeholder.
func New(assets Assets, logger *zap.Logger, opts ...Option) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{
		template: templates.Certificate,
		assets:   assets,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.assets == nil {
		r.assets = Assets{}
	}

	if err := validateTemplate(r.template); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadTemplate reads a template override from disk.
func LoadTemplate(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read certificate template: %w", err)
	}
	return string(raw), nil
}

func knownTokens() map[string]bool {
	known := map[string]bool{tokenQRCode: true}
	for _, t := range textTokens {
		known[t] = true
	}
	for name := range DefaultAssetFiles {
		known[string(name)] = true
	}
	return known
}

func validateTemplate(tmpl string) error {
	if strings.TrimSpace(tmpl) == "" {
		return errors.New("certificate template is empty")
	}
	known := knownTokens()
	var unknown []string
	for _, m := range tokenPattern.FindAllStringSubmatch(tmpl, -1) {
		if m[0] != "{{"+m[1]+"}}" || !known[m[1]] {
			unknown = append(unknown, m[0])
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("certificate template has unknown placeholders: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Resolve fills empty fields with their defaults.
func (r *Renderer) Resolve(f Fields) Fields {
	now := r.now()
	f.FullName = orDefault(f.FullName, DefaultName)
	f.CourseName = orDefault(f.CourseName, DefaultCourse)
	f.CourseSubtitle = orDefault(f.CourseSubtitle, DefaultSubtitle)
	f.InstructorName = orDefault(f.InstructorName, DefaultInstructor)
	f.CertificateNumber = orDefault(f.CertificateNumber, fmt.Sprintf("CERT-%d-001", now.Year()))
	f.IssueDate = orDefault(f.IssueDate, now.Format(IssueDateLayout))
	return f
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// Render returns the complete HTML document. Substitution happens in a single
// pass, so values are never rescanned for placeholders.
func (r *Renderer) Render(f Fields, qrDataURL string) (string, error) {
	if qrDataURL == "" {
		return "", ErrEmptyQRCode
	}
	f = r.Resolve(f)

	values := map[string]string{
		"fullName":          escapeText(f.FullName),
		"courseName":        escapeText(f.CourseName),
		"courseSubtitle":    escapeText(f.CourseSubtitle),
		"certificateNumber": escapeText(f.CertificateNumber),
		"issueDate":         escapeText(f.IssueDate),
		"instructorName":    escapeText(f.InstructorName),
		tokenQRCode:         escapeAttr(qrDataURL),
	}
	for name := range DefaultAssetFiles {
		values[string(name)] = escapeAttr(r.assets[name])
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", values[k])
	}

	out := strings.NewReplacer(pairs...).Replace(r.template)

	r.logger.Debug("Certificate rendered",
		zap.String("certificate_number", f.CertificateNumber),
		zap.Int("images_loaded", r.assets.Loaded()),
		zap.Int("images_total", len(DefaultAssetFiles)))
	return out, nil
}

var braceEscaper = strings.NewReplacer("{", "&#123;", "}", "&#125;")

// escapeText HTML-escapes user text; braces are escaped too so a value can never form a placeholder.
func escapeText(s string) string {
	return braceEscaper.Replace(html.EscapeString(s))
}

func escapeAttr(s string) string {
	return strings.NewReplacer(`"`, "%22", "'", "%27", "<", "%3C", ">", "%3E", "{", "%7B", "}", "%7D").Replace(s)
}
