// Package client is a Go client for the certificate service HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"certhub/models"

	"github.com/go-resty/resty/v2"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

type envelope struct {
	Status  bool            `json:"status"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// VerifyResult mirrors the public verification answer.
type VerifyResult struct {
	Valid       bool                      `json:"valid"`
	Status      string                    `json:"status,omitempty"`
	Message     string                    `json:"message,omitempty"`
	Certificate *models.PublicCertificate `json:"certificate,omitempty"`
}

// LogViewRequest reports a view seen by an external verification page.
type LogViewRequest struct {
	CertificateNumber string    `json:"certificateNumber"`
	ViewedAt          time.Time `json:"viewedAt,omitempty"`
	IPAddress         string    `json:"ipAddress,omitempty"`
	UserAgent         string    `json:"userAgent,omitempty"`
}

// CertificateRequest is the issuance payload accepted by the generate, send and save routes.
type CertificateRequest struct {
	FullName          string   `json:"fullName"`
	Email             string   `json:"email,omitempty"`
	CourseName        string   `json:"courseName"`
	CourseSubtitle    string   `json:"courseSubtitle,omitempty"`
	CertificateNumber string   `json:"certificateNumber,omitempty"`
	IssueDate         string   `json:"issueDate,omitempty"`
	InstructorName    string   `json:"instructorName,omitempty"`
	VerificationURL   string   `json:"verificationUrl,omitempty"`
	UserID            *uint    `json:"userId,omitempty"`
	CourseID          string   `json:"courseId,omitempty"`
	CompletionDate    string   `json:"completionDate,omitempty"`
	ExpiryDate        string   `json:"expiryDate,omitempty"`
	Score             *float64 `json:"score,omitempty"`
}

// Document is a generated certificate PDF.
type Document struct {
	CertificateNumber string
	Persisted         bool
	PDF               []byte
}

type Client struct {
	http *resty.Client
}

type Option func(*resty.Client)

func WithToken(token string) Option {
	return func(c *resty.Client) { c.SetAuthToken(token) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

func New(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(2*time.Minute).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

// SetToken replaces the bearer token used for authenticated routes.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

func (c *Client) Verify(ctx context.Context, number string) (*VerifyResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("number", number).
		Get("/api/verify-certificate/{number}")
	if err != nil {
		return nil, fmt.Errorf("verify request: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	var out VerifyResult
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &out, nil
}

// LogView reports an external view and returns whether it was counted.
func (c *Client) LogView(ctx context.Context, req LogViewRequest) (bool, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/api/certificates/log-view")
	if err != nil {
		return false, fmt.Errorf("log-view request: %w", err)
	}
	if resp.IsError() {
		return false, apiError(resp)
	}

	var out struct {
		Success bool `json:"success"`
		Counted bool `json:"counted"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return false, fmt.Errorf("decode log-view response: %w", err)
	}
	return out.Counted, nil
}

// Login authenticates an admin account, keeps the token for later calls and returns it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var data struct {
		Token string `json:"token"`
	}
	err := c.call(ctx, http.MethodPost, "/api/admin/login", map[string]string{
		"email":    email,
		"password": password,
	}, &data)
	if err != nil {
		return "", err
	}
	if data.Token == "" {
		return "", errors.New("login response carried no token")
	}
	c.SetToken(data.Token)
	return data.Token, nil
}

func (c *Client) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	var certs []models.Certificate
	if err := c.call(ctx, http.MethodGet, "/api/admin/certificates", nil, &certs); err != nil {
		return nil, err
	}
	return certs, nil
}

func (c *Client) Save(ctx context.Context, req CertificateRequest) (*models.Certificate, error) {
	var cert models.Certificate
	if err := c.call(ctx, http.MethodPost, "/api/admin/certificates", req, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

func (c *Client) Revoke(ctx context.Context, number, reason string) (*models.Certificate, error) {
	var cert models.Certificate
	err := c.call(ctx, http.MethodPost, "/api/admin/certificates/revoke", map[string]string{
		"certificateNumber": number,
		"reason":            reason,
	}, &cert)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (c *Client) UpdateStatus(ctx context.Context, number string, status models.CertificateStatus, reason string) (*models.Certificate, error) {
	var cert models.Certificate
	err := c.call(ctx, http.MethodPost, "/api/admin/certificates/update-status", map[string]string{
		"certificateNumber": number,
		"status":            string(status),
		"reason":            reason,
	}, &cert)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (c *Client) Delete(ctx context.Context, number string) error {
	return c.call(ctx, http.MethodDelete, "/api/admin/certificates/"+url.PathEscape(number), nil, nil)
}

// Generate asks the admin generate route for a PDF.
func (c *Client) Generate(ctx context.Context, req CertificateRequest) (*Document, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/pdf").
		SetBody(req).
		Post("/api/admin/certificates/generate")
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}

	persisted, _ := strconv.ParseBool(resp.Header().Get("X-Certificate-Persisted"))
	return &Document{
		CertificateNumber: resp.Header().Get("X-Certificate-Number"),
		Persisted:         persisted,
		PDF:               resp.Body(),
	}, nil
}

// Export downloads all certificate records as csv or xlsx.
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("format", format).
		Get("/api/admin/certificates/export")
	if err != nil {
		return nil, fmt.Errorf("export request: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return resp.Body(), nil
}

// call sends body as JSON and decodes the data field of the response envelope into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return apiError(resp)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func apiError(resp *resty.Response) error {
	e := &APIError{StatusCode: resp.StatusCode()}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err == nil {
		e.Kind = env.Error
		e.Message = env.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(e.StatusCode)
	}
	return e
}
