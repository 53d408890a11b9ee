package certificateValidator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"certhub/middleware"
	"certhub/models"
	"certhub/services/issuance"
	"certhub/validators"

	"github.com/gofiber/fiber/v2"
)

// FlexibleID accepts the legacy "id" field as either a JSON number or string.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a number or string")
	}
	*f = FlexibleID(n.String())
	return nil
}

// CertificateRequest is the body accepted by the generate, send and save routes.
// studentName, id and date are older spellings of fullName, certificateNumber
// and issueDate.
type CertificateRequest struct {
	FullName          string     `json:"fullName" validate:"max=255"`
	StudentName       string     `json:"studentName" validate:"max=255"`
	CourseName        string     `json:"courseName" validate:"max=255"`
	CourseSubtitle    string     `json:"courseSubtitle" validate:"max=255"`
	CertificateNumber string     `json:"certificateNumber" validate:"omitempty,max=191,certnumber"`
	ID                FlexibleID `json:"id" validate:"omitempty,max=170,certnumber"`
	IssueDate         string     `json:"issueDate"`
	Date              string     `json:"date"`
	InstructorName    string     `json:"instructorName"`
	VerificationURL   string     `json:"verificationUrl" validate:"omitempty,url"`
	Email             string     `json:"email" validate:"omitempty,email"`
	UserID            *uint      `json:"userId"`
	CourseID          string     `json:"courseId"`
	CompletionDate    string     `json:"completionDate"`
	ExpiryDate        string     `json:"expiryDate"`
	Score             *float64   `json:"score" validate:"omitempty,gte=0,lte=100"`

	completion *time.Time
	expiry     *time.Time
}

func (r *CertificateRequest) Name() string {
	if n := strings.TrimSpace(r.FullName); n != "" {
		return n
	}
	return strings.TrimSpace(r.StudentName)
}

// ToIssuance maps the body onto an issuance request. A numeric id becomes
// CERT-<id>-<year>.
func (r *CertificateRequest) ToIssuance(now time.Time) issuance.Request {
	number := strings.TrimSpace(r.CertificateNumber)
	if number == "" && r.ID != "" {
		number = issuance.NumberFromID(string(r.ID), now)
	}
	issueDate := strings.TrimSpace(r.IssueDate)
	if issueDate == "" {
		issueDate = strings.TrimSpace(r.Date)
	}
	return issuance.Request{
		FullName:          r.Name(),
		Email:             strings.TrimSpace(r.Email),
		CourseName:        strings.TrimSpace(r.CourseName),
		CourseSubtitle:    r.CourseSubtitle,
		CertificateNumber: number,
		IssueDate:         issueDate,
		InstructorName:    r.InstructorName,
		VerificationURL:   strings.TrimSpace(r.VerificationURL),
		UserID:            r.UserID,
		CourseID:          r.CourseID,
		CompletionDate:    r.completion,
		ExpiryDate:        r.expiry,
		Score:             r.Score,
	}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "02/01/2006"}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}

func parse(c *fiber.Ctx, requireEmail bool) (*CertificateRequest, map[string]string, error) {
	reqData := new(CertificateRequest)
	if err := c.BodyParser(reqData); err != nil {
		return nil, nil, err
	}

	reqData.CertificateNumber = strings.TrimSpace(reqData.CertificateNumber)
	errors := validators.Struct(reqData)
	if reqData.Name() == "" {
		errors["fullName"] = "fullName (or studentName) is required!"
	}
	if strings.TrimSpace(reqData.CourseName) == "" {
		errors["courseName"] = "courseName is required!"
	}
	if requireEmail && strings.TrimSpace(reqData.Email) == "" {
		errors["email"] = "Email address is required"
	}

	var err error
	if reqData.completion, err = parseDate(reqData.CompletionDate); err != nil {
		errors["completionDate"] = "completionDate must be a date (YYYY-MM-DD)!"
	}
	if reqData.expiry, err = parseDate(reqData.ExpiryDate); err != nil {
		errors["expiryDate"] = "expiryDate must be a date (YYYY-MM-DD)!"
	}
	return reqData, errors, nil
}

func handler(requireEmail bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData, errors, err := parse(c, requireEmail)
		if err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, middleware.KindValidation, "Invalid request body!")
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedCertificate", reqData)
		return c.Next()
	}
}

// Generate validator middleware
func Generate() fiber.Handler {
	return handler(false)
}

// Send validator middleware; like Generate but the recipient email is required.
func Send() fiber.Handler {
	return handler(true)
}

type LogViewRequest struct {
	CertificateNumber string    `json:"certificateNumber" validate:"required"`
	ViewedAt          time.Time `json:"viewedAt"`
	IPAddress         string    `json:"ipAddress" validate:"omitempty,ip"`
	UserAgent         string    `json:"userAgent" validate:"max=512"`
}

func LogView() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(LogViewRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, middleware.KindValidation, "Invalid request body!")
		}
		reqData.CertificateNumber = strings.TrimSpace(reqData.CertificateNumber)

		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedLogView", reqData)
		return c.Next()
	}
}

type RevokeRequest struct {
	CertificateNumber string `json:"certificateNumber" validate:"required"`
	Reason            string `json:"reason" validate:"max=500"`
}

func Revoke() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(RevokeRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, middleware.KindValidation, "Invalid request body!")
		}
		reqData.CertificateNumber = strings.TrimSpace(reqData.CertificateNumber)

		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedRevoke", reqData)
		return c.Next()
	}
}

type UpdateStatusRequest struct {
	CertificateNumber string                   `json:"certificateNumber" validate:"required"`
	Status            models.CertificateStatus `json:"status" validate:"required,oneof=active expired revoked"`
	Reason            string                   `json:"reason" validate:"max=500"`
}

func UpdateStatus() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(UpdateStatusRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, middleware.KindValidation, "Invalid request body!")
		}
		reqData.CertificateNumber = strings.TrimSpace(reqData.CertificateNumber)

		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}
		c.Locals("validatedStatus", reqData)
		return c.Next()
	}
}
