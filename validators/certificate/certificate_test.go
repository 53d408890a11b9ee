package certificateValidator

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func echoApp() *fiber.App {
	app := fiber.New()
	echo := func(c *fiber.Ctx) error {
		req := c.Locals("validatedCertificate").(*CertificateRequest)
		return c.JSON(req.ToIssuance(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)))
	}
	app.Post("/generate", Generate(), echo)
	app.Post("/send", Send(), echo)
	return app
}

func TestGenerateLegacyFields(t *testing.T) {
	status, body := postJSON(t, echoApp(), "/generate",
		`{"studentName":"Jane Doe","courseName":"ISO 9001:2015","id":17,"date":"01/05/2026","expiryDate":"2028-05-01"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Jane Doe", body["FullName"])
	assert.Equal(t, "CERT-17-2026", body["CertificateNumber"])
	assert.Equal(t, "01/05/2026", body["IssueDate"])
	assert.Equal(t, "2028-05-01T00:00:00Z", body["ExpiryDate"])
}

func TestGenerateExplicitNumberWins(t *testing.T) {
	status, body := postJSON(t, echoApp(), "/generate",
		`{"fullName":"Jane Doe","studentName":"Other","courseName":"ISO","certificateNumber":"CERT-2026-001","id":"9"}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Jane Doe", body["FullName"])
	assert.Equal(t, "CERT-2026-001", body["CertificateNumber"])
}

func TestGenerateMissingFields(t *testing.T) {
	status, body := postJSON(t, echoApp(), "/generate", `{"email":"not-an-email","expiryDate":"tomorrow"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["error"])
	fields := body["data"].(map[string]interface{})
	assert.Contains(t, fields, "fullName")
	assert.Contains(t, fields, "courseName")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "expiryDate")
}

func TestSendRequiresEmail(t *testing.T) {
	status, body := postJSON(t, echoApp(), "/send", `{"fullName":"Jane Doe","courseName":"ISO"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Email address is required", body["data"].(map[string]interface{})["email"])
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	app := fiber.New()
	app.Post("/status", UpdateStatus(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	status, body := postJSON(t, app, "/status", `{"certificateNumber":"CERT-1","status":"suspended"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["data"].(map[string]interface{})["status"], "active, expired, revoked")
}

func TestFlexibleID(t *testing.T) {
	var v struct {
		ID FlexibleID `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"id": 42}`), &v))
	assert.Equal(t, FlexibleID("42"), v.ID)
	require.NoError(t, json.Unmarshal([]byte(`{"id": " abc "}`), &v))
	assert.Equal(t, FlexibleID("abc"), v.ID)
	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &v))
	assert.Equal(t, FlexibleID(""), v.ID)
	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &v))
}

func TestGenerateRejectsUnverifiableNumbers(t *testing.T) {
	for _, body := range []string{
		`{"fullName":"Jane Doe","courseName":"ISO","certificateNumber":"CERT 2026 001"}`,
		`{"fullName":"Jane Doe","courseName":"ISO","certificateNumber":"ISO/2026/7"}`,
		`{"fullName":"Jane Doe","courseName":"ISO","certificateNumber":"-CERT-1"}`,
		`{"fullName":"Jane Doe","courseName":"ISO","id":"7/8"}`,
	} {
		status, out := postJSON(t, echoApp(), "/generate", body)
		assert.Equal(t, fiber.StatusBadRequest, status, body)
		fields := out["data"].(map[string]interface{})
		assert.True(t, fields["certificateNumber"] != nil || fields["id"] != nil, body)
	}

	status, body := postJSON(t, echoApp(), "/generate",
		`{"fullName":"Jane Doe","courseName":"ISO","certificateNumber":" ISO_9001.2026-7 "}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ISO_9001.2026-7", body["CertificateNumber"])
}
