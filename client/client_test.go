package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"certhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/verify-certificate/CERT-2026-001", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"valid": true,
			"certificate": map[string]string{
				"fullName": "Jane Doe", "courseName": "ISO 9001:2015", "certificateNumber": "CERT-2026-001", "status": "active",
			},
		})
	})
	mux.HandleFunc("/api/verify-certificate/CERT-2026-002", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"valid": false, "status": "revoked", "message": "This certificate has been revoked",
		})
	})
	mux.HandleFunc("/api/verify-certificate/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"status": false, "error": "not_found", "message": "Certificate not found",
		})
	})
	mux.HandleFunc("/api/certificates/log-view", func(w http.ResponseWriter, r *http.Request) {
		var req LogViewRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true, "message": "View logged", "counted": req.IPAddress != "198.51.100.4",
		})
	})
	mux.HandleFunc("/api/admin/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"status": false, "error": "unauthorized", "message": "Invalid credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": true, "message": "Login successful", "data": map[string]string{"token": "admin-token"},
		})
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer admin-token" {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
					"status": false, "error": "unauthorized", "message": "No token, authorization denied",
				})
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/api/admin/certificates", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": true,
			"data": []map[string]interface{}{
				{"certificateNumber": "CERT-2026-001", "fullName": "Jane Doe", "status": "active", "verificationCount": 3},
			},
		})
	}))
	mux.HandleFunc("/api/admin/certificates/revoke", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": true, "message": "Certificate revoked",
			"data": map[string]string{"certificateNumber": body["certificateNumber"], "status": "revoked", "revokeReason": body["reason"]},
		})
	}))
	mux.HandleFunc("/api/admin/certificates/generate", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("X-Certificate-Number", "CERT-2026-009")
		w.Header().Set("X-Certificate-Persisted", "true")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	mux.HandleFunc("/api/admin/certificates/CERT-2026-404", authed(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"status": false, "error": "not_found", "message": "Certificate not found",
		})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVerify(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	res, err := c.Verify(ctx, "CERT-2026-001")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NotNil(t, res.Certificate)
	assert.Equal(t, "Jane Doe", res.Certificate.FullName)

	res, err = c.Verify(ctx, "CERT-2026-002")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "revoked", res.Status)

	_, err = c.Verify(ctx, "CERT-0000-000")
	assert.ErrorIs(t, err, ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Kind)
	assert.Equal(t, "Certificate not found", apiErr.Message)
}

func TestLogView(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)

	counted, err := c.LogView(context.Background(), LogViewRequest{CertificateNumber: "CERT-2026-001", IPAddress: "203.0.113.10"})
	require.NoError(t, err)
	assert.True(t, counted)

	counted, err = c.LogView(context.Background(), LogViewRequest{CertificateNumber: "CERT-2026-001", IPAddress: "198.51.100.4"})
	require.NoError(t, err)
	assert.False(t, counted)
}

func TestAdminFlow(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.ListCertificates(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.Login(ctx, "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	token, err := c.Login(ctx, "admin@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "admin-token", token)

	certs, err := c.ListCertificates(ctx)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, int64(3), certs[0].VerificationCount)

	cert, err := c.Revoke(ctx, "CERT-2026-001", "fraud")
	require.NoError(t, err)
	assert.Equal(t, models.CertificateRevoked, cert.Status)
	assert.Equal(t, "fraud", cert.RevokeReason)

	doc, err := c.Generate(ctx, CertificateRequest{FullName: "Jane Doe", CourseName: "ISO 9001:2015"})
	require.NoError(t, err)
	assert.Equal(t, "CERT-2026-009", doc.CertificateNumber)
	assert.True(t, doc.Persisted)
	assert.Equal(t, []byte("%PDF-1.4"), doc.PDF)

	err = c.Delete(ctx, "CERT-2026-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithToken(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL, WithToken("admin-token"))

	certs, err := c.ListCertificates(context.Background())
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}
