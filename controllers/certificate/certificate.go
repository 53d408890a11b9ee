package certificateController

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"certhub/middleware"
	"certhub/models"
	"certhub/services/export"
	"certhub/services/issuance"
	"certhub/services/verification"
	"certhub/store"
	"certhub/templates"
	certificateValidator "certhub/validators/certificate"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const HeaderPersisted = "X-Certificate-Persisted"

// Controller serves certificate issuance, verification and administration.
type Controller struct {
	issuer   *issuance.Service
	verifier *verification.Service
	certs    store.CertificateStore
	logger   *zap.Logger
	now      func() time.Time
}

func New(issuer *issuance.Service, verifier *verification.Service, certs store.CertificateStore, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		issuer:   issuer,
		verifier: verifier,
		certs:    certs,
		logger:   logger.Named("certificates"),
		now:      time.Now,
	}
}

// issuanceError maps service errors onto the HTTP error taxonomy.
func (ctl *Controller) issuanceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicateNumber):
		return middleware.ErrorResponse(c, fiber.StatusConflict, middleware.KindConflict, "Certificate number already exists")
	case errors.Is(err, issuance.ErrMissingEmail):
		return middleware.ValidationErrorResponse(c, map[string]string{"email": "Email address is required"})
	case errors.Is(err, issuance.ErrGeneration):
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindGeneration, "Failed to generate certificate")
	}
	ctl.logger.Error("Certificate request failed", zap.Error(err))
	return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to process certificate")
}

func (ctl *Controller) request(c *fiber.Ctx) issuance.Request {
	reqData := c.Locals("validatedCertificate").(*certificateValidator.CertificateRequest)
	return reqData.ToIssuance(ctl.now())
}

// Generate renders the certificate and returns it as a PDF download.
func (ctl *Controller) Generate(c *fiber.Ctx) error {
	res, err := ctl.issuer.Issue(c.UserContext(), ctl.request(c))
	if err != nil {
		return ctl.issuanceError(c, err)
	}

	number := res.Certificate.CertificateNumber
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, issuance.DownloadName(number)))
	c.Set("X-Certificate-Number", number)
	c.Set(HeaderPersisted, strconv.FormatBool(res.Persisted))
	return c.Status(fiber.StatusOK).Send(res.PDF)
}

// Send renders the certificate and emails it to the recipient.
func (ctl *Controller) Send(c *fiber.Ctx) error {
	req := ctl.request(c)
	res, err := ctl.issuer.Send(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, issuance.ErrMailDelivery) && res != nil {
			ctl.logger.Error("Failed to email certificate",
				zap.String("certificate_number", res.Certificate.CertificateNumber),
				zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":            false,
				"error":             middleware.KindMail,
				"message":           "Failed to send certificate email",
				"persisted":         res.Persisted,
				"certificateNumber": res.Certificate.CertificateNumber,
			})
		}
		return ctl.issuanceError(c, err)
	}

	c.Set(HeaderPersisted, strconv.FormatBool(res.Persisted))
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate sent successfully to "+req.Email, fiber.Map{
		"certificateNumber": res.Certificate.CertificateNumber,
		"verificationUrl":   res.Certificate.VerificationURL,
		"persisted":         res.Persisted,
	})
}

// Save records a certificate without producing a PDF.
func (ctl *Controller) Save(c *fiber.Ctx) error {
	cert, err := ctl.issuer.Save(c.UserContext(), ctl.request(c))
	if err != nil {
		return ctl.issuanceError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Certificate saved successfully", cert)
}

// VerifyPage serves the public verification page; it reads ?cert= itself.
func (ctl *Controller) VerifyPage(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(templates.VerifyPage)
}

// numberParam decodes the percent-encoded :number route segment.
func numberParam(c *fiber.Ctx) (string, map[string]string) {
	number, err := url.PathUnescape(c.Params("number"))
	if err != nil {
		return "", map[string]string{"number": "Certificate number is not a valid path segment!"}
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return "", map[string]string{"number": "Certificate number is required!"}
	}
	return number, nil
}

// Verify answers {valid:true, certificate} or {valid:false, status, message}.
func (ctl *Controller) Verify(c *fiber.Ctx) error {
	number, errs := numberParam(c)
	if errs != nil {
		return middleware.ValidationErrorResponse(c, errs)
	}

	res, err := ctl.verifier.Verify(c.UserContext(), number, middleware.ClientIP(c), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, middleware.KindNotFound, "Certificate not found")
		}
		ctl.logger.Error("Verification lookup failed", zap.String("certificate_number", number), zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to verify certificate")
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// LogView records a view reported by an external verification page.
func (ctl *Controller) LogView(c *fiber.Ctx) error {
	reqData := c.Locals("validatedLogView").(*certificateValidator.LogViewRequest)

	ip := reqData.IPAddress
	if ip == "" {
		ip = middleware.ClientIP(c)
	}
	ua := reqData.UserAgent
	if ua == "" {
		ua = c.Get(fiber.HeaderUserAgent)
	}

	counted, err := ctl.verifier.LogView(c.UserContext(), verification.LogViewRequest{
		CertificateNumber: reqData.CertificateNumber,
		ViewedAt:          reqData.ViewedAt,
		IPAddress:         ip,
		UserAgent:         ua,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, middleware.KindNotFound, "Certificate not found")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to log view")
	}
	return c.JSON(fiber.Map{"success": true, "message": "View logged", "counted": counted})
}

func (ctl *Controller) List(c *fiber.Ctx) error {
	certs, err := ctl.certs.FindAll(c.UserContext())
	if err != nil {
		ctl.logger.Error("Error listing certificates", zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to fetch certificates!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully", certs)
}

// Export downloads every certificate as CSV (default) or XLSX.
func (ctl *Controller) Export(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return middleware.ValidationErrorResponse(c, map[string]string{"format": "format must be csv or xlsx!"})
	}

	certs, err := ctl.certs.FindAll(c.UserContext())
	if err != nil {
		ctl.logger.Error("Error listing certificates", zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to fetch certificates!")
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, certs); err != nil {
		ctl.logger.Error("Error exporting certificates", zap.String("format", string(format)), zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindInternal, "Failed to export certificates!")
	}

	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, format.FileName(ctl.now())))
	return c.Send(buf.Bytes())
}

func (ctl *Controller) Revoke(c *fiber.Ctx) error {
	reqData := c.Locals("validatedRevoke").(*certificateValidator.RevokeRequest)
	return ctl.setStatus(c, reqData.CertificateNumber, models.CertificateRevoked, reqData.Reason, "Certificate revoked")
}

func (ctl *Controller) UpdateStatus(c *fiber.Ctx) error {
	reqData := c.Locals("validatedStatus").(*certificateValidator.UpdateStatusRequest)
	return ctl.setStatus(c, reqData.CertificateNumber, reqData.Status, reqData.Reason, "Certificate status updated")
}

func (ctl *Controller) setStatus(c *fiber.Ctx, number string, status models.CertificateStatus, reason, message string) error {
	cert, err := ctl.certs.UpdateStatus(c.UserContext(), number, status, reason)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, middleware.KindNotFound, "Certificate not found")
		}
		ctl.logger.Error("Error updating certificate status", zap.String("certificate_number", number), zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to update certificate!")
	}

	ctl.logger.Info("Certificate status changed",
		zap.String("certificate_number", number),
		zap.String("status", string(status)),
		zap.String("reason", reason))
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, cert)
}

func (ctl *Controller) Delete(c *fiber.Ctx) error {
	number, errs := numberParam(c)
	if errs != nil {
		return middleware.ValidationErrorResponse(c, errs)
	}
	if err := ctl.issuer.Delete(c.UserContext(), number); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, middleware.KindNotFound, "Certificate not found")
		}
		ctl.logger.Error("Error deleting certificate", zap.String("certificate_number", number), zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to delete certificate!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate deleted", nil)
}
