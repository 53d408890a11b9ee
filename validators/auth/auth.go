package authValidator

import (
	"regexp"
	"strings"

	"certhub/middleware"
	"certhub/validators"

	"github.com/gofiber/fiber/v2"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type RegisterRequest struct {
	Name            string `json:"name"`
	FullName        string `json:"fullName"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	Address         string `json:"address" validate:"omitempty,max=255"`
	CourseName      string `json:"courseName" validate:"omitempty,max=255"`
}

// DisplayName picks name, fullName, "firstName lastName", then the email's
// local part.
func (r *RegisterRequest) DisplayName() string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(r.FullName); n != "" {
		return n
	}
	if n := strings.TrimSpace(r.FirstName + " " + r.LastName); n != "" {
		return n
	}
	local, _, _ := strings.Cut(r.Email, "@")
	return local
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProfileRequest struct {
	FullName   *string `json:"fullName" validate:"omitempty,min=1,max=255"`
	CourseName *string `json:"courseName" validate:"omitempty,max=255"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	Address    *string `json:"address" validate:"omitempty,max=255"`
}

// Register validator middleware
func Register() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(RegisterRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, middleware.KindValidation, "Invalid request body!")
		}
		reqData.Email = strings.ToLower(strings.TrimSpace(reqData.Email))

		errors := validators.Struct(reqData)
		if _, ok := errors["email"]; !ok && !emailPattern.MatchString(reqData.Email) {
			errors["email"] = "Invalid email!"
		}
		if reqData.ConfirmPassword != "" && reqData.ConfirmPassword != reqData.Password {
			errors["confirmPassword"] = "Passwords do not match!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedRegister", reqData)
		return c.Next()
	}
}

// Login validator middleware
func Login() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(LoginRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, middleware.KindValidation, "Invalid request body!")
		}
		reqData.Email = strings.ToLower(strings.TrimSpace(reqData.Email))

		if errors := validators.Struct(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedLogin", reqData)
		return c.Next()
	}
}

func UpdateProfile() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(ProfileRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, middleware.KindValidation, "Invalid request body!")
		}
		if reqData.FullName != nil {
			trimmed := strings.TrimSpace(*reqData.FullName)
			reqData.FullName = &trimmed
		}

		errors := validators.Struct(reqData)
		if reqData.FullName != nil && *reqData.FullName == "" {
			errors["fullName"] = "fullName cannot be empty!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedProfile", reqData)
		return c.Next()
	}
}
