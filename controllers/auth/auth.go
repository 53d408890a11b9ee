package authController

import (
	"errors"
	"time"

	"certhub/middleware"
	"certhub/models"
	"certhub/store"
	authValidator "certhub/validators/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Controller serves registration, login and profile routes for both roles.
type Controller struct {
	users     *store.UserStore
	certs     store.CertificateStore
	tokens    *middleware.TokenIssuer
	saltRound int
	logger    *zap.Logger
	now       func() time.Time
}

func New(users *store.UserStore, certs store.CertificateStore, tokens *middleware.TokenIssuer, saltRound int, logger *zap.Logger) *Controller {
	if saltRound < bcrypt.MinCost {
		saltRound = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		users:     users,
		certs:     certs,
		tokens:    tokens,
		saltRound: saltRound,
		logger:    logger.Named("auth"),
		now:       time.Now,
	}
}

type accountView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func viewOf(u *models.User) accountView {
	return accountView{ID: u.ID, Name: u.FullName, Email: u.Email, Role: u.Role}
}

func roleLabel(role string) string {
	if role == models.RoleAdmin {
		return "Admin"
	}
	return "User"
}

// Register returns the registration handler for role.
func (ctl *Controller) Register(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := c.Locals("validatedRegister").(*authValidator.RegisterRequest)

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reqData.Password), ctl.saltRound)
		if err != nil {
			ctl.logger.Error("Error hashing password", zap.Error(err))
			return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindInternal, "Failed to process your request!")
		}

		user := models.User{
			FullName:   reqData.DisplayName(),
			Email:      reqData.Email,
			Role:       role,
			Password:   string(hashedPassword),
			Phone:      reqData.Phone,
			Address:    reqData.Address,
			CourseName: reqData.CourseName,
			IsActive:   true,
		}
		if err := ctl.users.Create(c.UserContext(), &user); err != nil {
			if errors.Is(err, store.ErrDuplicateAccount) {
				return middleware.ErrorResponse(c, fiber.StatusConflict, middleware.KindConflict, roleLabel(role)+" already registered with this email")
			}
			ctl.logger.Error("Error saving account", zap.String("role", role), zap.Error(err))
			return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to register!")
		}

		token, err := ctl.tokens.Generate(user.ID, user.Role)
		if err != nil {
			ctl.logger.Error("Error signing token", zap.Error(err))
			return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindInternal, "Failed to issue token!")
		}

		ctl.logger.Info("Account registered", zap.Uint("user_id", user.ID), zap.String("role", role))
		return middleware.JsonResponse(c, fiber.StatusCreated, true, roleLabel(role)+" registered successfully", fiber.Map{
			"token": token,
			"user":  viewOf(&user),
		})
	}
}

// Login returns the login handler for role.
func (ctl *Controller) Login(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := c.Locals("validatedLogin").(*authValidator.LoginRequest)

		user, err := ctl.users.FindByEmail(c.UserContext(), reqData.Email, role)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return middleware.ErrorResponse(c, fiber.StatusUnauthorized, middleware.KindUnauthorized, "Invalid credentials")
			}
			ctl.logger.Error("Error loading account", zap.Error(err))
			return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindInternal, "Failed to process your request!")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(reqData.Password)); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusUnauthorized, middleware.KindUnauthorized, "Invalid credentials")
		}
		if !user.IsActive {
			return middleware.ErrorResponse(c, fiber.StatusForbidden, middleware.KindForbidden, "Account is disabled!")
		}

		token, err := ctl.tokens.Generate(user.ID, user.Role)
		if err != nil {
			ctl.logger.Error("Error signing token", zap.Error(err))
			return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindInternal, "Failed to issue token!")
		}

		if err := ctl.users.TouchLogin(c.UserContext(), user.ID, ctl.now()); err != nil {
			ctl.logger.Warn("Failed to record login time", zap.Uint("user_id", user.ID), zap.Error(err))
		}

		return middleware.JsonResponse(c, fiber.StatusOK, true, "Login successful", fiber.Map{
			"token": token,
			"user":  viewOf(user),
		})
	}
}

func (ctl *Controller) Profile(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return middleware.ErrorResponse(c, fiber.StatusUnauthorized, middleware.KindUnauthorized, "Unauthorized")
	}

	user, err := ctl.users.FindByID(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, middleware.KindNotFound, "User not found!")
		}
		ctl.logger.Error("Error loading account", zap.Uint("user_id", userID), zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to load profile!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Profile fetched successfully", user)
}

func (ctl *Controller) UpdateProfile(c *fiber.Ctx) error {
	reqData := c.Locals("validatedProfile").(*authValidator.ProfileRequest)
	userID, ok := middleware.UserID(c)
	if !ok {
		return middleware.ErrorResponse(c, fiber.StatusUnauthorized, middleware.KindUnauthorized, "Unauthorized")
	}

	user, err := ctl.users.UpdateProfile(c.UserContext(), userID, store.ProfileUpdate{
		FullName:   reqData.FullName,
		CourseName: reqData.CourseName,
		Phone:      reqData.Phone,
		Address:    reqData.Address,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, middleware.KindNotFound, "User not found!")
		}
		ctl.logger.Error("Error updating profile", zap.Uint("user_id", userID), zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to update profile!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Profile updated successfully", user)
}

// VerifyToken answers only once JWTMiddleware has accepted the token.
func (ctl *Controller) VerifyToken(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	role, _ := c.Locals(middleware.LocalRole).(string)
	return c.JSON(fiber.Map{"valid": true, "user": fiber.Map{"id": userID, "role": role}})
}

func (ctl *Controller) MyCertificates(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return middleware.ErrorResponse(c, fiber.StatusUnauthorized, middleware.KindUnauthorized, "Unauthorized")
	}
	certs, err := ctl.certs.FindByUser(c.UserContext(), userID)
	if err != nil {
		ctl.logger.Error("Error listing certificates", zap.Uint("user_id", userID), zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to fetch certificates!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully", certs)
}

// ListUsers is the admin listing of learner accounts.
func (ctl *Controller) ListUsers(c *fiber.Ctx) error {
	users, err := ctl.users.List(c.UserContext(), models.RoleUser)
	if err != nil {
		ctl.logger.Error("Error listing users", zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to fetch users!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Users fetched successfully", users)
}

func (ctl *Controller) UserCertificates(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("userId")
	if err != nil || userID <= 0 {
		return middleware.ValidationErrorResponse(c, map[string]string{"userId": "userId must be a positive number!"})
	}
	if _, err := ctl.users.FindByID(c.UserContext(), uint(userID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return middleware.ErrorResponse(c, fiber.StatusNotFound, middleware.KindNotFound, "User not found!")
		}
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to fetch user!")
	}

	certs, err := ctl.certs.FindByUser(c.UserContext(), uint(userID))
	if err != nil {
		ctl.logger.Error("Error listing certificates", zap.Int("user_id", userID), zap.Error(err))
		return middleware.ErrorResponse(c, fiber.StatusInternalServerError, middleware.KindStore, "Failed to fetch certificates!")
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully", certs)
}
