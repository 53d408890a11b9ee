package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	LocalUserID = "userId"
	LocalRole   = "role"
	AuthHeader  = "x-auth-token"
)

var (
	ErrMissingSecret = errors.New("jwt secret is not configured")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims is the identity carried by a token: {"user": {"id", "role"}}.
type Claims struct {
	UserID uint
	Role   string
}

// TokenIssuer signs and verifies HS256 tokens with one shared secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs a token for the user
func (t *TokenIssuer) Generate(userID uint, role string) (string, error) {
	if len(t.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := t.now()
	claims := jwt.MapClaims{
		"user": map[string]any{
			"id":   userID,
			"role": role,
		},
		"iat": now.Unix(),
		"exp": now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates the signature and expiry and returns the embedded identity.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	if len(t.secret) == 0 {
		return nil, ErrMissingSecret
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	user, ok := claims["user"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing user claim", ErrInvalidToken)
	}
	// JSON numbers decode as float64.
	id, ok := user["id"].(float64)
	if !ok || id <= 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	role, _ := user["role"].(string)
	return &Claims{UserID: uint(id), Role: role}, nil
}

// tokenFromRequest reads x-auth-token first, then "Authorization: Bearer".
func tokenFromRequest(c *fiber.Ctx) string {
	if tok := strings.TrimSpace(c.Get(AuthHeader)); tok != "" {
		return tok
	}
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// JWTMiddleware rejects requests without a valid token and stores the user id
// and role in c.Locals.
func JWTMiddleware(issuer *TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			return ErrorResponse(c, fiber.StatusUnauthorized, KindUnauthorized, "No token, authorization denied")
		}

		claims, err := issuer.Parse(tokenString)
		if err != nil {
			return ErrorResponse(c, fiber.StatusUnauthorized, KindUnauthorized, "Token is not valid")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// UserID returns the authenticated user id set by JWTMiddleware.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalUserID).(uint)
	return id, ok
}
