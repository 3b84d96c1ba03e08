package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// UserIDKey is the Locals key holding the caller identity.
	UserIDKey = "user_id"

	// AnonymousUserID identifies callers without a token when anonymous
	// access is allowed and no device id is sent.
	AnonymousUserID = "anonymous"

	deviceHeader = "X-Device-ID"
)

// TokenValidator validates HS256 bearer tokens and yields their subject.
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator creates a validator for secret.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// Validate parses tokenString and returns the subject claim.
func (v *TokenValidator) Validate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("token is empty")
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token claims")
	}
	return claims.Subject, nil
}

// AuthMiddleware resolves the caller identity into Locals(UserIDKey).
// A valid Bearer token yields its subject. Without an Authorization header
// the caller is the X-Device-ID device or AnonymousUserID, when allowed.
// Public paths (health, metrics, swagger) bypass authentication.
func AuthMiddleware(validator *TokenValidator, allowAnonymous bool) fiber.Handler {
	publicPrefixes := []string{"/api/v1/health", "/metrics", "/swagger"}

	return func(c fiber.Ctx) error {
		path := c.Path()

		// Skip auth for public paths
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			if !allowAnonymous {
				return unauthorized(c, "missing Authorization header")
			}
			userID := AnonymousUserID
			if device := strings.TrimSpace(c.Get(deviceHeader)); device != "" {
				userID = "device:" + device
			}
			c.Locals(UserIDKey, userID)
			return c.Next()
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "invalid Authorization header format, expected 'Bearer <token>'")
		}
		if validator == nil {
			return unauthorized(c, "token authentication is not configured")
		}

		subject, err := validator.Validate(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(UserIDKey, subject)
		return c.Next()
	}
}

// UserID returns the identity stored by AuthMiddleware.
func UserID(c fiber.Ctx) string {
	if id, ok := c.Locals(UserIDKey).(string); ok {
		return id
	}
	return ""
}

func unauthorized(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
	})
}
