package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/makeasinger/compute-worker/pkg/response"
)

const (
	tokenIssuer = "compute-worker"
	tokenTTL    = 24 * time.Hour
)

type AuthMiddleware struct {
	jwtSecret string
}

// HostClaims identifies the host application submitting tasks
type HostClaims struct {
	HostID string `json:"hostId"`
	jwt.RegisteredClaims
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: jwtSecret}
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		token, err := jwt.ParseWithClaims(parts[1], &HostClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.jwtSecret), nil
		}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		claims, ok := token.Claims.(*HostClaims)
		if !ok || !token.Valid {
			return response.Unauthorized(c, "Invalid token claims")
		}
		hostID := claims.HostID
		if hostID == "" {
			hostID = claims.Subject
		}
		if hostID == "" {
			return response.Unauthorized(c, "Token does not name a host")
		}

		c.Locals("hostId", hostID)
		return c.Next()
	}
}

// GetHostID extracts the host ID from context
func GetHostID(c *fiber.Ctx) string {
	if hostID, ok := c.Locals("hostId").(string); ok {
		return hostID
	}
	return ""
}

// GenerateToken creates a new JWT token for a host
func (m *AuthMiddleware) GenerateToken(hostID string) (string, error) {
	now := time.Now()
	claims := HostClaims{
		HostID: hostID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   hostID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.jwtSecret))
}
