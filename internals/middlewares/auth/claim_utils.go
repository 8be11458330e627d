// internals/middlewares/auth/claim_utils.go
package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

/* ======== Extractors ======== */

func extractBearerToken(c *fiber.Ctx) (string, error) {
	// 1) Ambil dari Authorization header atau fallback cookie
	auth := strings.TrimSpace(c.Get("Authorization"))
	if auth == "" {
		if cookieTok := c.Cookies("access_token"); cookieTok != "" {
			auth = "Bearer " + cookieTok
		}
	}
	if auth == "" {
		return "", fmt.Errorf("unauthorized - No token provided")
	}

	// 2) Robust split: toleransi spasi ganda & case-insensitive
	fields := strings.Fields(auth)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", fmt.Errorf("unauthorized - Invalid token format")
	}

	// 3) Sanitasi: buang kutip di kiri/kanan & spasi
	tok := strings.Trim(strings.TrimSpace(fields[1]), "\"'")
	if tok == "" {
		return "", fmt.Errorf("unauthorized - Empty token")
	}
	return tok, nil
}

func validateTokenExpiry(claims jwt.MapClaims, skew time.Duration) error {
	expVal, ok := claims["exp"]
	if !ok {
		return fmt.Errorf("token has no exp")
	}

	var expUnix int64
	switch t := expVal.(type) {
	case float64:
		expUnix = int64(t)
	case int64:
		expUnix = t
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid exp format")
		}
		expUnix = n
	default:
		return fmt.Errorf("invalid exp type")
	}

	if time.Now().Add(-skew).Unix() >= expUnix {
		return fmt.Errorf("token expired")
	}
	return nil
}

func extractUserID(claims jwt.MapClaims) (uuid.UUID, error) {
	for _, key := range []string{"user_id", "sub", "id"} {
		if raw, ok := claims[key].(string); ok && raw != "" {
			id, err := uuid.Parse(strings.TrimSpace(raw))
			if err != nil {
				return uuid.Nil, fmt.Errorf("claim %q bukan UUID valid", key)
			}
			return id, nil
		}
	}
	return uuid.Nil, fmt.Errorf("tidak ada claim user id")
}

func extractRole(claims jwt.MapClaims) string {
	if r, ok := claims["role"].(string); ok {
		return strings.ToLower(strings.TrimSpace(r))
	}
	return ""
}
