// helpers/token.go
package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals keys yang diisi auth middleware setelah verifikasi bearer token.
const (
	LocRawToken = "raw_token"
	LocUserID   = "user_id"
	LocRole     = "role"
)

// GetRawAccessToken mengembalikan access token dari:
// 1) cookie "access_token"
// 2) Locals("raw_token") yang diset middleware
// 3) Authorization header "Bearer <token>"
func GetRawAccessToken(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.Cookies("access_token")); v != "" {
		return v
	}
	if v, ok := c.Locals(LocRawToken).(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	const p = "Bearer "
	auth := c.Get("Authorization")
	if len(auth) > len(p) && strings.HasPrefix(auth, p) {
		return strings.TrimSpace(auth[len(p):])
	}
	return ""
}

// SetRawAccessToken dipanggil middleware auth sesudah verifikasi.
func SetRawAccessToken(c *fiber.Ctx, raw string) {
	if strings.TrimSpace(raw) != "" {
		c.Locals(LocRawToken, strings.TrimSpace(raw))
	}
}

// GetUserIDFromToken membaca user_id (UUID) hasil verifikasi middleware.
func GetUserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals(LocUserID).(string)
	if !ok || raw == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Missing user ID")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Invalid user ID")
	}
	return id, nil
}

// ParseUUIDQuery membaca query param wajib bertipe UUID.
func ParseUUIDQuery(c *fiber.Ctx, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, key+" wajib diisi")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, key+" bukan UUID valid")
	}
	return id, nil
}

// GetRoleFromToken membaca role hasil verifikasi middleware.
func GetRoleFromToken(c *fiber.Ctx) string {
	if v, ok := c.Locals(LocRole).(string); ok {
		return v
	}
	return ""
}
