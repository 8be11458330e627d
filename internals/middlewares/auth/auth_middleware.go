// internals/middlewares/auth/auth_middleware.go
package auth

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"presensiku_backend/internals/configs"
	helper "presensiku_backend/internals/helpers"
)

// AuthMiddleware memverifikasi bearer token dari identity module
// (secret JWT_SECRET - BUKAN QR_JWT_SECRET) lalu menyimpan
// user_id + role ke Locals untuk dipakai controller.
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := extractBearerToken(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		secretKey := configs.JWTSecret
		if secretKey == "" {
			log.Println("[ERROR] JWT_SECRET kosong")
			return fiber.NewError(fiber.StatusInternalServerError, "Missing JWT Secret")
		}

		claims := jwt.MapClaims{}
		parser := jwt.Parser{SkipClaimsValidation: true}
		if _, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Unexpected signing method")
			}
			return []byte(secretKey), nil
		}); err != nil {
			log.Println("[ERROR] Gagal parse token:", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token parse error")
		}

		// Validasi exp manual dengan toleransi skew kecil
		if err := validateTokenExpiry(claims, 30*time.Second); err != nil {
			log.Println("[ERROR] Exp validation:", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token expired")
		}

		userID, err := extractUserID(claims)
		if err != nil {
			log.Println("[ERROR] user_id:", err)
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Invalid or missing user ID")
		}

		c.Locals(helper.LocUserID, userID.String())
		c.Locals(helper.LocRole, extractRole(claims))
		helper.SetRawAccessToken(c, tokenString)

		return c.Next()
	}
}
