package auth

import (
	"github.com/gofiber/fiber/v2"

	"presensiku_backend/internals/constants"
	helper "presensiku_backend/internals/helpers"
)

// Role guard - dipasang SETELAH AuthMiddleware.

func OnlyTeacher(feature string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if helper.GetRoleFromToken(c) != constants.RoleTeacher {
			return fiber.NewError(fiber.StatusForbidden, constants.RoleErrorTeacher(feature))
		}
		return c.Next()
	}
}

func OnlyStudent(feature string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if helper.GetRoleFromToken(c) != constants.RoleStudent {
			return fiber.NewError(fiber.StatusForbidden, constants.RoleErrorStudent(feature))
		}
		return c.Next()
	}
}
