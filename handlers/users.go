// handlers/users.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
)

type createUserRequest struct {
	UserAddress string `json:"userAddress" form:"userAddress"`
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := h.users.CreateUser(c.UserContext(), req.UserAddress)
	if err != nil {
		return h.respondError(c, err, "failed to create user")
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *Handler) GetUser(c *fiber.Ctx) error {
	user, err := h.users.GetUser(c.UserContext(), c.Params("address"))
	if err != nil {
		return h.respondError(c, err, "failed to fetch user")
	}
	return c.JSON(user)
}
