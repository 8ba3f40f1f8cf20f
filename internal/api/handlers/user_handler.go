package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type UserHandler struct {
	s service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{s: service}
}

func (h *UserHandler) GetUserInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	userInfo, err := h.s.GetUserInfo(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(userInfo)
}

func (h *UserHandler) UpdateTimezone(c *fiber.Ctx) error {
	var req transfer.TimezoneUpdate
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.s.UpdateTimezone(c.Context(), GetUserID(c), req.Timezone); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
