package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
)

type PlatformHandler struct {
	ps service.PlatformService
}

func NewPlatformHandler(ps service.PlatformService) *PlatformHandler {
	return &PlatformHandler{ps: ps}
}

func (h *PlatformHandler) ListAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.ps.List(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) RemoveAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountID, err := queryID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.ps.Revoke(c.Context(), userID, accountID); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
