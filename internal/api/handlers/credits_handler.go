package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type CreditsHandler struct {
	s service.CreditService
}

func NewCreditsHandler(service service.CreditService) *CreditsHandler {
	return &CreditsHandler{s: service}
}

func (h *CreditsHandler) GetCredits(c *fiber.Ctx) error {
	credits, err := h.s.Balance(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(transfer.CreditsResponse{
		Balance:          credits.Balance,
		MonthlyAllotment: h.s.MonthlyAllotment(),
		LastResetDate:    credits.LastResetDate,
	})
}
