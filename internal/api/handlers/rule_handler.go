package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type RuleHandler struct {
	s service.RuleService
}

func NewRuleHandler(service service.RuleService) *RuleHandler {
	return &RuleHandler{s: service}
}

func (h *RuleHandler) CreateRule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.RuleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	id, err := h.s.Create(c.Context(), userID, &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *RuleHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(rules)
}

func (h *RuleHandler) GetRule(c *fiber.Ctx) error {
	ruleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	rule, err := h.s.Get(c.Context(), GetUserID(c), ruleID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(rule)
}

func (h *RuleHandler) UpdateRule(c *fiber.Ctx) error {
	ruleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req transfer.RuleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.s.Update(c.Context(), GetUserID(c), ruleID, &req); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// ToggleRule flips a rule on or off with ?active=true|false.
func (h *RuleHandler) ToggleRule(c *fiber.Ctx) error {
	ruleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	active := c.QueryBool("active", true)
	if err := h.s.SetActive(c.Context(), GetUserID(c), ruleID, active); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *RuleHandler) RemoveRule(c *fiber.Ctx) error {
	ruleID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.s.Remove(c.Context(), GetUserID(c), ruleID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
