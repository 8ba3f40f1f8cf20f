package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type ScheduleHandler struct {
	s service.ScheduleService
}

func NewScheduleHandler(service service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{s: service}
}

// SchedulePost answers 200 when every platform was registered and 207 when
// only some were.
func (h *ScheduleHandler) SchedulePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req transfer.ScheduleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	result, err := h.s.Schedule(c.Context(), userID, postID, &req)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusOK
	for _, a := range result.Attempts {
		if !a.Succeeded() {
			status = fiber.StatusMultiStatus
			break
		}
	}
	return c.Status(status).JSON(result)
}

func (h *ScheduleHandler) BulkSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.BulkScheduleRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	result, err := h.s.BulkSchedule(c.Context(), userID, &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (h *ScheduleHandler) Preview(c *fiber.Ctx) error {
	var req transfer.PreviewRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	slots, err := h.s.Preview(c.Context(), &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(transfer.PreviewResponse{Slots: slots})
}

func (h *ScheduleHandler) CancelSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.s.Cancel(c.Context(), userID, postID); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ScheduleHandler) ListSchedules(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	schedules, err := h.s.List(c.Context(), userID, postID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(schedules)
}
