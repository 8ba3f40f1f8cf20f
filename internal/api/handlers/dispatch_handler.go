package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/rs/zerolog/log"
)

// DispatchHandler receives deferred deliveries from QStash. The signature is
// checked by middleware before the body is trusted.
type DispatchHandler struct {
	d queue.Dispatcher
}

func NewDispatchHandler(d queue.Dispatcher) *DispatchHandler {
	return &DispatchHandler{d: d}
}

func (h *DispatchHandler) Dispatch(c *fiber.Ctx) error {
	var msg queue.DispatchMessage
	if err := c.App().Config().JSONDecoder(c.Body(), &msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid dispatch payload",
		})
	}
	if msg.PostID <= 0 || msg.Platform == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "post_id and platform are required",
		})
	}

	if err := h.d.Dispatch(c.Context(), msg); err != nil {
		log.Warn().Err(err).
			Int64("post_id", msg.PostID).
			Str("platform", msg.Platform).
			Int64("schedule_id", msg.ScheduleID).
			Str("message_id", c.Get("Upstash-Message-Id")).
			Msg("dispatch did not succeed")
		if !retryable(err) {
			c.Set(queue.NonRetryableHeader, "true")
		}
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// retryable reports whether a redelivery could change the outcome. Only
// upstream timeouts and unclassified internal errors qualify.
func retryable(err error) bool {
	switch statusFor(err) {
	case fiber.StatusServiceUnavailable, fiber.StatusInternalServerError:
		return true
	}
	return false
}
