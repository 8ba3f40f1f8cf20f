package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/events"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const keepAliveInterval = 15 * time.Second

type EventsHandler struct {
	bus *events.Bus
}

func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Stream sends the caller's post events as Server-Sent Events until the
// client goes away.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	userID := GetUserID(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ch, unsubscribe := h.bus.Subscribe(userID, 32)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case e, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(e)
				if err != nil {
					log.Error().Err(err).Msg("could not encode post event")
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			}

			if err := w.Flush(); err != nil {
				log.Debug().Int64("user_id", userID).Msg("event stream closed")
				return
			}
		}
	}))

	return nil
}
