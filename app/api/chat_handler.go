package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"ragbot/engine"
	"ragbot/types"
)

type ChatHandler struct {
	assembler *engine.ResponseAssembler
	logger    *slog.Logger
}

func NewChatHandler(assembler *engine.ResponseAssembler) *ChatHandler {
	return &ChatHandler{
		assembler: assembler,
		logger:    slog.Default().With("handler", "chat"),
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	if params.Stream {
		return h.streamChat(c, params)
	}

	result, err := h.assembler.Respond(c.Context(), params.Message, params.History)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// streamChat sends the response as server-sent events: one event per frame,
// a single terminal complete event, then end of stream.
func (h *ChatHandler) streamChat(c *fiber.Ctx, params types.ChatParams) error {
	// The stream writer runs after this handler returns, so the request
	// context cannot back the generation. Cancelling on writer exit stops
	// the producer when the client goes away.
	ctx, cancel := context.WithCancel(context.Background())
	events, err := h.assembler.RespondStream(ctx, params.Message, params.History)
	if err != nil {
		cancel()
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("marshal stream event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				h.logger.Warn("client disconnected mid-stream", "error", err)
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}
