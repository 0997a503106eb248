package handlers

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/tourwise/server/internal/agent/graph/conversations"
	"github.com/tourwise/server/internal/agent/graph/prompts"
	"github.com/tourwise/server/internal/llm"
	logx "github.com/tourwise/server/pkg/logger"
)

// ConfirmHandler decides whether the user has confirmed the proposed tour
// plan. Only an explicit confirmation unlocks booking.
type ConfirmHandler struct {
	completer llm.Completer
	history   *conversations.HistoryFormatter
}

func NewConfirmHandler(completer llm.Completer, history *conversations.HistoryFormatter) *ConfirmHandler {
	return &ConfirmHandler{completer: completer, history: history}
}

type confirmationPayload struct {
	IsConfirmed bool `json:"is_confirmed"`
}

func (h *ConfirmHandler) Handle(ctx context.Context, query string, messages []*schema.Message) (bool, error) {
	prompt, err := prompts.RenderConfirm(ctx, query, h.history.Context(messages))
	if err != nil {
		return false, err
	}

	payload, err := llm.CompleteStructured[confirmationPayload](ctx, h.completer, prompt)
	if err != nil {
		return false, err
	}

	logx.Info().Bool("confirmed", payload.IsConfirmed).Msg("confirmation check")
	return payload.IsConfirmed, nil
}
