package classify

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/tourwise/server/internal/agent/graph/conversations"
	"github.com/tourwise/server/internal/agent/graph/prompts"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/llm"
	logx "github.com/tourwise/server/pkg/logger"
)

// Classifier routes a user query to one of the known intents. It never
// fails the turn: classification errors and out-of-set labels degrade to
// the general intent.
type Classifier struct {
	completer llm.Completer
	history   *conversations.HistoryFormatter
}

func NewClassifier(completer llm.Completer, history *conversations.HistoryFormatter) *Classifier {
	return &Classifier{completer: completer, history: history}
}

type intentPayload struct {
	Intent string `json:"intent"`
}

// Classify returns the intent for the query given the session history.
func (c *Classifier) Classify(ctx context.Context, query string, messages []*schema.Message) model.Intent {
	if query == "" {
		return model.IntentGeneral
	}

	prompt, err := prompts.RenderClassify(ctx, query, c.history.Context(messages))
	if err != nil {
		logx.Warn().Err(err).Msg("classify prompt render failed, routing to general")
		return model.IntentGeneral
	}

	payload, err := llm.CompleteStructured[intentPayload](ctx, c.completer, prompt)
	if err != nil {
		logx.Warn().Err(err).Msg("intent classification failed, routing to general")
		return model.IntentGeneral
	}

	intent, known := model.ParseIntent(payload.Intent)
	if !known {
		logx.Warn().Str("raw", payload.Intent).Msg("unknown intent label, routing to general")
	}
	logx.Info().Str("intent", string(intent)).Msg("classified query")
	return intent
}
