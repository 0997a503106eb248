package handlers

import (
	"context"

	"github.com/tourwise/server/internal/agent/graph/prompts"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/llm"
	"github.com/tourwise/server/internal/ranking"
	"github.com/tourwise/server/internal/retrieval"
	logx "github.com/tourwise/server/pkg/logger"
)

// PolicyHandler answers questions about company policies, cancellations and
// refunds, grounded exclusively in the ingested policy document.
type PolicyHandler struct {
	searcher  retrieval.Searcher
	ranker    *ranking.Ranker
	completer llm.Completer
	config    model.PolicyConfig
}

func NewPolicyHandler(searcher retrieval.Searcher, ranker *ranking.Ranker, completer llm.Completer, config model.PolicyConfig) *PolicyHandler {
	return &PolicyHandler{
		searcher:  searcher,
		ranker:    ranker,
		completer: completer,
		config:    config,
	}
}

// Handle retrieves policy passages, reranks them and generates a grounded
// answer. With nothing retrieved the fixed refusal line is returned directly,
// without consulting the model.
func (h *PolicyHandler) Handle(ctx context.Context, query string) (string, error) {
	passages, err := h.searcher.Search(ctx, query, h.config.RetrieveK, map[string]string{
		"filename": h.config.Filename,
	})
	if err != nil {
		return "", err
	}

	top := h.ranker.Rank(ctx, query, passages, h.config.RerankK)
	logx.Debug().Int("retrieved", len(passages)).Int("ranked", len(top)).Msg("policy retrieval")
	if len(top) == 0 {
		logx.Info().Str("query", query).Msg("no policy passages found, refusing")
		return prompts.PolicyRefusal, nil
	}

	prompt, err := prompts.RenderPolicy(ctx, query, retrieval.Contents(top))
	if err != nil {
		return "", err
	}
	return h.completer.Complete(ctx, prompt)
}
