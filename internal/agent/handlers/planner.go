package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/errgroup"

	"github.com/tourwise/server/internal/agent/graph/conversations"
	"github.com/tourwise/server/internal/agent/graph/prompts"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/llm"
	"github.com/tourwise/server/internal/retrieval"
	logx "github.com/tourwise/server/pkg/logger"
)

const (
	typeAttraction = "tour_attraction"
	typeHotels     = "hotels"
	typeTravelHour = "travel_hour"
)

// PlanOutcome is the result of a planning turn: either a complete plan or a
// clarification asking for the missing constraints. Never both.
type PlanOutcome struct {
	Plan          *model.TourPlan
	Clarification string
	Missing       []string
	Constraints   *model.TourConstraints
}

// PlannerHandler builds day-by-day itineraries. It extracts trip constraints
// from the conversation, fetches attractions, travel info and hotels for the
// resolved cities in parallel, then synthesizes a structured plan from that
// data only.
type PlannerHandler struct {
	searcher           retrieval.Searcher
	completer          llm.Completer
	history            *conversations.HistoryFormatter
	config             model.PlanningConfig
	clarificationLimit int
}

func NewPlannerHandler(searcher retrieval.Searcher, completer llm.Completer, history *conversations.HistoryFormatter, config model.PlanningConfig, clarificationLimit int) *PlannerHandler {
	return &PlannerHandler{
		searcher:           searcher,
		completer:          completer,
		history:            history,
		config:             config,
		clarificationLimit: clarificationLimit,
	}
}

func (h *PlannerHandler) Handle(ctx context.Context, query string, messages []*schema.Message) (*PlanOutcome, error) {
	constraints, err := h.extractConstraints(ctx, query, messages)
	if err != nil {
		return nil, err
	}

	if missing := constraints.Missing(); len(missing) > 0 {
		logx.Info().Strs("missing", missing).Msg("planning constraints incomplete")
		return &PlanOutcome{
			Clarification: h.clarification(missing, messages),
			Missing:       missing,
			Constraints:   constraints,
		}, nil
	}

	attractions, travelInfo, hotels, err := h.fetchPlanData(ctx, query, constraints)
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.RenderPlanning(ctx, query, constraints, attractions, travelInfo, hotels)
	if err != nil {
		return nil, err
	}

	plan, err := llm.CompleteStructured[model.TourPlan](ctx, h.completer, prompt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(plan.Title) == "" {
		plan.Title = fmt.Sprintf("Tour Plan for %s to %s", *constraints.FromCity, *constraints.ToCity)
	}

	logx.Info().
		Str("title", plan.Title).
		Int("days", len(plan.Days)).
		Int("retrieved", len(attractions)+len(travelInfo)+len(hotels)).
		Strs("sources_used", plan.SourcesUsed).
		Msg("tour plan synthesized")
	return &PlanOutcome{Plan: plan, Constraints: constraints}, nil
}

// extractConstraints pulls {days, from_city, to_city} out of the query and
// history. Cities outside the allow-list are cleared so they surface as
// missing rather than reaching the retrieval filters.
func (h *PlannerHandler) extractConstraints(ctx context.Context, query string, messages []*schema.Message) (*model.TourConstraints, error) {
	prompt, err := prompts.RenderConstraints(ctx, query, h.history.Context(messages), h.config.AllowedCities)
	if err != nil {
		return nil, err
	}

	constraints, err := llm.CompleteStructured[model.TourConstraints](ctx, h.completer, prompt)
	if err != nil {
		return nil, err
	}
	constraints.Normalize()

	if constraints.FromCity != nil && !h.cityAllowed(*constraints.FromCity) {
		logx.Warn().Str("city", *constraints.FromCity).Msg("origin city outside allow-list")
		constraints.FromCity = nil
	}
	if constraints.ToCity != nil && !h.cityAllowed(*constraints.ToCity) {
		logx.Warn().Str("city", *constraints.ToCity).Msg("destination city outside allow-list")
		constraints.ToCity = nil
	}
	if constraints.Days != nil && *constraints.Days <= 0 {
		constraints.Days = nil
	}
	return constraints, nil
}

// fetchPlanData issues the three retrieval calls in parallel. All three must
// succeed before synthesis: any failure cancels the others and fails the
// planning turn.
func (h *PlannerHandler) fetchPlanData(ctx context.Context, query string, c *model.TourConstraints) (attractions, travelInfo, hotels []string, err error) {
	to := *c.ToCity
	from := *c.FromCity
	k := h.config.RetrievalTopK

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attractions, err = h.fetch(gctx, query, k, map[string]string{"city": to, "type": typeAttraction})
		return err
	})
	g.Go(func() error {
		var err error
		travelInfo, err = h.fetch(gctx, query, k, map[string]string{"to_city": to, "from_city": from, "type": typeTravelHour})
		return err
	})
	g.Go(func() error {
		var err error
		hotels, err = h.fetch(gctx, query, k, map[string]string{"city": to, "type": typeHotels})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return attractions, travelInfo, hotels, nil
}

func (h *PlannerHandler) fetch(ctx context.Context, query string, k int, filter map[string]string) ([]string, error) {
	passages, err := h.searcher.HybridSearch(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	return retrieval.Contents(passages), nil
}

// clarificationPrefix marks assistant turns that asked for missing
// constraints, so repeated asks can be detected from history alone.
const clarificationPrefix = "To plan your tour I still need:"

// clarification names exactly the missing fields. No model call is involved.
// After too many consecutive asks the reply switches to a worked example
// instead of repeating the same question.
func (h *PlannerHandler) clarification(missing []string, messages []*schema.Message) string {
	if h.clarificationLimit > 0 && trailingClarifications(messages)+1 >= h.clarificationLimit {
		return fmt.Sprintf(
			"I seem to be having trouble collecting your trip details. Try something like: \"Plan a 3 day trip from %s to %s\".",
			h.config.AllowedCities[0],
			h.config.AllowedCities[1%len(h.config.AllowedCities)],
		)
	}
	return fmt.Sprintf(
		"%s %s. We offer tour packages for %s.",
		clarificationPrefix,
		strings.Join(missing, ", "),
		strings.Join(h.config.AllowedCities, ", "),
	)
}

// trailingClarifications counts how many of the most recent assistant
// messages were clarification asks, stopping at the first that was not.
func trailingClarifications(messages []*schema.Message) int {
	count := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i] == nil || messages[i].Role != schema.Assistant {
			continue
		}
		if !strings.HasPrefix(messages[i].Content, clarificationPrefix) {
			break
		}
		count++
	}
	return count
}

func (h *PlannerHandler) cityAllowed(city string) bool {
	for _, allowed := range h.config.AllowedCities {
		if city == allowed {
			return true
		}
	}
	return false
}
