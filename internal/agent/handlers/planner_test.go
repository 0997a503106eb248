package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/tourwise/server/internal/agent/graph/conversations"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/llm"
	"github.com/tourwise/server/internal/retrieval"
)

type fakeSearcher struct {
	mu      sync.Mutex
	filters []map[string]string
	results map[string][]retrieval.ScoredPassage
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int, filter map[string]string) ([]retrieval.ScoredPassage, error) {
	return f.record(filter)
}

func (f *fakeSearcher) HybridSearch(ctx context.Context, query string, k int, filter map[string]string) ([]retrieval.ScoredPassage, error) {
	return f.record(filter)
}

func (f *fakeSearcher) record(filter map[string]string) ([]retrieval.ScoredPassage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[filter["type"]], nil
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.filters)
}

func passageFor(content string) []retrieval.ScoredPassage {
	return []retrieval.ScoredPassage{{Passage: retrieval.Passage{Content: content}, Score: 0.9}}
}

func testPlanningConfig() model.PlanningConfig {
	return model.PlanningConfig{
		AllowedCities: []string{"kathmandu", "pokhara", "chitwan"},
		RetrievalTopK: 3,
	}
}

func testHistory() *conversations.HistoryFormatter {
	var config model.ConversationConfig
	config.History.MaxTurns = 10
	return conversations.NewHistoryFormatter(config)
}

// plannerCompleter answers the constraint extraction prompt with the given
// JSON and the plan synthesis prompt with a canned itinerary.
func plannerCompleter(t *testing.T, constraintsJSON string) llm.Completer {
	t.Helper()
	return llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "retrieve the necessary entity"):
			return constraintsJSON, nil
		case strings.Contains(prompt, "expert tour planner"):
			return `{"title": "Tour Plan for kathmandu to pokhara", "days": [{"day": 1, "title": "Arrival", "schedule": ["09:00 lakeside walk"], "hotel": "Hotel Barahi", "transport": ["tourist bus"]}], "confirmation": "Shall I book this plan?", "sources_used": ["Hotel Barahi"]}`, nil
		default:
			t.Fatalf("unexpected prompt: %s", prompt)
			return "", nil
		}
	})
}

func TestPlannerFullConstraintsProducesPlan(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]retrieval.ScoredPassage{
		typeAttraction: passageFor("Phewa Lake boating"),
		typeTravelHour: passageFor("Kathmandu to Pokhara: 6h by tourist bus"),
		typeHotels:     passageFor("Hotel Barahi, lakeside"),
	}}
	completer := plannerCompleter(t, `{"days": 3, "from_city": "Kathmandu", "to_city": "Pokhara"}`)
	h := NewPlannerHandler(searcher, completer, testHistory(), testPlanningConfig(), 3)

	outcome, err := h.Handle(context.Background(), "plan a 3 day trip", nil)
	require.NoError(t, err)
	require.NotNil(t, outcome.Plan)
	require.Empty(t, outcome.Clarification)
	require.Equal(t, "Tour Plan for kathmandu to pokhara", outcome.Plan.Title)
	require.Len(t, outcome.Plan.Days, 1)

	require.Equal(t, 3, searcher.calls())
	require.ElementsMatch(t, []map[string]string{
		{"city": "pokhara", "type": typeAttraction},
		{"to_city": "pokhara", "from_city": "kathmandu", "type": typeTravelHour},
		{"city": "pokhara", "type": typeHotels},
	}, searcher.filters)
}

func TestPlannerFillsDefaultTitleWhenModelOmitsIt(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]retrieval.ScoredPassage{
		typeAttraction: passageFor("Phewa Lake boating"),
		typeTravelHour: passageFor("Kathmandu to Pokhara: 6h by tourist bus"),
		typeHotels:     passageFor("Hotel Barahi, lakeside"),
	}}
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "retrieve the necessary entity"):
			return `{"days": 3, "from_city": "kathmandu", "to_city": "pokhara"}`, nil
		case strings.Contains(prompt, "expert tour planner"):
			return `{"title": "", "days": [{"day": 1, "title": "Arrival", "schedule": ["09:00 lakeside walk"], "hotel": "Hotel Barahi", "transport": ["tourist bus"]}], "confirmation": "Shall I book this plan?"}`, nil
		default:
			t.Fatalf("unexpected prompt: %s", prompt)
			return "", nil
		}
	})
	h := NewPlannerHandler(searcher, completer, testHistory(), testPlanningConfig(), 3)

	outcome, err := h.Handle(context.Background(), "plan a 3 day trip", nil)
	require.NoError(t, err)
	require.NotNil(t, outcome.Plan)
	require.Equal(t, "Tour Plan for kathmandu to pokhara", outcome.Plan.Title)
}

func TestPlannerMissingConstraintsAsksWithoutRetrieval(t *testing.T) {
	searcher := &fakeSearcher{}
	completer := plannerCompleter(t, `{"days": null, "from_city": "kathmandu", "to_city": null}`)
	h := NewPlannerHandler(searcher, completer, testHistory(), testPlanningConfig(), 3)

	outcome, err := h.Handle(context.Background(), "plan me a trip", nil)
	require.NoError(t, err)
	require.Nil(t, outcome.Plan)
	require.Equal(t, []string{"days", "to_city"}, outcome.Missing)
	require.Contains(t, outcome.Clarification, "days, to_city")
	require.Contains(t, outcome.Clarification, "kathmandu, pokhara, chitwan")
	require.Zero(t, searcher.calls())
}

func TestPlannerDisallowedCityTreatedAsMissing(t *testing.T) {
	searcher := &fakeSearcher{}
	completer := plannerCompleter(t, `{"days": 2, "from_city": "kathmandu", "to_city": "Paris"}`)
	h := NewPlannerHandler(searcher, completer, testHistory(), testPlanningConfig(), 3)

	outcome, err := h.Handle(context.Background(), "2 day trip to paris", nil)
	require.NoError(t, err)
	require.Nil(t, outcome.Plan)
	require.Equal(t, []string{"to_city"}, outcome.Missing)
	require.Zero(t, searcher.calls())
}

func TestPlannerNonPositiveDaysTreatedAsMissing(t *testing.T) {
	completer := plannerCompleter(t, `{"days": 0, "from_city": "kathmandu", "to_city": "pokhara"}`)
	h := NewPlannerHandler(&fakeSearcher{}, completer, testHistory(), testPlanningConfig(), 3)

	outcome, err := h.Handle(context.Background(), "trip please", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"days"}, outcome.Missing)
}

func TestPlannerRetrievalFailureFailsTurn(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("vector store down")}
	completer := plannerCompleter(t, `{"days": 3, "from_city": "kathmandu", "to_city": "pokhara"}`)
	h := NewPlannerHandler(searcher, completer, testHistory(), testPlanningConfig(), 3)

	_, err := h.Handle(context.Background(), "plan a trip", nil)
	require.Error(t, err)
}

func TestPlannerConstraintExtractionFailureFailsTurn(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model unavailable")
	})
	h := NewPlannerHandler(&fakeSearcher{}, completer, testHistory(), testPlanningConfig(), 3)

	_, err := h.Handle(context.Background(), "plan a trip", nil)
	require.Error(t, err)
}

func TestPlannerRepeatedClarificationsEscalate(t *testing.T) {
	completer := plannerCompleter(t, `{"days": null, "from_city": null, "to_city": null}`)
	h := NewPlannerHandler(&fakeSearcher{}, completer, testHistory(), testPlanningConfig(), 3)

	messages := []*schema.Message{
		schema.UserMessage("plan a trip"),
		schema.AssistantMessage(clarificationPrefix+" days, from_city, to_city.", nil),
		schema.UserMessage("somewhere nice"),
		schema.AssistantMessage(clarificationPrefix+" days, from_city, to_city.", nil),
	}

	outcome, err := h.Handle(context.Background(), "just pick for me", messages)
	require.NoError(t, err)
	require.NotContains(t, outcome.Clarification, clarificationPrefix)
	require.Contains(t, outcome.Clarification, "Try something like")
}

func TestPlannerClarificationCountResetsOnOtherReply(t *testing.T) {
	completer := plannerCompleter(t, `{"days": null, "from_city": null, "to_city": null}`)
	h := NewPlannerHandler(&fakeSearcher{}, completer, testHistory(), testPlanningConfig(), 3)

	messages := []*schema.Message{
		schema.AssistantMessage(clarificationPrefix+" days.", nil),
		schema.AssistantMessage("Here is your plan.", nil),
		schema.AssistantMessage(clarificationPrefix+" days.", nil),
	}

	outcome, err := h.Handle(context.Background(), "plan a trip", messages)
	require.NoError(t, err)
	require.Contains(t, outcome.Clarification, clarificationPrefix)
}
