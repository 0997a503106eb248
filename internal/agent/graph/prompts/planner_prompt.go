package prompts

import (
	"context"
	_ "embed"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tourwise/server/internal/agent/model"
)

//go:embed template/constraints_prompt.txt
var constraintsPrompt string

//go:embed template/planning_prompt.txt
var planningPrompt string

// RenderConstraints renders the constraint extraction prompt.
func RenderConstraints(ctx context.Context, userQuery, history string, allowedCities []string) (string, error) {
	content := strings.NewReplacer(
		"{user_query}", userQuery,
		"{message_history}", history,
		"{allowed_cities}", strings.Join(allowedCities, ", "),
	).Replace(constraintsPrompt)
	return emit(ctx, "constraints", content)
}

// RenderPlanning renders the itinerary generation prompt. The constraints
// must be complete by the time this is called.
func RenderPlanning(ctx context.Context, userQuery string, c *model.TourConstraints, attractions, travelInfo, hotels []string) (string, error) {
	content := strings.NewReplacer(
		"{user_query}", userQuery,
		"{days}", strconv.Itoa(*c.Days),
		"{from_city}", *c.FromCity,
		"{to_city}", *c.ToCity,
		"{attractions}", jsonList(attractions),
		"{travel_info}", jsonList(travelInfo),
		"{hotels}", jsonList(hotels),
	).Replace(planningPrompt)
	return emit(ctx, "planning", content)
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}
