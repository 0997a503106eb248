package model

import "strings"

// Constraint field names as they appear in clarification responses.
const (
	ConstraintDays     = "days"
	ConstraintFromCity = "from_city"
	ConstraintToCity   = "to_city"
)

// TourConstraints are the structured fields extracted from the query and
// history before any planning retrieval happens. Nil means unresolved.
type TourConstraints struct {
	Days     *int    `json:"days"`
	FromCity *string `json:"from_city"`
	ToCity   *string `json:"to_city"`
}

// Missing returns the names of unresolved constraint fields in a fixed order.
func (c *TourConstraints) Missing() []string {
	var missing []string
	if c.Days == nil || *c.Days <= 0 {
		missing = append(missing, ConstraintDays)
	}
	if c.FromCity == nil || strings.TrimSpace(*c.FromCity) == "" {
		missing = append(missing, ConstraintFromCity)
	}
	if c.ToCity == nil || strings.TrimSpace(*c.ToCity) == "" {
		missing = append(missing, ConstraintToCity)
	}
	return missing
}

// Normalize lower-cases and trims the city fields in place. Retrieval filters
// always operate on this canonical form.
func (c *TourConstraints) Normalize() {
	if c.FromCity != nil {
		v := strings.ToLower(strings.TrimSpace(*c.FromCity))
		c.FromCity = &v
	}
	if c.ToCity != nil {
		v := strings.ToLower(strings.TrimSpace(*c.ToCity))
		c.ToCity = &v
	}
}

// DayPlan is one day of a synthesized itinerary.
type DayPlan struct {
	Day       int      `json:"day"`
	Title     string   `json:"title"`
	Schedule  []string `json:"schedule"`
	Hotel     string   `json:"hotel"`
	Transport []string `json:"transport"`
}

// TourPlan is the structured planning response synthesized strictly from the
// retrieved attraction/hotel/travel sets.
type TourPlan struct {
	Title        string    `json:"title"`
	Days         []DayPlan `json:"days"`
	Confirmation string    `json:"confirmation,omitempty"`
	SourcesUsed  []string  `json:"sources_used,omitempty"`
}
