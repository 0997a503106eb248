package handlers

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/eino/schema"

	"github.com/tourwise/server/internal/agent/graph/conversations"
	"github.com/tourwise/server/internal/agent/model"
	logx "github.com/tourwise/server/pkg/logger"
)

// DefaultBookingTitle labels a booking when no plan title can be recovered
// from state or history. A missing title never blocks the booking itself.
const DefaultBookingTitle = "Tour Plan"

// BookingHandler persists a confirmed plan as a booking record.
type BookingHandler struct {
	bookings model.BookingRepository
}

func NewBookingHandler(bookings model.BookingRepository) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Handle creates the booking for the confirmed plan. When the plan was
// produced in an earlier turn it is recovered from the last assistant
// message; failing that, the title falls back to the session title and
// finally to a fixed default label.
func (h *BookingHandler) Handle(ctx context.Context, userID, sessionTitle string, plan *model.TourPlan, messages []*schema.Message) (*model.BookingReceipt, error) {
	if plan == nil {
		plan = planFromHistory(messages)
	}

	title := sessionTitle
	if plan != nil && plan.Title != "" {
		title = plan.Title
	}
	if title == "" {
		title = titleFromHistory(messages)
	}
	if title == "" {
		title = DefaultBookingTitle
	}

	booking := &model.Booking{
		UserID: userID,
		Title:  title,
		Plan:   plan,
	}
	if err := h.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	logx.Info().
		Str("booking_id", booking.ID).
		Str("user_id", userID).
		Str("title", booking.Title).
		Msg("booking created")
	return &model.BookingReceipt{
		BookingID: booking.ID,
		Title:     booking.Title,
		Status:    "confirmed",
	}, nil
}

// planFromHistory recovers the most recent plan from history. Plan responses
// are stored as the JSON-encoded plan in the assistant message, so the last
// assistant message that decodes into a titled plan wins.
func planFromHistory(messages []*schema.Message) *model.TourPlan {
	content := conversations.LastAssistant(messages)
	if content == "" {
		return nil
	}
	var plan model.TourPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil || plan.Title == "" {
		return nil
	}
	return &plan
}

// titleFromHistory extracts an embedded title field from the most recent
// assistant message, if there is one.
func titleFromHistory(messages []*schema.Message) string {
	content := conversations.LastAssistant(messages)
	if content == "" {
		return ""
	}
	var embedded struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(content), &embedded); err != nil {
		return ""
	}
	return embedded.Title
}
