package model

import (
	"github.com/cloudwego/eino/schema"
)

// ConversationState is the working memory of one turn, registered as Eino
// Graph Local State via compose.WithGenLocalState.
// Concurrency model:
//   - All reads/writes happen only inside Eino state handlers
//     (WithStatePreHandler, WithStatePostHandler, or compose.ProcessState),
//     which Eino serialises, so no additional locking is required.
//   - One turn owns its state exclusively; callers serialise turns per
//     session at the engine boundary.
type ConversationState struct {
	SessionID string
	UserID    string
	Query     string // immutable within a turn

	History []*schema.Message // loaded from the session store, appended within the turn

	Intent      Intent // set once by the classifier, read-only afterwards
	Title       string // once non-empty, never reset to empty
	Constraints *TourConstraints
	Plan        *TourPlan
	Confirmed   bool
}

// SetTitle applies the title invariant: a non-empty title is never replaced
// with an empty one.
func (s *ConversationState) SetTitle(title string) {
	if title != "" {
		s.Title = title
	}
}

// TurnInput is the graph entry payload for one turn. History and Title come
// from the session store; the engine loads them before invoking the graph.
type TurnInput struct {
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id"`
	Query     string            `json:"query"`
	History   []*schema.Message `json:"-"`
	Title     string            `json:"-"`
}

// TurnOutput is what terminal nodes emit: the response payload plus the
// post-turn history and title the engine persists.
type TurnOutput struct {
	Intent   Intent
	Response *TurnResponse
	Messages []*schema.Message // full post-turn history, untruncated
	Title    string
}

// ResponseKind discriminates the turn response payload.
type ResponseKind string

const (
	ResponseText    ResponseKind = "text"
	ResponsePlan    ResponseKind = "plan"
	ResponseBooking ResponseKind = "booking"
)

// TurnResponse is the payload returned to the caller for one turn.
type TurnResponse struct {
	Kind    ResponseKind    `json:"kind"`
	Text    string          `json:"text,omitempty"`
	Plan    *TourPlan       `json:"plan,omitempty"`
	Booking *BookingReceipt `json:"booking,omitempty"`
}

// BookingReceipt is the success payload of a persisted booking.
type BookingReceipt struct {
	BookingID string `json:"booking_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

// TextResponse builds a plain-text turn response.
func TextResponse(text string) *TurnResponse {
	return &TurnResponse{Kind: ResponseText, Text: text}
}
