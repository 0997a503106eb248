package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/tourwise/server/internal/agent/handlers"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/classify"
	logx "github.com/tourwise/server/pkg/logger"
)

const (
	NodeClassify = "Classify"
	NodePolicy   = "Policy"
	NodePlanner  = "Planner"
	NodeConfirm  = "Confirm"
	NodeBooking  = "Booking"
	NodeGeneral  = "General"
	NodeFinish   = "Finish"
)

// NotConfirmedReply is returned when a booking turn arrives without an
// established confirmation.
const NotConfirmedReply = "Your tour plan is not booked yet. Please confirm the plan to proceed with booking."

// NewClassifyPreHandler seeds the turn state from the graph input.
func NewClassifyPreHandler() func(context.Context, model.TurnInput, *model.ConversationState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.ConversationState) (model.TurnInput, error) {
		s.SessionID = in.SessionID
		s.UserID = in.UserID
		s.Query = in.Query
		s.History = in.History
		s.SetTitle(in.Title)
		return in, nil
	}
}

// NewClassifyNode creates the Classify node routing the query to an intent.
func NewClassifyNode(classifier *classify.Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error) {
		intent := classifier.Classify(ctx, in.Query, in.History)
		return &model.TurnOutput{Intent: intent}, nil
	})
}

// NewClassifyPostHandler records the classified intent in state. The intent
// is set exactly once per turn and is read-only afterwards.
func NewClassifyPostHandler() func(context.Context, *model.TurnOutput, *model.ConversationState) (*model.TurnOutput, error) {
	return func(ctx context.Context, out *model.TurnOutput, s *model.ConversationState) (*model.TurnOutput, error) {
		s.Intent = out.Intent
		return out, nil
	}
}

// NewIntentCondition routes the classified intent to its handler node.
// Anything outside the known set falls back to the General node.
func NewIntentCondition() func(context.Context, *model.TurnOutput) (string, error) {
	return func(ctx context.Context, out *model.TurnOutput) (string, error) {
		switch out.Intent {
		case model.IntentPolicy:
			return NodePolicy, nil
		case model.IntentPlanning:
			return NodePlanner, nil
		case model.IntentBooking:
			return NodeConfirm, nil
		case model.IntentGeneral:
			return NodeGeneral, nil
		}
		logx.Warn().Str("intent", string(out.Intent)).Msg("unroutable intent, falling back to general")
		return NodeGeneral, nil
	}
}

// NewPolicyNode creates the Policy node answering from the policy document.
func NewPolicyNode(h *handlers.PolicyHandler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *model.TurnOutput) (*model.TurnOutput, error) {
		var query string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			query = s.Query
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		answer, err := h.Handle(ctx, query)
		if err != nil {
			return nil, err
		}
		out.Response = model.TextResponse(answer)
		return out, nil
	})
}

// NewPlannerNode creates the Planner node. It emits either a structured plan
// or a clarification naming the missing constraints.
func NewPlannerNode(h *handlers.PlannerHandler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *model.TurnOutput) (*model.TurnOutput, error) {
		var query string
		var history []*schema.Message
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			query = s.Query
			history = s.History
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		outcome, err := h.Handle(ctx, query, history)
		if err != nil {
			return nil, err
		}

		if outcome.Clarification != "" {
			out.Response = model.TextResponse(outcome.Clarification)
			return out, nil
		}

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			s.Constraints = outcome.Constraints
			s.Plan = outcome.Plan
			s.SetTitle(outcome.Plan.Title)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		out.Response = &model.TurnResponse{Kind: model.ResponsePlan, Plan: outcome.Plan}
		return out, nil
	})
}

// NewPlannerCondition routes a completed plan to the confirmation check and
// a clarification straight to the terminal node.
func NewPlannerCondition() func(context.Context, *model.TurnOutput) (string, error) {
	return func(ctx context.Context, out *model.TurnOutput) (string, error) {
		if out.Response != nil && out.Response.Kind == model.ResponsePlan {
			return NodeConfirm, nil
		}
		return NodeFinish, nil
	}
}

// NewConfirmNode creates the Confirm node deciding whether the plan is
// confirmed. A booking-intent turn with no confirmation keeps a fixed reply
// asking the user to confirm first.
func NewConfirmNode(h *handlers.ConfirmHandler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *model.TurnOutput) (*model.TurnOutput, error) {
		var query string
		var history []*schema.Message
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			query = s.Query
			history = s.History
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		confirmed, err := h.Handle(ctx, query, history)
		if err != nil {
			return nil, err
		}

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			s.Confirmed = confirmed
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if !confirmed && out.Response == nil {
			out.Response = model.TextResponse(NotConfirmedReply)
		}
		return out, nil
	})
}

// NewConfirmCondition routes a confirmed plan to booking, everything else to
// the terminal node.
func NewConfirmCondition() func(context.Context, *model.TurnOutput) (string, error) {
	return func(ctx context.Context, out *model.TurnOutput) (string, error) {
		var confirmed bool
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			confirmed = s.Confirmed
			return nil
		}); err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		if confirmed {
			return NodeBooking, nil
		}
		return NodeFinish, nil
	}
}

// NewBookingNode creates the Booking node persisting the confirmed plan.
func NewBookingNode(h *handlers.BookingHandler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *model.TurnOutput) (*model.TurnOutput, error) {
		var userID, title string
		var plan *model.TourPlan
		var history []*schema.Message
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			userID = s.UserID
			title = s.Title
			plan = s.Plan
			history = s.History
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		receipt, err := h.Handle(ctx, userID, title, plan, history)
		if err != nil {
			return nil, err
		}
		out.Response = &model.TurnResponse{Kind: model.ResponseBooking, Booking: receipt}
		return out, nil
	})
}

// NewGeneralNode creates the General node with its static fallback reply.
func NewGeneralNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *model.TurnOutput) (*model.TurnOutput, error) {
		out.Response = model.TextResponse(handlers.GeneralFallback)
		return out, nil
	})
}

// NewFinishNode assembles the terminal payload: the full post-turn message
// history and the carried title, read once from state. Persistence itself is
// the engine's job, after a successful invoke.
func NewFinishNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *model.TurnOutput) (*model.TurnOutput, error) {
		if out.Response == nil {
			return nil, fmt.Errorf("turn finished without a response")
		}
		content, err := assistantContent(out.Response)
		if err != nil {
			return nil, err
		}

		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.ConversationState) error {
			out.Intent = s.Intent
			out.Title = s.Title
			out.Messages = make([]*schema.Message, 0, len(s.History)+2)
			out.Messages = append(out.Messages, s.History...)
			out.Messages = append(out.Messages, schema.UserMessage(s.Query))
			out.Messages = append(out.Messages, schema.AssistantMessage(content, nil))
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return out, nil
	})
}

// assistantContent renders the response as the assistant message stored in
// history. Structured payloads are stored as their JSON encoding so later
// turns can recover the plan title.
func assistantContent(resp *model.TurnResponse) (string, error) {
	switch resp.Kind {
	case model.ResponseText:
		return resp.Text, nil
	case model.ResponsePlan:
		data, err := json.Marshal(resp.Plan)
		if err != nil {
			return "", fmt.Errorf("encode plan response: %w", err)
		}
		return string(data), nil
	case model.ResponseBooking:
		data, err := json.Marshal(resp.Booking)
		if err != nil {
			return "", fmt.Errorf("encode booking response: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unknown response kind %q", resp.Kind)
}
