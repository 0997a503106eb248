package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/tourwise/server/internal/agent/graph/conversations"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/llm"
)

func newTestClassifier(completer llm.Completer) *Classifier {
	var config model.ConversationConfig
	config.History.MaxTurns = 10
	return NewClassifier(completer, conversations.NewHistoryFormatter(config))
}

func TestClassifyKnownIntents(t *testing.T) {
	cases := map[string]model.Intent{
		"policy":   model.IntentPolicy,
		"planning": model.IntentPlanning,
		"booking":  model.IntentBooking,
		"general":  model.IntentGeneral,
	}
	for label, want := range cases {
		label, want := label, want
		t.Run(label, func(t *testing.T) {
			completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
				require.Contains(t, prompt, "cancel")
				return `{"intent": "` + label + `"}`, nil
			})
			got := newTestClassifier(completer).Classify(context.Background(), "can I cancel my tour?", nil)
			require.Equal(t, want, got)
		})
	}
}

func TestClassifyNormalizesLabelCase(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"intent": " Planning "}`, nil
	})
	got := newTestClassifier(completer).Classify(context.Background(), "plan a trip", nil)
	require.Equal(t, model.IntentPlanning, got)
}

func TestClassifyOutOfSetLabelFallsBackToGeneral(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return `{"intent": "weather"}`, nil
	})
	got := newTestClassifier(completer).Classify(context.Background(), "will it rain?", nil)
	require.Equal(t, model.IntentGeneral, got)
}

func TestClassifyCompletionErrorFallsBackToGeneral(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("model unavailable")
	})
	got := newTestClassifier(completer).Classify(context.Background(), "plan a trip", nil)
	require.Equal(t, model.IntentGeneral, got)
}

func TestClassifyMalformedPayloadFallsBackToGeneral(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "sure, that sounds like a planning question", nil
	})
	got := newTestClassifier(completer).Classify(context.Background(), "plan a trip", nil)
	require.Equal(t, model.IntentGeneral, got)
}

func TestClassifyEmptyQuerySkipsCompletion(t *testing.T) {
	called := false
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		called = true
		return `{"intent": "policy"}`, nil
	})
	got := newTestClassifier(completer).Classify(context.Background(), "", nil)
	require.Equal(t, model.IntentGeneral, got)
	require.False(t, called)
}

func TestClassifyIncludesHistoryContext(t *testing.T) {
	history := []*schema.Message{
		schema.UserMessage("I want to visit pokhara"),
		schema.AssistantMessage("Great choice.", nil),
	}
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		require.Contains(t, prompt, "I want to visit pokhara")
		return `{"intent": "planning"}`, nil
	})
	got := newTestClassifier(completer).Classify(context.Background(), "book it for 3 days", history)
	require.Equal(t, model.IntentPlanning, got)
}
