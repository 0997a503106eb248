package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	errx "github.com/tourwise/server/internal/core/error"
)

type payload struct {
	Intent string `json:"intent"`
}

func TestDecodeJSONPlainObject(t *testing.T) {
	var v payload
	require.NoError(t, DecodeJSON(`{"intent":"policy"}`, &v))
	require.Equal(t, "policy", v.Intent)
}

func TestDecodeJSONStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"intent\": \"planning\"}\n```"
	var v payload
	require.NoError(t, DecodeJSON(raw, &v))
	require.Equal(t, "planning", v.Intent)
}

func TestDecodeJSONNarrowsSurroundingProse(t *testing.T) {
	raw := "Sure! Here is the result: {\"intent\": \"booking\"} Let me know if you need more."
	var v payload
	require.NoError(t, DecodeJSON(raw, &v))
	require.Equal(t, "booking", v.Intent)
}

func TestDecodeJSONRejectsNonJSON(t *testing.T) {
	var v payload
	require.Error(t, DecodeJSON("no object here", &v))
	require.Error(t, DecodeJSON("", &v))
	require.Error(t, DecodeJSON("{broken", &v))
}

func TestDecodeJSONRejectsOversizedOutput(t *testing.T) {
	var v payload
	raw := "{\"intent\":\"" + strings.Repeat("x", maxContentLen) + "\"}"
	require.Error(t, DecodeJSON(raw, &v))
}

func TestCompleteStructuredSchemaFailure(t *testing.T) {
	c := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "I cannot answer in JSON, sorry.", nil
	})

	_, err := CompleteStructured[payload](context.Background(), c, "prompt")
	require.Error(t, err)

	var appErr *errx.Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, errx.SchemaErrorMessage, appErr.Message)
	require.False(t, appErr.Retryable)
}

func TestCompleteStructuredTransportFailurePassesThrough(t *testing.T) {
	cause := errx.Infra(errors.New("connection refused"), errx.CompletionErrorMessage)
	c := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "", cause
	})

	_, err := CompleteStructured[payload](context.Background(), c, "prompt")
	require.ErrorIs(t, err, cause)
	require.True(t, errx.IsRetryable(err))
}

func TestCompleteStructuredDecodesResult(t *testing.T) {
	c := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return "```\n{\"intent\":\"general\"}\n```", nil
	})

	v, err := CompleteStructured[payload](context.Background(), c, "prompt")
	require.NoError(t, err)
	require.Equal(t, "general", v.Intent)
}
