package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	errx "github.com/tourwise/server/internal/core/error"
)

// basic safety limits to avoid pathological model outputs
const (
	maxContentLen = 128 * 1024 // 128KB
)

// CompleteStructured runs a completion and decodes the result into T. A
// completion transport failure is returned as-is (retryable); output that does
// not decode into T is a schema violation and must not propagate downstream.
func CompleteStructured[T any](ctx context.Context, c Completer, prompt string) (*T, error) {
	raw, err := c.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var v T
	if err := DecodeJSON(raw, &v); err != nil {
		return nil, errx.Schema(err)
	}
	return &v, nil
}

// DecodeJSON extracts the JSON object embedded in raw model output and
// unmarshals it into v. Models wrap JSON in code fences or prose often enough
// that a bare json.Unmarshal is not good enough; repair here, reject when no
// object can be recovered.
func DecodeJSON(raw string, v any) error {
	if len(raw) > maxContentLen {
		return fmt.Errorf("model output too large (%d bytes)", len(raw))
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return fmt.Errorf("empty model output")
	}

	// strip a single markdown code fence, with or without a language tag
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	// narrow to the outermost object when the model added surrounding prose
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in model output")
	}
	s = s[start : end+1]

	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}
