package prompts

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed template/confirm_prompt.txt
var confirmPrompt string

// RenderConfirm renders the booking confirmation check prompt.
func RenderConfirm(ctx context.Context, userQuery, history string) (string, error) {
	content := strings.NewReplacer(
		"{user_query}", userQuery,
		"{message_history}", history,
	).Replace(confirmPrompt)
	return emit(ctx, "confirm", content)
}
