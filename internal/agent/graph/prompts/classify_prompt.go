package prompts

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed template/classify_prompt.txt
var classifyPrompt string

// RenderClassify renders the intent classification prompt and triggers
// prompt callbacks.
func RenderClassify(ctx context.Context, userQuery, history string) (string, error) {
	// Replace known tokens only to avoid interfering with JSON braces in template
	content := strings.NewReplacer(
		"{user_query}", userQuery,
		"{message_history}", history,
	).Replace(classifyPrompt)
	return emit(ctx, "classify", content)
}
