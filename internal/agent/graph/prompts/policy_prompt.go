package prompts

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed template/policy_prompt.txt
var policyPrompt string

// PolicyRefusal is the exact reply required when the documents do not cover
// the question. Kept in sync with the template.
const PolicyRefusal = "I am unable to answer that question based on the available information."

// RenderPolicy renders the grounded policy answering prompt.
func RenderPolicy(ctx context.Context, userQuery string, documents []string) (string, error) {
	content := strings.NewReplacer(
		"{user_query}", userQuery,
		"{documents}", strings.Join(documents, ""),
	).Replace(policyPrompt)
	return emit(ctx, "policy", content)
}
