package retrieval

// Passage is a retrievable chunk of knowledge-base content.
type Passage struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// ScoredPassage pairs a passage with its retrieval score.
type ScoredPassage struct {
	Passage
	Score float64
}

// Contents extracts the bare text of a scored passage list.
func Contents(passages []ScoredPassage) []string {
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		out = append(out, p.Content)
	}
	return out
}
