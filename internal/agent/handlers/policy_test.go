package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tourwise/server/internal/agent/graph/prompts"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/llm"
	"github.com/tourwise/server/internal/ranking"
	"github.com/tourwise/server/internal/retrieval"
)

type scorerFunc func(ctx context.Context, query string, documents []string) ([]float64, error)

func (f scorerFunc) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	return f(ctx, query, documents)
}

func identityRanker() *ranking.Ranker {
	return ranking.NewRanker(scorerFunc(func(ctx context.Context, query string, documents []string) ([]float64, error) {
		scores := make([]float64, len(documents))
		for i := range scores {
			scores[i] = float64(len(documents) - i)
		}
		return scores, nil
	}), 1)
}

type capturingSearcher struct {
	query    string
	k        int
	filter   map[string]string
	passages []retrieval.ScoredPassage
	err      error
}

func (c *capturingSearcher) Search(ctx context.Context, query string, k int, filter map[string]string) ([]retrieval.ScoredPassage, error) {
	c.query, c.k, c.filter = query, k, filter
	return c.passages, c.err
}

func (c *capturingSearcher) HybridSearch(ctx context.Context, query string, k int, filter map[string]string) ([]retrieval.ScoredPassage, error) {
	return c.Search(ctx, query, k, filter)
}

func testPolicyConfig() model.PolicyConfig {
	return model.PolicyConfig{Filename: "company_info.txt", RetrieveK: 6, RerankK: 3}
}

func TestPolicyFiltersByFilename(t *testing.T) {
	searcher := &capturingSearcher{passages: passageFor("Cancellations within 24h are refunded in full.")}
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		require.Contains(t, prompt, "Cancellations within 24h")
		require.Contains(t, prompt, "can I cancel?")
		return "Yes, cancellations within 24 hours are fully refunded.", nil
	})
	h := NewPolicyHandler(searcher, identityRanker(), completer, testPolicyConfig())

	answer, err := h.Handle(context.Background(), "can I cancel?")
	require.NoError(t, err)
	require.Equal(t, "Yes, cancellations within 24 hours are fully refunded.", answer)
	require.Equal(t, 6, searcher.k)
	require.Equal(t, map[string]string{"filename": "company_info.txt"}, searcher.filter)
}

func TestPolicyReranksToTopK(t *testing.T) {
	passages := []retrieval.ScoredPassage{
		{Passage: retrieval.Passage{Content: "chunk one"}},
		{Passage: retrieval.Passage{Content: "chunk two"}},
		{Passage: retrieval.Passage{Content: "chunk three"}},
		{Passage: retrieval.Passage{Content: "chunk four"}},
		{Passage: retrieval.Passage{Content: "chunk five"}},
	}
	searcher := &capturingSearcher{passages: passages}

	var seen string
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		seen = prompt
		return "answer", nil
	})
	h := NewPolicyHandler(searcher, identityRanker(), completer, testPolicyConfig())

	_, err := h.Handle(context.Background(), "refund policy")
	require.NoError(t, err)
	require.Contains(t, seen, "chunk one")
	require.Contains(t, seen, "chunk three")
	require.NotContains(t, seen, "chunk four")
	require.NotContains(t, seen, "chunk five")
}

func TestPolicyRefusalPassesThrough(t *testing.T) {
	searcher := &capturingSearcher{passages: passageFor("unrelated passage")}
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		return prompts.PolicyRefusal, nil
	})
	h := NewPolicyHandler(searcher, identityRanker(), completer, testPolicyConfig())

	answer, err := h.Handle(context.Background(), "what is the meaning of life?")
	require.NoError(t, err)
	require.Equal(t, prompts.PolicyRefusal, answer)
}

func TestPolicyZeroPassagesRefusesWithoutCompletion(t *testing.T) {
	searcher := &capturingSearcher{passages: nil}
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		t.Fatal("completion must not run when retrieval finds nothing")
		return "Our refund policy is very generous!", nil
	})
	h := NewPolicyHandler(searcher, identityRanker(), completer, testPolicyConfig())

	answer, err := h.Handle(context.Background(), "what is the meaning of life?")
	require.NoError(t, err)
	require.Equal(t, prompts.PolicyRefusal, answer)
}

func TestPolicyRetrievalFailureFailsTurn(t *testing.T) {
	searcher := &capturingSearcher{err: errors.New("vector store down")}
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		t.Fatal("completion must not run when retrieval fails")
		return "", nil
	})
	h := NewPolicyHandler(searcher, identityRanker(), completer, testPolicyConfig())

	_, err := h.Handle(context.Background(), "refund policy")
	require.Error(t, err)
}

func TestPolicyScorerFailureKeepsRetrievalOrder(t *testing.T) {
	searcher := &capturingSearcher{passages: []retrieval.ScoredPassage{
		{Passage: retrieval.Passage{Content: "first"}},
		{Passage: retrieval.Passage{Content: "second"}},
	}}
	ranker := ranking.NewRanker(scorerFunc(func(ctx context.Context, query string, documents []string) ([]float64, error) {
		return nil, errors.New("reranker down")
	}), 1)
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		require.True(t, strings.Index(prompt, "first") < strings.Index(prompt, "second"))
		return "answer", nil
	})
	h := NewPolicyHandler(searcher, ranker, completer, testPolicyConfig())

	_, err := h.Handle(context.Background(), "refund policy")
	require.NoError(t, err)
}
