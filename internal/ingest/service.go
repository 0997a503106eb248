package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tourwise/server/internal/embedding"
	"github.com/tourwise/server/internal/vectorstore"
	logx "github.com/tourwise/server/pkg/logger"
)

// embedWorkers bounds concurrent embedding calls during bulk ingestion.
const embedWorkers = 2

// Service ingests knowledge-base documents into the vector store. Records
// are content-addressed, so re-ingesting the same file overwrites rather
// than duplicates.
type Service struct {
	encoder    embedding.TextEncoder
	store      *vectorstore.QdrantClient
	collection string
}

func NewService(encoder embedding.TextEncoder, store *vectorstore.QdrantClient, collection string) *Service {
	return &Service{
		encoder:    encoder,
		store:      store,
		collection: collection,
	}
}

// IngestJSON ingests a JSON array of flat records. Each record is flattened
// into a "key: value" string for embedding while the record itself becomes
// the filter metadata.
func (s *Service) IngestJSON(ctx context.Context, filename string, data []byte) (int, error) {
	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return 0, fmt.Errorf("parse json document: %w", err)
	}

	points := make([]vectorstore.Point, len(items))
	for i, item := range items {
		content := flatten(item)
		payload := make(map[string]any, len(item)+2)
		for k, v := range item {
			payload[k] = v
		}
		payload["content"] = content
		payload["filename"] = filename
		points[i] = vectorstore.Point{
			ID:      contentID(content),
			Payload: payload,
		}
	}

	if err := s.embedAndUpsert(ctx, points); err != nil {
		return 0, err
	}
	logx.Info().Str("filename", filename).Int("records", len(points)).Msg("ingested json document")
	return len(points), nil
}

// IngestText ingests a plain-text document split into paragraph chunks.
func (s *Service) IngestText(ctx context.Context, filename, content string) (int, error) {
	chunks := splitParagraphs(content)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %q has no content", filename)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = vectorstore.Point{
			ID: contentID(chunk),
			Payload: map[string]any{
				"content":     chunk,
				"filename":    filename,
				"type":        "policy",
				"chunk_index": i,
			},
		}
	}

	if err := s.embedAndUpsert(ctx, points); err != nil {
		return 0, err
	}
	logx.Info().Str("filename", filename).Int("chunks", len(points)).Msg("ingested text document")
	return len(points), nil
}

func (s *Service) embedAndUpsert(ctx context.Context, points []vectorstore.Point) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i := range points {
		i := i
		g.Go(func() error {
			content, _ := points[i].Payload["content"].(string)
			pair, err := s.encoder.EncodePair(gctx, content)
			if err != nil {
				return err
			}
			points[i].Vectors = *pair
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return s.store.Upsert(ctx, s.collection, points)
}

// flatten renders a record as "key: value" pairs in key order, so the same
// record always embeds to the same text.
func flatten(item map[string]any) string {
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+stringify(item[k]))
	}
	return strings.Join(parts, " ")
}

func stringify(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(vv)
	case nil:
		return ""
	default:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(b)
	}
}

func splitParagraphs(content string) []string {
	var chunks []string
	for _, part := range strings.Split(content, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks
}

// contentID derives a stable UUID from the chunk content. Qdrant accepts
// only UUIDs or unsigned integers as point IDs.
func contentID(content string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(content)).String()
}
