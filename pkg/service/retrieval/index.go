package retrieval

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	chromem "github.com/philippgille/chromem-go"

	"github.com/inkwell-lab/inkwell/pkg/domain/interfaces"
	"github.com/inkwell-lab/inkwell/pkg/domain/model"
)

const (
	// EmbeddingDimension is the vector width requested from the LLM client.
	EmbeddingDimension = 256

	defaultCollection = "inkwell_memory"

	// Blended score weights: vector similarity vs lexical overlap.
	similarityWeight = 0.7
	lexicalWeight    = 0.3
)

// Index is the retrieval layer over an embedded vector collection.
type Index struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
}

var _ interfaces.Index = &Index{}

type config struct {
	persistPath    string
	collectionName string
}

type Option func(*config)

// WithPersistPath stores the collection on disk instead of in memory.
func WithPersistPath(path string) Option {
	return func(c *config) {
		c.persistPath = path
	}
}

func WithCollectionName(name string) Option {
	return func(c *config) {
		c.collectionName = name
	}
}

// embeddingFunc adapts the LLM client's embedding call to the collection's
// per-document interface.
func embeddingFunc(client gollem.LLMClient) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		embeddings, err := client.GenerateEmbedding(ctx, EmbeddingDimension, []string{text})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to generate embedding")
		}
		if len(embeddings) == 0 {
			return nil, goerr.New("empty embedding response")
		}
		vector := make([]float32, len(embeddings[0]))
		for i, v := range embeddings[0] {
			vector[i] = float32(v)
		}
		return vector, nil
	}
}

func New(client gollem.LLMClient, opts ...Option) (*Index, error) {
	cfg := &config{
		collectionName: defaultCollection,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var db *chromem.DB
	if cfg.persistPath != "" {
		persistent, err := chromem.NewPersistentDB(cfg.persistPath, true)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open vector store", goerr.V("path", cfg.persistPath))
		}
		db = persistent
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(cfg.collectionName, nil, embeddingFunc(client))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create vector collection", goerr.V("name", cfg.collectionName))
	}

	return &Index{
		db:         db,
		collection: collection,
	}, nil
}

func (x *Index) Upsert(ctx context.Context, records []interfaces.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	documents := make([]chromem.Document, 0, len(records))
	for _, record := range records {
		metadata := map[string]string{
			"kind": record.Kind,
			"ts":   strconv.FormatInt(time.Now().UTC().UnixMilli(), 10),
		}
		for k, v := range record.Metadata {
			metadata[k] = v
		}
		documents = append(documents, chromem.Document{
			ID:       record.ID,
			Content:  record.Text,
			Metadata: metadata,
		})
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.collection.AddDocuments(ctx, documents, 1); err != nil {
		return goerr.Wrap(err, "failed to index records", goerr.V("count", len(records)))
	}
	return nil
}

func (x *Index) Search(ctx context.Context, query interfaces.SearchQuery) ([]model.RagHit, error) {
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	count := x.collection.Count()
	if count == 0 {
		return nil, nil
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 9
	}

	// Over-fetch so per-kind caps and dedup still leave enough hits.
	nResults := limit * 3
	if nResults > count {
		nResults = count
	}

	results, err := x.collection.Query(ctx, text, nResults, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "vector query failed", goerr.V("query", text))
	}

	allowed := map[string]bool{}
	for _, kind := range query.Kinds {
		allowed[kind] = true
	}

	queryTokens := tokenize(text)
	seen := map[string]bool{}
	perKind := map[string]int{}
	hits := make([]model.RagHit, 0, limit)

	for _, result := range results {
		kind := result.Metadata["kind"]
		if len(allowed) > 0 && !allowed[kind] {
			continue
		}
		if seen[result.ID] {
			continue
		}
		seen[result.ID] = true

		similarity := float64(result.Similarity)
		lexical := lexicalOverlap(queryTokens, result.Content)
		hits = append(hits, model.RagHit{
			ID:       result.ID,
			Kind:     kind,
			Score:    similarity,
			Lexical:  lexical,
			Blended:  similarityWeight*similarity + lexicalWeight*lexical,
			Snippet:  snippet(result.Content),
			Metadata: result.Metadata,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Blended > hits[j].Blended
	})

	out := make([]model.RagHit, 0, limit)
	for _, hit := range hits {
		if query.PerKind > 0 && perKind[hit.Kind] >= query.PerKind {
			continue
		}
		perKind[hit.Kind]++
		out = append(out, hit)
		if len(out) >= limit {
			break
		}
	}

	return out, nil
}

func tokenize(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:'\"()")
		if len(word) > 2 {
			tokens[word] = true
		}
	}
	return tokens
}

// lexicalOverlap is the fraction of query tokens present in the content.
func lexicalOverlap(queryTokens map[string]bool, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	contentTokens := tokenize(content)
	matched := 0
	for token := range queryTokens {
		if contentTokens[token] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func snippet(content string) string {
	const maxLen = 280
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen]
}
