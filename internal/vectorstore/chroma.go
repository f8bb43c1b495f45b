package vectorstore

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores/chroma"
)

// Store is the slice of the vector database the app depends on. Chunk
// lifecycle past AddDocuments belongs entirely to the store.
type Store interface {
	AddDocuments(ctx context.Context, docs []schema.Document) error
	SimilaritySearch(ctx context.Context, query string, numDocuments int) ([]schema.Document, error)
}

type Config struct {
	URL            string
	Collection     string
	OllamaURL      string
	EmbeddingModel string
}

type chromaStore struct {
	store chroma.Store
}

// NewChroma binds a Chroma collection with an Ollama embedding function,
// creating the collection if it does not exist yet.
func NewChroma(cfg Config) (Store, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.OllamaURL),
		ollama.WithModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedding client failed: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create embedder failed: %w", err)
	}

	store, err := chroma.New(
		chroma.WithChromaURL(cfg.URL),
		chroma.WithNameSpace(cfg.Collection),
		chroma.WithEmbedder(embedder),
	)
	if err != nil {
		return nil, fmt.Errorf("open chroma collection failed: %w", err)
	}

	return &chromaStore{store: store}, nil
}

func (s *chromaStore) AddDocuments(ctx context.Context, docs []schema.Document) error {
	if _, err := s.store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("add documents to chroma failed: %w", err)
	}
	return nil
}

func (s *chromaStore) SimilaritySearch(ctx context.Context, query string, numDocuments int) ([]schema.Document, error) {
	docs, err := s.store.SimilaritySearch(ctx, query, numDocuments)
	if err != nil {
		return nil, fmt.Errorf("chroma similarity search failed: %w", err)
	}
	return docs, nil
}
