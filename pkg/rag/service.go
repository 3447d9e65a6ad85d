package rag

import (
	"context"
	"fmt"
	"log/slog"
)

// Store loads entries from the backing database.
type Store interface {
	FindAllEnabled(ctx context.Context) ([]Entry, error)
}

// TextEmbedder embeds a query text for retrieval.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Service ties the store, the embedder, and the in-memory index together.
type Service struct {
	store    Store
	embedder TextEmbedder
	index    *Index
	logger   *slog.Logger
}

func NewService(store Store, embedder TextEmbedder, index *Index, logger *slog.Logger) *Service {
	return &Service{store: store, embedder: embedder, index: index, logger: logger}
}

// Reload rebuilds the index from all enabled entries.
func (s *Service) Reload(ctx context.Context) (int, error) {
	entries, err := s.store.FindAllEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("load rag entries: %w", err)
	}
	count := s.index.Load(entries)
	s.logger.Info("RAG index reloaded", "entries", count)
	return count, nil
}

// Size returns the current index size.
func (s *Service) Size() int {
	return s.index.Size()
}

// Retrieve embeds the masked text and searches every category. Retrieval is
// best-effort: an empty index or an embedding failure yields empty results,
// never an error.
func (s *Service) Retrieve(ctx context.Context, maskedText string, filters Filters) *Results {
	if s.index.Size() == 0 {
		return &Results{}
	}

	embedding, err := s.embedder.EmbedText(ctx, maskedText)
	if err != nil {
		s.logger.Warn("Query embedding failed, skipping RAG retrieval", "error", err)
		return &Results{}
	}

	return s.index.Search(Query{
		Embedding:    embedding,
		OriginalText: maskedText,
		Filters:      filters,
	})
}
