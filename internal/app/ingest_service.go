package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"localchat/internal/pkg/pdfextract"
	"localchat/internal/vectorstore"
)

var ErrNoExtractableText = errors.New("pdf contains no extractable text")

// IngestService turns uploaded PDFs into overlapping text chunks and
// hands them to the vector store in a single batch. Re-uploading the
// same PDF duplicates its chunks; de-duplication is out of scope.
type IngestService struct {
	store    vectorstore.Store
	splitter textsplitter.RecursiveCharacter
	logger   *zap.Logger
}

func NewIngestService(store vectorstore.Store, chunkSize, chunkOverlap int, separators []string, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	}
	if len(separators) > 0 {
		opts = append(opts, textsplitter.WithSeparators(separators))
	}
	return &IngestService{
		store:    store,
		splitter: textsplitter.NewRecursiveCharacter(opts...),
		logger:   logger,
	}
}

// Chunk splits text into overlapping chunks. Splitting is deterministic
// for identical input and configuration.
func (s *IngestService) Chunk(text string) ([]string, error) {
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text failed: %w", err)
	}
	return chunks, nil
}

// IngestPDFs extracts text from each PDF, chunks each document
// independently and inserts the whole batch into the vector store in
// one call. Returns the number of chunks inserted. Extraction errors
// propagate without retry.
func (s *IngestService) IngestPDFs(ctx context.Context, pdfs [][]byte) (int, error) {
	if len(pdfs) == 0 {
		return 0, ErrInvalidInput
	}

	var docs []schema.Document
	for i, raw := range pdfs {
		text, err := pdfextract.ExtractText(raw)
		if err != nil {
			return 0, fmt.Errorf("extract pdf %d failed: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			return 0, ErrNoExtractableText
		}
		chunks, err := s.Chunk(text)
		if err != nil {
			return 0, err
		}
		for _, chunk := range chunks {
			docs = append(docs, schema.Document{PageContent: chunk})
		}
	}
	if len(docs) == 0 {
		return 0, ErrNoExtractableText
	}

	if err := s.store.AddDocuments(ctx, docs); err != nil {
		return 0, err
	}
	s.logger.Info("documents added to vector store",
		zap.Int("pdfs", len(pdfs)),
		zap.Int("chunks", len(docs)),
	)
	return len(docs), nil
}
