package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragbot/chunker"
	"ragbot/extract"
	"ragbot/index"
	"ragbot/store"
	"ragbot/types"
)

const defaultWorkers = 2

// Service drives a document through the ingestion pipeline: extract text,
// chunk it, persist the chunks, embed and index them, and record the final
// status. Each document either completes with every chunk embedded and
// indexed, or fails with the reason recorded in its metadata.
type Service struct {
	db        store.DBStorer
	extractor *extract.Extractor
	indexes   []index.Store

	chunkSize    int
	chunkOverlap int

	logger *slog.Logger
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

func New(db store.DBStorer, extractor *extract.Extractor, indexes []index.Store, cfg Config) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunker.DefaultChunkOverlap
	}
	return &Service{
		db:           db,
		extractor:    extractor,
		indexes:      indexes,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		logger:       slog.Default().With("service", "ingest"),
	}
}

// IngestDocument processes a single document end to end. A fatal error marks
// the document failed with the reason stored in its metadata and is also
// returned to the caller.
func (s *Service) IngestDocument(ctx context.Context, docID uuid.UUID) error {
	doc, err := s.db.GetDocumentByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", docID, err)
	}

	if err := s.db.UpdateDocumentStatus(ctx, doc.ID, types.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark document processing: %w", err)
	}
	start := time.Now()
	s.logger.Info("ingesting document", "doc_id", doc.ID, "title", doc.Title, "type", doc.DocType)

	// Recoverable extraction failures come back as placeholder text with a
	// nil error; anything surfacing here is fatal for the document.
	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return s.fail(ctx, doc.ID, err)
	}

	pieces := chunker.Chunk(text, doc.DocType, s.chunkSize, s.chunkOverlap)
	chunks := make([]types.Chunk, len(pieces))
	now := time.Now().UTC()
	for i, content := range pieces {
		chunks[i] = types.Chunk{
			ID:          uuid.New(),
			DocumentID:  doc.ID,
			Content:     content,
			Index:       i,
			TotalChunks: len(pieces),
			CreatedAt:   now,
		}
	}

	// Re-ingestion replaces the document's chunks wholesale.
	if err := s.db.DeleteChunksByDocID(ctx, doc.ID); err != nil {
		return s.fail(ctx, doc.ID, fmt.Errorf("clear previous chunks: %w", err))
	}
	if err := s.db.SaveChunks(ctx, chunks); err != nil {
		return s.fail(ctx, doc.ID, fmt.Errorf("save chunks: %w", err))
	}

	for _, idx := range s.indexes {
		if err := idx.IndexDocument(ctx, *doc, chunks); err != nil {
			return s.fail(ctx, doc.ID, fmt.Errorf("index %s: %w", idx.Name(), err))
		}
	}

	if err := s.db.UpdateDocumentStatus(ctx, doc.ID, types.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}
	s.logger.Info("document ingested",
		"doc_id", doc.ID, "chunks", len(chunks), "took", time.Since(start))
	return nil
}

func (s *Service) fail(ctx context.Context, docID uuid.UUID, cause error) error {
	if err := s.db.UpdateDocumentStatus(ctx, docID, types.StatusFailed, cause.Error()); err != nil {
		s.logger.Error("record failure status", "doc_id", docID, "error", err)
	}
	s.logger.Error("document ingestion failed", "doc_id", docID, "error", cause)
	return cause
}

// IngestPending drains all pending documents through a small worker pool.
// Per-document failures are recorded on the document and do not stop the
// batch.
func (s *Service) IngestPending(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = defaultWorkers
	}
	docs, err := s.db.ListDocumentsByStatus(ctx, types.StatusPending)
	if err != nil {
		return fmt.Errorf("list pending documents: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	docChan := make(chan uuid.UUID, len(docs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for docID := range docChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err := s.IngestDocument(ctx, docID); err != nil {
					s.logger.Error("pending document failed", "doc_id", docID, "error", err)
				}
			}
		}()
	}
	for _, doc := range docs {
		docChan <- doc.ID
	}
	close(docChan)
	wg.Wait()
	return ctx.Err()
}
