package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragbot/ingest"
	"ragbot/store"
	"ragbot/types"
)

// Service wires the directory watcher to the ingestion pipeline: each settled
// file is registered as a document, ingested, and archived.
type Service struct {
	db       store.DBStorer
	ingester *ingest.Service
	watcher  *Watcher
	logger   *slog.Logger
}

func NewService(db store.DBStorer, ingester *ingest.Service, watcher *Watcher) *Service {
	return &Service{
		db:       db,
		ingester: ingester,
		watcher:  watcher,
		logger:   slog.Default().With("service", "watcher"),
	}
}

// Run blocks until ctx is done. The watcher goroutine feeds paths to the
// processing goroutine through a buffered channel so a slow ingestion never
// stalls directory polling.
func (s *Service) Run(ctx context.Context) {
	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Watch(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileChan {
			s.processFile(ctx, path)
		}
	}()

	wg.Wait()
	s.logger.Info("watcher service stopped")
}

func (s *Service) processFile(ctx context.Context, path string) {
	defer s.watcher.Done(path)

	docType, ok := docTypeForPath(path)
	if !ok {
		s.logger.Warn("skipping file with unsupported extension", "path", path)
		s.watcher.MoveToArchive(path, true)
		return
	}

	doc := types.Document{
		ID:        uuid.New(),
		Title:     titleForPath(path),
		DocType:   docType,
		Source:    types.SourceUpload,
		Status:    types.StatusPending,
		FilePath:  path,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.db.SaveDocument(ctx, doc); err != nil {
		s.logger.Error("register document", "path", path, "error", err)
		return
	}

	if err := s.ingester.IngestDocument(ctx, doc.ID); err != nil {
		s.logger.Error("ingest watched file", "path", path, "error", err)
		s.watcher.MoveToArchive(path, true)
		return
	}
	s.watcher.MoveToArchive(path, false)
}

func titleForPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}

func docTypeForPath(path string) (types.DocumentType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return types.DocTypePDF, true
	case ".docx":
		return types.DocTypeDOCX, true
	case ".md", ".markdown":
		return types.DocTypeMarkdown, true
	case ".rst":
		return types.DocTypeRST, true
	case ".txt":
		return types.DocTypeText, true
	case ".html", ".htm":
		return types.DocTypeHTML, true
	default:
		return "", false
	}
}
