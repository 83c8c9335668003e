package api

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ragbot/ingest"
	"ragbot/store"
	"ragbot/types"
)

type DocumentHandler struct {
	db        store.DBStorer
	ingester  *ingest.Service
	uploadDir string
	logger    *slog.Logger
}

func NewDocumentHandler(db store.DBStorer, ingester *ingest.Service, uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		db:        db,
		ingester:  ingester,
		uploadDir: uploadDir,
		logger:    slog.Default().With("handler", "documents"),
	}
}

type createDocumentParams struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// HandleCreate registers a document from inline text or a remote URL.
func (h *DocumentHandler) HandleCreate(c *fiber.Ctx) error {
	var params createDocumentParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if params.Title == "" || (params.Content == "" && params.URL == "") {
		return NewValidationError(map[string]string{
			"title": "required, together with content or url",
		})
	}

	doc := types.Document{
		ID:        uuid.New(),
		Title:     params.Title,
		Status:    types.StatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if params.URL != "" {
		doc.DocType = types.DocTypeHTML
		doc.Source = types.SourceWebsite
		doc.URL = params.URL
	} else {
		if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(h.uploadDir, doc.ID.String()+".txt")
		if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
			return err
		}
		doc.DocType = types.DocTypeText
		doc.Source = types.SourceManual
		doc.FilePath = path
	}

	if err := h.db.SaveDocument(c.Context(), doc); err != nil {
		return err
	}
	h.ingestAsync(doc.ID)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     doc.ID,
		"status": doc.Status,
	})
}

// HandleIngest re-runs ingestion for an existing document.
func (h *DocumentHandler) HandleIngest(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	if _, err := h.db.GetDocumentByID(c.Context(), docID); err != nil {
		return ErrNotFound(docID, "document")
	}
	h.ingestAsync(docID)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": docID, "status": types.StatusProcessing})
}

func (h *DocumentHandler) HandleGet(c *fiber.Ctx) error {
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}
	doc, err := h.db.GetDocumentByID(c.Context(), docID)
	if err != nil {
		return ErrNotFound(docID, "document")
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	status := types.DocumentStatus(c.Query("status", string(types.StatusCompleted)))
	docs, err := h.db.ListDocumentsByStatus(c.Context(), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) ingestAsync(docID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := h.ingester.IngestDocument(ctx, docID); err != nil {
			h.logger.Error("background ingestion failed", "doc_id", docID, "error", err)
		}
	}()
}
