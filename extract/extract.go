// Package extract converts stored documents into plain text, dispatching on
// the declared document type. Structural markers (headings, page boundaries)
// are preserved so the chunker can split along them.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"ragbot/types"
)

type Extractor struct {
	client *http.Client
}

func New() *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Extract returns the plain-text representation of the document. Parser
// failures degrade to placeholder text describing the failure, so downstream
// chunking never sees them; missing sources and unknown types are fatal.
func (e *Extractor) Extract(ctx context.Context, doc *types.Document) (string, error) {
	var text string
	var err error

	switch doc.DocType {
	case types.DocTypePDF:
		text, err = e.extractPDF(doc)
	case types.DocTypeDOCX:
		text, err = e.extractDOCX(doc)
	case types.DocTypeMarkdown, types.DocTypeRST, types.DocTypeText:
		text, err = e.extractRaw(doc)
	case types.DocTypeHTML:
		text, err = e.extractHTML(ctx, doc)
	case types.DocTypeForm:
		text, err = e.extractForm(doc)
	default:
		return "", types.UnsupportedTypeError{DocType: doc.DocType}
	}

	if err != nil {
		if extractionErr, ok := err.(types.ExtractionError); ok {
			// Degrade gracefully: the document ends up with a chunk
			// describing the failure instead of failing ingestion.
			return fmt.Sprintf("Error extracting text from %s document '%s': %v",
				doc.DocType, doc.Title, extractionErr.Err), nil
		}
		return "", err
	}
	return text, nil
}

// extractRaw returns the file contents verbatim. Markdown and RST keep their
// structural markers for heading-aware chunking.
func (e *Extractor) extractRaw(doc *types.Document) (string, error) {
	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return "", types.SourceUnavailableError{Source: doc.FilePath, Err: err}
	}
	return string(data), nil
}

// extractForm renders the flattened form metadata as "key: value" lines. The
// error key is operational state, not form content.
func (e *Extractor) extractForm(doc *types.Document) (string, error) {
	keys := make([]string, 0, len(doc.Metadata))
	for k := range doc.Metadata {
		if k == "error" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, doc.Metadata[k])
	}
	return b.String(), nil
}

// metadataHeader renders title/author/subject metadata as a prefix block, or
// an empty string if none is present.
func metadataHeader(doc *types.Document) string {
	var b strings.Builder
	if doc.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", doc.Title)
	}
	for _, key := range []string{"author", "subject"} {
		if v, ok := doc.Metadata[key]; ok && v != "" {
			fmt.Fprintf(&b, "%s%s: %s\n", strings.ToUpper(key[:1]), key[1:], v)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	b.WriteString("\n")
	return b.String()
}
