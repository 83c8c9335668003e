package extract

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"ragbot/types"
)

// pdfStringLit matches string literals inside page content streams, where the
// text-showing operators carry their arguments.
var pdfStringLit = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)

// extractPDF concatenates per-page text with page-boundary markers kept for
// page-aware chunking, prefixed with the document metadata header.
func (e *Extractor) extractPDF(doc *types.Document) (string, error) {
	f, err := os.Open(doc.FilePath)
	if err != nil {
		return "", types.SourceUnavailableError{Source: doc.FilePath, Err: err}
	}
	defer f.Close()

	conf := api.LoadConfiguration()
	conf.Cmd = model.EXTRACTCONTENT
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return "", types.ExtractionError{DocType: doc.DocType, Err: fmt.Errorf("read pdf: %w", err)}
	}

	var b strings.Builder
	b.WriteString(metadataHeader(doc))

	for page := 1; page <= pdfCtx.PageCount; page++ {
		r, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			return "", types.ExtractionError{DocType: doc.DocType, Err: fmt.Errorf("page %d: %w", page, err)}
		}

		fmt.Fprintf(&b, "--- Page %d ---\n", page)
		if r != nil {
			content, err := io.ReadAll(r)
			if err != nil {
				return "", types.ExtractionError{DocType: doc.DocType, Err: fmt.Errorf("page %d: %w", page, err)}
			}
			b.WriteString(contentStreamText(content))
		}
		b.WriteString("\n\n")
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

// contentStreamText pulls the string literals out of a raw page content
// stream and joins them into readable text lines.
func contentStreamText(content []byte) string {
	matches := pdfStringLit.FindAllSubmatch(content, -1)
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		s := unescapePDFString(string(m[1]))
		if strings.TrimSpace(s) == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func unescapePDFString(s string) string {
	replacer := strings.NewReplacer(
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
	return replacer.Replace(s)
}
