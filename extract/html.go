package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/html"

	"ragbot/types"
)

// extractHTML fetches (URL) or reads (file) the page, strips script and style
// elements, and collapses whitespace to single newlines.
func (e *Extractor) extractHTML(ctx context.Context, doc *types.Document) (string, error) {
	var r io.ReadCloser

	if doc.URL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.URL, nil)
		if err != nil {
			return "", types.SourceUnavailableError{Source: doc.URL, Err: err}
		}
		resp, err := e.client.Do(req)
		if err != nil {
			return "", types.SourceUnavailableError{Source: doc.URL, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", types.SourceUnavailableError{Source: doc.URL, Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		r = resp.Body
	} else {
		f, err := os.Open(doc.FilePath)
		if err != nil {
			return "", types.SourceUnavailableError{Source: doc.FilePath, Err: err}
		}
		r = f
	}
	defer r.Close()

	root, err := html.Parse(r)
	if err != nil {
		return "", types.ExtractionError{DocType: doc.DocType, Err: fmt.Errorf("parse html: %w", err)}
	}

	var fragments []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				fragments = append(fragments, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return strings.Join(fragments, "\n"), nil
}
