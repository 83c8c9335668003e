package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"ragbot/types"
)

// extractDOCX walks word/document.xml, emitting paragraph text and table rows
// with a column delimiter, prefixed with the document metadata header.
func (e *Extractor) extractDOCX(doc *types.Document) (string, error) {
	zr, err := zip.OpenReader(doc.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", types.SourceUnavailableError{Source: doc.FilePath, Err: err}
		}
		return "", types.ExtractionError{DocType: doc.DocType, Err: fmt.Errorf("open archive: %w", err)}
	}
	defer zr.Close()

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", types.ExtractionError{DocType: doc.DocType, Err: err}
			}
			break
		}
	}
	if docXML == nil {
		return "", types.ExtractionError{DocType: doc.DocType, Err: fmt.Errorf("word/document.xml missing")}
	}
	defer docXML.Close()

	body, err := walkDocumentXML(docXML)
	if err != nil {
		return "", types.ExtractionError{DocType: doc.DocType, Err: err}
	}

	return metadataHeader(doc) + body, nil
}

func walkDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var b strings.Builder
	var paragraph strings.Builder
	var row []string
	inCell := false

	flushParagraph := func() {
		text := strings.TrimSpace(paragraph.String())
		paragraph.Reset()
		if text == "" {
			return
		}
		if inCell {
			row = append(row, text)
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tc":
				inCell = true
			case "t":
				var text string
				if err := decoder.DecodeElement(&text, &t); err != nil {
					return "", fmt.Errorf("parse document.xml: %w", err)
				}
				paragraph.WriteString(text)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				flushParagraph()
			case "tc":
				flushParagraph()
				inCell = false
			case "tr":
				if len(row) > 0 {
					b.WriteString(strings.Join(row, " | "))
					b.WriteString("\n")
					row = nil
				}
			case "tbl":
				b.WriteString("\n")
			}
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
