package types

import "fmt"

// UnsupportedTypeError is fatal for the document: no extractor exists for the
// declared type.
type UnsupportedTypeError struct {
	DocType DocumentType
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported document type: %s", e.DocType)
}

// SourceUnavailableError is fatal for the document: the backing file or URL is
// missing or unreachable.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e SourceUnavailableError) Error() string {
	return fmt.Sprintf("document source unavailable: %s: %v", e.Source, e.Err)
}

func (e SourceUnavailableError) Unwrap() error { return e.Err }

// ExtractionError wraps a parser failure. Ingestion converts it to placeholder
// text so downstream chunking never sees a hard failure.
type ExtractionError struct {
	DocType DocumentType
	Err     error
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s document: %v", e.DocType, e.Err)
}

func (e ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError aborts the owning document's ingestion.
type EmbeddingError struct {
	Err error
}

func (e EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e EmbeddingError) Unwrap() error { return e.Err }

// IndexUnavailableError means an index cannot serve the current search call at
// all. Other indexes participating in a hybrid query keep going.
type IndexUnavailableError struct {
	Index string
	Err   error
}

func (e IndexUnavailableError) Error() string {
	return fmt.Sprintf("%s index unavailable: %v", e.Index, e.Err)
}

func (e IndexUnavailableError) Unwrap() error { return e.Err }
