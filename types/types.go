package types

import (
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	DocTypePDF      DocumentType = "pdf"
	DocTypeDOCX     DocumentType = "docx"
	DocTypeMarkdown DocumentType = "md"
	DocTypeRST      DocumentType = "rst"
	DocTypeText     DocumentType = "txt"
	DocTypeHTML     DocumentType = "html"
	DocTypeForm     DocumentType = "form"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

type DocumentSource string

const (
	SourceUpload  DocumentSource = "upload"
	SourceRemote  DocumentSource = "remote"
	SourceWebsite DocumentSource = "website"
	SourceManual  DocumentSource = "manual"
)

type Document struct {
	ID        uuid.UUID
	Title     string
	DocType   DocumentType
	Source    DocumentSource
	Status    DocumentStatus
	FilePath  string
	URL       string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a contiguous slice of a document's extracted text. Immutable after
// creation except for EmbeddingRef, which is set once the embedding is stored.
type Chunk struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	Content      string
	Index        int
	TotalChunks  int
	EmbeddingRef string
	Embedding    []float32
	CreatedAt    time.Time
}

type GraphNodeType string

const (
	NodeEntity   GraphNodeType = "entity"
	NodeConcept  GraphNodeType = "concept"
	NodeDocument GraphNodeType = "document"
)

// GraphNode and GraphEdge are derived, rebuildable artifacts. They can be
// regenerated from chunks at any time and are never the source of truth.
type GraphNode struct {
	ID       uuid.UUID
	ChunkID  uuid.UUID
	NodeType GraphNodeType
	Name     string
	Metadata map[string]string
}

type GraphEdge struct {
	ID           uuid.UUID
	SourceID     uuid.UUID
	TargetID     uuid.UUID
	RelationType string
	Weight       float64
	Metadata     map[string]string
}

// ResultSource tags where a retrieval result came from.
type ResultSource string

const (
	ResultLexical  ResultSource = "lexical"
	ResultVector   ResultSource = "vector"
	ResultGraph    ResultSource = "graph"
	ResultHybrid   ResultSource = "hybrid"
	ResultReranked ResultSource = "reranked"
)

// RetrievalResult is produced fresh per query and never persisted.
type RetrievalResult struct {
	ChunkID    string            `json:"id"`
	Content    string            `json:"content"`
	DocumentID string            `json:"document_id"`
	Title      string            `json:"title"`
	Relevance  float64           `json:"relevance"`
	Source     ResultSource      `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

type Citation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type StreamEventType string

const (
	EventThinking StreamEventType = "thinking"
	EventChunk    StreamEventType = "chunk"
	EventComplete StreamEventType = "complete"
)

// StreamEvent is one frame of a streamed chat response. Thinking events carry
// the thinking text accumulated so far, chunk events carry incremental answer
// text, and the single terminal complete event carries the full answer.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Content   string          `json:"content,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	Tokens    int             `json:"tokens,omitempty"`
	Citations []Citation      `json:"citations,omitempty"`
}
