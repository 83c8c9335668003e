package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"ragbot/types"
)

// DBStorer is the persistence boundary of the ingestion and retrieval core.
// The core reads document type/source/file handle and writes chunk rows,
// graph rows and document status; everything else belongs to the CRUD layer.
type DBStorer interface {
	SaveDocument(ctx context.Context, doc types.Document) error
	GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error)
	ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]types.Document, error)
	UpdateDocumentStatus(ctx context.Context, docID uuid.UUID, status types.DocumentStatus, reason string) error

	SaveChunks(ctx context.Context, chunks []types.Chunk) error
	GetChunksByDocID(ctx context.Context, docID uuid.UUID) ([]types.Chunk, error)
	DeleteChunksByDocID(ctx context.Context, docID uuid.UUID) error
	SetChunkEmbedding(ctx context.Context, chunkID uuid.UUID, ref string, embedding []float32) error
	CountChunks(ctx context.Context) (int, error)

	VectorSearch(ctx context.Context, queryVec []float32, limit int) ([]types.RetrievalResult, error)
	ReplaceGraph(ctx context.Context, docID uuid.UUID, nodes []types.GraphNode, edges []types.GraphEdge) error

	Close() error
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: slog.Default(),
	}, nil
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc types.Document) error {
	query := `INSERT INTO documents (id, title, doc_type, source, status, file_path, url, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			doc_type = EXCLUDED.doc_type,
			source = EXCLUDED.source,
			status = EXCLUDED.status,
			file_path = EXCLUDED.file_path,
			url = EXCLUDED.url,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		`
	_, err := p.pool.Exec(ctx, query,
		doc.ID,
		doc.Title,
		doc.DocType,
		doc.Source,
		doc.Status,
		doc.FilePath,
		doc.URL,
		doc.Metadata,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, title, doc_type, source, status, file_path, url, metadata, created_at, updated_at
		 FROM documents WHERE id = $1`, docID)

	doc := &types.Document{}
	if err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.DocType,
		&doc.Source,
		&doc.Status,
		&doc.FilePath,
		&doc.URL,
		&doc.Metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStore) ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]types.Document, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, title, doc_type, source, status, file_path, url, metadata, created_at, updated_at
		 FROM documents WHERE status = $1 ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var doc types.Document
		if err := rows.Scan(
			&doc.ID,
			&doc.Title,
			&doc.DocType,
			&doc.Source,
			&doc.Status,
			&doc.FilePath,
			&doc.URL,
			&doc.Metadata,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus records the lifecycle transition. A non-empty reason is
// written under the metadata "error" key, as the failure invariant requires.
func (p *PostgresStore) UpdateDocumentStatus(ctx context.Context, docID uuid.UUID, status types.DocumentStatus, reason string) error {
	if reason == "" {
		_, err := p.pool.Exec(ctx,
			`UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`, docID, status)
		return err
	}
	_, err := p.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $2,
		     metadata = coalesce(metadata, '{}'::jsonb) || jsonb_build_object('error', $3::text),
		     updated_at = now()
		 WHERE id = $1`, docID, status, reason)
	return err
}

func (p *PostgresStore) SaveChunks(ctx context.Context, chunks []types.Chunk) error {
	query := `INSERT INTO chunks (id, document_id, content, chunk_index, total_chunks, embedding_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, c := range chunks {
		if _, err := p.pool.Exec(ctx, query,
			c.ID, c.DocumentID, c.Content, c.Index, c.TotalChunks, c.EmbeddingRef, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("save chunk %d of document %s: %w", c.Index, c.DocumentID, err)
		}
	}
	return nil
}

func (p *PostgresStore) GetChunksByDocID(ctx context.Context, docID uuid.UUID) ([]types.Chunk, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, document_id, content, chunk_index, total_chunks, coalesce(embedding_ref, ''), created_at
		 FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		var c types.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Index, &c.TotalChunks, &c.EmbeddingRef, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) DeleteChunksByDocID(ctx context.Context, docID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", docID)
	return err
}

// SetChunkEmbedding writes the embedding vector and its artifact reference in
// one statement, so readers never observe a chunk with only half of the pair.
func (p *PostgresStore) SetChunkEmbedding(ctx context.Context, chunkID uuid.UUID, ref string, embedding []float32) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE chunks SET embedding_ref = $2, embedding = $3 WHERE id = $1`,
		chunkID, ref, pgvector.NewVector(embedding))
	return err
}

func (p *PostgresStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM chunks").Scan(&n)
	return n, err
}

func (p *PostgresStore) VectorSearch(ctx context.Context, queryVec []float32, limit int) ([]types.RetrievalResult, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	vector := pgvector.NewVector(queryVec)

	query := `
		SELECT c.id, c.content, c.document_id, d.title,
		       1 - (c.embedding <=> $1) AS relevance
		FROM chunks c
		JOIN documents d ON c.document_id = d.id
		WHERE c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, vector, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.RetrievalResult
	for rows.Next() {
		var r types.RetrievalResult
		var chunkID, docID uuid.UUID
		if err := rows.Scan(&chunkID, &r.Content, &docID, &r.Title, &r.Relevance); err != nil {
			return nil, err
		}
		r.ChunkID = chunkID.String()
		r.DocumentID = docID.String()
		r.Source = types.ResultVector
		if r.Relevance < 0 {
			r.Relevance = 0
		}
		if r.Relevance > 1 {
			r.Relevance = 1
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ReplaceGraph swaps the derived graph rows of one document atomically. The
// graph is rebuildable from chunks, so a full replace is always safe.
func (p *PostgresStore) ReplaceGraph(ctx context.Context, docID uuid.UUID, nodes []types.GraphNode, edges []types.GraphEdge) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM graph_nodes WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = $1)`, docID)
	if err != nil {
		return err
	}

	for _, n := range nodes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO graph_nodes (id, chunk_id, node_type, name, metadata) VALUES ($1, $2, $3, $4, $5)`,
			n.ID, n.ChunkID, n.NodeType, n.Name, n.Metadata); err != nil {
			return err
		}
	}
	for _, e := range edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO graph_edges (id, source_id, target_id, relation_type, weight, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, e.SourceID, e.TargetID, e.RelationType, e.Weight, e.Metadata); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *PostgresStore) createRagTables(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		file_path TEXT,
		url TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		chunk_index INT NOT NULL,
		total_chunks INT NOT NULL,
		embedding_ref TEXT,
		embedding vector(768),
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);

	CREATE TABLE IF NOT EXISTS graph_nodes (
		id UUID PRIMARY KEY,
		chunk_id UUID NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
		node_type TEXT NOT NULL,
		name TEXT NOT NULL,
		metadata JSONB
	);

	CREATE TABLE IF NOT EXISTS graph_edges (
		id UUID PRIMARY KEY,
		source_id UUID NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
		target_id UUID NOT NULL REFERENCES graph_nodes(id) ON DELETE CASCADE,
		relation_type TEXT NOT NULL,
		weight DOUBLE PRECISION DEFAULT 1.0,
		metadata JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_graph_nodes_chunk_id ON graph_nodes(chunk_id);
	CREATE INDEX IF NOT EXISTS idx_graph_nodes_name ON graph_nodes(name);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createRagTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool closed")
	}
	return nil
}
