package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ragbot/store"
	"ragbot/types"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type lexicalEntry struct {
	chunkID    uuid.UUID
	documentID uuid.UUID
	title      string
	content    string
	termFreq   map[string]int
	length     int
}

// Lexical ranks chunks with BM25 term scoring over the raw chunk text. The
// index is held in memory and rebuilt from the store on catch-up.
type Lexical struct {
	db store.DBStorer

	mu       sync.RWMutex
	entries  []lexicalEntry
	docFreq  map[string]int
	totalLen int
	indexed  map[uuid.UUID]struct{}
}

func NewLexical(db store.DBStorer) *Lexical {
	return &Lexical{
		db:      db,
		docFreq: make(map[string]int),
		indexed: make(map[uuid.UUID]struct{}),
	}
}

func (l *Lexical) Name() string { return "lexical" }

func (l *Lexical) IndexDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeLocked(doc.ID)

	for _, c := range chunks {
		tf := make(map[string]int)
		length := 0
		for _, t := range tokenize(c.Content) {
			tf[t]++
			length++
		}
		for term := range tf {
			l.docFreq[term]++
		}
		l.totalLen += length
		l.entries = append(l.entries, lexicalEntry{
			chunkID:    c.ID,
			documentID: doc.ID,
			title:      doc.Title,
			content:    c.Content,
			termFreq:   tf,
			length:     length,
		})
	}
	l.indexed[doc.ID] = struct{}{}
	return nil
}

func (l *Lexical) IndexAll(ctx context.Context) error {
	docs, err := l.db.ListDocumentsByStatus(ctx, types.StatusCompleted)
	if err != nil {
		return types.IndexUnavailableError{Index: l.Name(), Err: err}
	}
	for _, doc := range docs {
		l.mu.RLock()
		_, done := l.indexed[doc.ID]
		l.mu.RUnlock()
		if done {
			continue
		}
		chunks, err := l.db.GetChunksByDocID(ctx, doc.ID)
		if err != nil {
			return types.IndexUnavailableError{Index: l.Name(), Err: err}
		}
		if err := l.IndexDocument(ctx, doc, chunks); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lexical) Search(ctx context.Context, query string, limit int) ([]types.RetrievalResult, error) {
	return searchWithCatchUp(ctx,
		func(ctx context.Context) ([]types.RetrievalResult, error) {
			return l.search(query, limit), nil
		},
		l.stale,
		l.IndexAll,
	)
}

func (l *Lexical) search(query string, limit int) []types.RetrievalResult {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.entries)
	if n == 0 {
		return nil
	}
	avgLen := float64(l.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	type scored struct {
		order int
		score float64
	}
	var hits []scored
	for i, e := range l.entries {
		score := 0.0
		for _, term := range terms {
			tf := e.termFreq[term]
			if tf == 0 {
				continue
			}
			df := l.docFreq[term]
			idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
			norm := 1 - bm25B + bm25B*float64(e.length)/avgLen
			score += idf * float64(tf) * (bm25K1 + 1) / (float64(tf) + bm25K1*norm)
		}
		if score > 0 {
			hits = append(hits, scored{order: i, score: score})
		}
	}
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	maxScore := hits[0].score
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]types.RetrievalResult, len(hits))
	for i, h := range hits {
		e := l.entries[h.order]
		results[i] = types.RetrievalResult{
			ChunkID:    e.chunkID.String(),
			Content:    e.content,
			DocumentID: e.documentID.String(),
			Title:      e.title,
			Relevance:  h.score / maxScore,
			Source:     types.ResultLexical,
		}
	}
	return results
}

func (l *Lexical) stale(ctx context.Context) bool {
	if l.db == nil {
		return false
	}
	docs, err := l.db.ListDocumentsByStatus(ctx, types.StatusCompleted)
	if err != nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, doc := range docs {
		if _, ok := l.indexed[doc.ID]; !ok {
			return true
		}
	}
	return false
}

// removeLocked drops a document's entries and their term statistics.
func (l *Lexical) removeLocked(docID uuid.UUID) {
	kept := l.entries[:0]
	for _, e := range l.entries {
		if e.documentID != docID {
			kept = append(kept, e)
			continue
		}
		for term := range e.termFreq {
			if l.docFreq[term] <= 1 {
				delete(l.docFreq, term)
			} else {
				l.docFreq[term]--
			}
		}
		l.totalLen -= e.length
	}
	l.entries = kept
	delete(l.indexed, docID)
}
