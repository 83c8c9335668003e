package index

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ragbot/store"
	"ragbot/types"
)

const (
	maxEntitiesPerChunk = 16
	maxConceptsPerChunk = 5

	// A node reached through an edge from a matched node contributes at
	// half the weight of a direct match.
	neighborDamping = 0.5
)

var entityRe = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?: [A-Z][a-z0-9]+)*\b`)

type graphEntry struct {
	chunkID    uuid.UUID
	documentID uuid.UUID
	title      string
	content    string
	nodes      []string
}

// Graph derives entity/concept nodes per chunk and typed edges between
// co-occurring nodes, then ranks chunks by proximity between query-derived
// terms and chunk-linked nodes. The derived rows are persisted through the
// store but remain rebuildable from chunks at any time.
type Graph struct {
	db store.DBStorer

	mu      sync.RWMutex
	entries []graphEntry
	byName  map[string][]int
	adj     map[string]map[string]float64
	indexed map[uuid.UUID]struct{}
}

func NewGraph(db store.DBStorer) *Graph {
	return &Graph{
		db:      db,
		byName:  make(map[string][]int),
		adj:     make(map[string]map[string]float64),
		indexed: make(map[uuid.UUID]struct{}),
	}
}

func (g *Graph) Name() string { return "graph" }

func (g *Graph) IndexDocument(ctx context.Context, doc types.Document, chunks []types.Chunk) error {
	var rows []types.GraphNode
	var edges []types.GraphEdge

	g.mu.Lock()
	g.removeLocked(doc.ID)

	for _, c := range chunks {
		entities, concepts := deriveNodes(c.Content)
		names := append(append([]string{}, entities...), concepts...)
		if len(names) == 0 {
			continue
		}

		idx := len(g.entries)
		g.entries = append(g.entries, graphEntry{
			chunkID:    c.ID,
			documentID: doc.ID,
			title:      doc.Title,
			content:    c.Content,
			nodes:      names,
		})
		for _, name := range names {
			g.byName[name] = append(g.byName[name], idx)
		}
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				g.link(names[i], names[j], 1.0)
			}
		}

		rows, edges = appendGraphRows(rows, edges, doc, c, entities, concepts)
	}
	g.indexed[doc.ID] = struct{}{}
	g.mu.Unlock()

	if g.db != nil {
		if err := g.db.ReplaceGraph(ctx, doc.ID, rows, edges); err != nil {
			return fmt.Errorf("persist graph for document %s: %w", doc.ID, err)
		}
	}
	return nil
}

func (g *Graph) IndexAll(ctx context.Context) error {
	docs, err := g.db.ListDocumentsByStatus(ctx, types.StatusCompleted)
	if err != nil {
		return types.IndexUnavailableError{Index: g.Name(), Err: err}
	}
	for _, doc := range docs {
		g.mu.RLock()
		_, done := g.indexed[doc.ID]
		g.mu.RUnlock()
		if done {
			continue
		}
		chunks, err := g.db.GetChunksByDocID(ctx, doc.ID)
		if err != nil {
			return types.IndexUnavailableError{Index: g.Name(), Err: err}
		}
		if err := g.IndexDocument(ctx, doc, chunks); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) Search(ctx context.Context, query string, limit int) ([]types.RetrievalResult, error) {
	return searchWithCatchUp(ctx,
		func(ctx context.Context) ([]types.RetrievalResult, error) {
			return g.search(query, limit), nil
		},
		g.stale,
		g.IndexAll,
	)
}

func (g *Graph) search(query string, limit int) []types.RetrievalResult {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	// Direct matches, then one hop along co-occurrence edges.
	matched := make(map[string]float64)
	for name := range g.byName {
		if nameMatches(name, termSet) {
			matched[name] = 1.0
		}
	}
	reached := make(map[string]float64)
	for name := range matched {
		for nbr, weight := range g.adj[name] {
			if _, direct := matched[nbr]; direct {
				continue
			}
			w := neighborDamping
			if weight < 1 {
				w *= weight
			}
			if w > reached[nbr] {
				reached[nbr] = w
			}
		}
	}
	for name, w := range reached {
		matched[name] = w
	}
	if len(matched) == 0 {
		return nil
	}

	scores := make(map[int]float64)
	for name, w := range matched {
		for _, idx := range g.byName[name] {
			scores[idx] += w
		}
	}

	type scored struct {
		order int
		score float64
	}
	hits := make([]scored, 0, len(scores))
	for idx, score := range scores {
		hits = append(hits, scored{order: idx, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})

	maxScore := hits[0].score
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]types.RetrievalResult, len(hits))
	for i, h := range hits {
		e := g.entries[h.order]
		results[i] = types.RetrievalResult{
			ChunkID:    e.chunkID.String(),
			Content:    e.content,
			DocumentID: e.documentID.String(),
			Title:      e.title,
			Relevance:  h.score / maxScore,
			Source:     types.ResultGraph,
		}
	}
	return results
}

func (g *Graph) stale(ctx context.Context) bool {
	if g.db == nil {
		return false
	}
	docs, err := g.db.ListDocumentsByStatus(ctx, types.StatusCompleted)
	if err != nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, doc := range docs {
		if _, ok := g.indexed[doc.ID]; !ok {
			return true
		}
	}
	return false
}

func (g *Graph) link(a, b string, weight float64) {
	if g.adj[a] == nil {
		g.adj[a] = make(map[string]float64)
	}
	if g.adj[b] == nil {
		g.adj[b] = make(map[string]float64)
	}
	g.adj[a][b] += weight
	g.adj[b][a] += weight
}

// removeLocked drops a document's entries and rebuilds the lookup structures
// from the survivors.
func (g *Graph) removeLocked(docID uuid.UUID) {
	kept := make([]graphEntry, 0, len(g.entries))
	for _, e := range g.entries {
		if e.documentID != docID {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(g.entries) {
		delete(g.indexed, docID)
		return
	}

	g.entries = kept
	g.byName = make(map[string][]int)
	g.adj = make(map[string]map[string]float64)
	for idx, e := range g.entries {
		for _, name := range e.nodes {
			g.byName[name] = append(g.byName[name], idx)
		}
		for i := 0; i < len(e.nodes); i++ {
			for j := i + 1; j < len(e.nodes); j++ {
				g.link(e.nodes[i], e.nodes[j], 1.0)
			}
		}
	}
	delete(g.indexed, docID)
}

func nameMatches(name string, termSet map[string]struct{}) bool {
	for _, tok := range tokenize(name) {
		if _, ok := termSet[tok]; ok {
			return true
		}
	}
	return false
}

// deriveNodes extracts entity names (capitalized word runs) and concept terms
// (most frequent content words) from a chunk, lowercased and deduplicated.
func deriveNodes(content string) (entities, concepts []string) {
	seen := make(map[string]struct{})

	for _, m := range entityRe.FindAllString(content, -1) {
		name := normalizeName(m)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		entities = append(entities, name)
		if len(entities) == maxEntitiesPerChunk {
			break
		}
	}

	freq := make(map[string]int)
	for _, t := range tokenize(content) {
		if len(t) >= 4 {
			freq[t]++
		}
	}
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		concepts = append(concepts, t)
		if len(concepts) == maxConceptsPerChunk {
			break
		}
	}
	return entities, concepts
}

func normalizeName(raw string) string {
	toks := tokenize(raw)
	if len(toks) == 0 {
		return ""
	}
	name := toks[0]
	for _, t := range toks[1:] {
		name += " " + t
	}
	if len(name) < 3 {
		return ""
	}
	return name
}

// appendGraphRows builds the persisted node and edge rows for one chunk: one
// node per entity/concept, a document node, co-occurrence edges between the
// chunk's nodes and mention edges into the document node.
func appendGraphRows(rows []types.GraphNode, edges []types.GraphEdge, doc types.Document, c types.Chunk, entities, concepts []string) ([]types.GraphNode, []types.GraphEdge) {
	docNode := types.GraphNode{
		ID:       uuid.New(),
		ChunkID:  c.ID,
		NodeType: types.NodeDocument,
		Name:     doc.Title,
	}

	var chunkNodes []types.GraphNode
	for _, name := range entities {
		chunkNodes = append(chunkNodes, types.GraphNode{
			ID:       uuid.New(),
			ChunkID:  c.ID,
			NodeType: types.NodeEntity,
			Name:     name,
		})
	}
	for _, name := range concepts {
		chunkNodes = append(chunkNodes, types.GraphNode{
			ID:       uuid.New(),
			ChunkID:  c.ID,
			NodeType: types.NodeConcept,
			Name:     name,
		})
	}

	rows = append(rows, docNode)
	rows = append(rows, chunkNodes...)

	for i := 0; i < len(chunkNodes); i++ {
		for j := i + 1; j < len(chunkNodes); j++ {
			edges = append(edges, types.GraphEdge{
				ID:           uuid.New(),
				SourceID:     chunkNodes[i].ID,
				TargetID:     chunkNodes[j].ID,
				RelationType: "co_occurs",
				Weight:       1.0,
			})
		}
		edges = append(edges, types.GraphEdge{
			ID:           uuid.New(),
			SourceID:     chunkNodes[i].ID,
			TargetID:     docNode.ID,
			RelationType: "mentioned_in",
			Weight:       1.0,
		})
	}
	return rows, edges
}
