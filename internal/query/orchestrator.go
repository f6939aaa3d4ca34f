// Package query's Orchestrator drives the single Query operation
// (spec.md §4.K): detect intent, retrieve by the intent's rule, rerank
// against the graph when enabled, and assemble a QueryResponse. It holds
// no state of its own — every call is independent, matching spec.md §5's
// "Query orchestrator is stateless" requirement.
//
// Grounded on the teacher's internal/service/repo_service.go for the
// overall "detect what the caller wants, dispatch, assemble a response"
// shape of a single public service method, and internal/controller's
// read-then-respond style (no side effects on the read path).
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/embedclient"
	"github.com/armchr/codeindex/internal/fingerprint"
	"github.com/armchr/codeindex/internal/model"
	"github.com/armchr/codeindex/internal/store"
)

const (
	defaultSimilarityTopK    = 10
	maxFingerprintCandidates = 2000
	maxRelationEdges         = 10
)

type Orchestrator struct {
	mysql          *store.MySQLStore
	qdrant         *store.QdrantStore
	neo4j          *store.Neo4jStore
	embedder       *embedclient.Client
	bm25Weight     float64
	vectorWeight   float64
	embeddingModel string
	defaultLimit   int
	logger         *zap.Logger
}

func NewOrchestrator(mysql *store.MySQLStore, qdrant *store.QdrantStore, neo4j *store.Neo4jStore, embedder *embedclient.Client, bm25Weight, vectorWeight float64, embeddingModel string, defaultLimit int, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		mysql: mysql, qdrant: qdrant, neo4j: neo4j, embedder: embedder,
		bm25Weight: bm25Weight, vectorWeight: vectorWeight,
		embeddingModel: embeddingModel, defaultLimit: defaultLimit, logger: logger,
	}
}

// Query is the single public entry point spec.md §6 names.
func (o *Orchestrator) Query(ctx context.Context, req Request) Response {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = o.defaultLimit
	}
	profile := req.Profile
	if profile == "" {
		profile = "Hybrid"
	}

	intent := DetectIntent(req.Query)
	meta := Metadata{Keywords: ExtractKeywords(req.Query), Profile: profile}

	var results []Result
	var err error

	repo, found, repoErr := o.mysql.GetRepositoryByName(req.Repository)
	if repoErr != nil {
		err = repoErr
	} else if !found {
		err = fmt.Errorf("repository_not_found")
	} else {
		scoped := req
		scoped.Repository = repo.ID

		switch intent {
		case IntentSimilar:
			results, err = o.similar(ctx, scoped)
		case IntentRelations:
			results, meta = o.relations(scoped, meta)
		case IntentNavigation:
			results = o.navigation(scoped)
			if len(results) == 0 {
				results, meta = o.hybrid(ctx, scoped, maxResults, meta)
			}
		default: // Documentation, Examples, Search
			results, meta = o.hybrid(ctx, scoped, maxResults, meta)
		}
	}

	if err != nil {
		meta.ErrorCode = err.Error()
		meta.Error = err.Error()
		results = nil
	}

	if profile != "Fast" {
		results = o.graphRerank(results)
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return Response{
		Repo: req.Repository, Branch: req.Branch, Query: req.Query, Intent: intent,
		Total: len(results), Results: results,
		Suggestions: buildSuggestions(intent, results, req.Query),
		Metadata:    meta,
	}
}

// navigation implements spec.md §4.K's name-based symbol lookup: try each
// candidate identifier in the query text, return the best (shortest-name)
// fuzzy match as a single symbol result.
func (o *Orchestrator) navigation(req Request) []Result {
	for _, name := range ExtractSymbolNames(req.Query) {
		syms, err := o.mysql.FindSymbolsByName(req.Repository, req.Branch, name, 5)
		if err != nil || len(syms) == 0 {
			continue
		}
		sym := syms[0]
		return []Result{o.symbolResult(sym, "symbol", 1.0)}
	}
	return nil
}

// relations implements spec.md §4.K's Relations intent: resolve the
// subject symbol, then fetch outgoing or incoming edges depending on
// whether the phrasing asks "what does X call" or "what calls X",
// promoting each edge endpoint to a primary result.
func (o *Orchestrator) relations(req Request, meta Metadata) ([]Result, Metadata) {
	names := ExtractSymbolNames(req.Query)
	if len(names) == 0 {
		return nil, meta
	}
	syms, err := o.mysql.FindSymbolsByName(req.Repository, req.Branch, names[0], 1)
	if err != nil || len(syms) == 0 {
		return nil, meta
	}
	subject := syms[0]

	incoming := incomingRe.MatchString(req.Query)
	var edges []store.EdgeTarget
	if incoming {
		edges, err = o.mysql.IncomingEdges(subject.ID, maxRelationEdges)
	} else {
		edges, err = o.mysql.OutgoingEdges(subject.ID, maxRelationEdges)
	}
	if err != nil {
		o.logger.Warn("failed to fetch relation edges", zap.Error(err))
	}

	results := []Result{o.symbolResult(subject, "symbol_with_relations", 1.0)}
	for i, e := range edges {
		kind := "callee"
		if incoming {
			kind = "caller"
		}
		score := 0.9 - float64(i)*0.01
		results = append(results, Result{
			File: e.FilePath, Score: score, Type: kind, Symbol: e.Name, Kind: string(e.Kind), SymbolID: e.SymbolID,
			Related: []RelatedRef{{Symbol: subject.Name, Kind: string(subject.Kind), File: subject.FilePath}},
		})
	}
	return results, meta
}

// similar implements spec.md §4.K's similarity operator: resolve the
// seed's fingerprint, gather band-bucket candidates, rank by Hamming
// distance, and filter by any trailing free-text terms.
func (o *Orchestrator) similar(ctx context.Context, req Request) ([]Result, error) {
	target, ok := ParseSimilarTarget(req.Query)
	if !ok {
		return nil, fmt.Errorf("seed_not_found")
	}

	seedSym, ok, err := o.mysql.GetSymbolByID(target.SymbolID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("seed_not_found")
	}
	if req.Repository != "" && seedSym.RepoID != req.Repository {
		return nil, fmt.Errorf("seed_scope_mismatch")
	}
	if req.Branch != "" && seedSym.BranchName != req.Branch {
		return nil, fmt.Errorf("seed_scope_mismatch")
	}
	if req.Repository == "" || req.Branch == "" {
		return nil, fmt.Errorf("seed_scope_missing")
	}

	seedFP, ok, err := o.mysql.GetFingerprintBySymbolID(target.SymbolID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("seed_fingerprint_missing")
	}

	bands := fingerprint.SplitBands(seedFP.Fingerprint)
	candidates, err := o.mysql.FingerprintCandidatesInBands(seedSym.RepoID, seedSym.BranchName, [4]uint16{bands.Band0, bands.Band1, bands.Band2, bands.Band3}, target.SymbolID)
	if err != nil {
		return nil, err
	}
	if len(candidates) > maxFingerprintCandidates {
		candidates = candidates[:maxFingerprintCandidates]
	}

	type scored struct {
		sym  model.Symbol
		dist int
	}
	var ranked []scored
	for _, c := range candidates {
		if c.Language != seedFP.Language || c.Kind != seedFP.Kind || c.FingerprintKind != seedFP.FingerprintKind {
			continue
		}
		sym, ok, err := o.mysql.GetSymbolByID(c.SymbolID)
		if err != nil || !ok {
			continue
		}
		dist := fingerprint.HammingDistance(seedFP.Fingerprint, c.Fingerprint)
		ranked = append(ranked, scored{sym: sym, dist: dist})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })

	var out []Result
	for _, r := range ranked {
		if len(out) >= defaultSimilarityTopK {
			break
		}
		if len(target.ExtraTerms) > 0 && !matchesAnyTerm(o.mysql, r.sym.ID, target.ExtraTerms) {
			continue
		}
		score := 1.0 - float64(r.dist)/64.0
		res := o.symbolResult(r.sym, "symbol", score)
		res.Reasons = []string{"similarity:simhash", fmt.Sprintf("distance:%d", r.dist), "seed:" + target.SymbolID}
		out = append(out, res)
	}
	return out, nil
}

func matchesAnyTerm(mysql *store.MySQLStore, symbolID string, terms []string) bool {
	row, ok, err := mysql.GetSymbolSearchRow(symbolID)
	if err != nil || !ok {
		return false
	}
	haystack := strings.ToLower(strings.Join([]string{row.NameTokens, row.QualifiedTokens, row.SignatureTokens, row.DocumentationTokens, row.Snippet}, " "))
	for _, term := range terms {
		if strings.Contains(haystack, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// hybrid implements spec.md §4.K's hybrid search: one embedding call for
// the raw query text, fused with full-text search at bm25Weight/
// vectorWeight, degrading to lexical-only on an embedding failure.
func (o *Orchestrator) hybrid(ctx context.Context, req Request, maxResults int, meta Metadata) ([]Result, Metadata) {
	limit := 2 * maxResults

	symbolIDs, bm25Scores, err := o.mysql.FullTextSearch(req.Repository, req.Branch, req.Query, limit)
	if err != nil {
		o.logger.Warn("full-text search failed", zap.Error(err))
	}

	type fused struct {
		chunkID string
		bm25    float64
		vector  float64
	}
	fusedScores := map[string]*fused{}

	for i, symID := range symbolIDs {
		chunk, ok, err := o.mysql.GetChunkBySymbolID(symID)
		if err != nil || !ok {
			continue
		}
		fusedScores[chunk.ID] = &fused{chunkID: chunk.ID, bm25: bm25Scores[i]}
	}

	meta.EmbeddingUsed = false
	if o.embedder != nil {
		vectors, _, embedErr := o.embedder.Embed(ctx, []string{req.Query})
		if embedErr != nil {
			meta.Fallback = "embedding_provider_unavailable"
		} else if len(vectors) == 1 {
			meta.EmbeddingUsed = true
			meta.EmbeddingModel = o.embeddingModel
			chunkIDs, vecScores, searchErr := o.qdrant.SearchSimilar(ctx, o.embeddingModel, vectors[0], req.Repository, req.Branch, limit)
			if searchErr != nil {
				o.logger.Warn("vector search failed", zap.Error(searchErr))
			} else {
				for i, cid := range chunkIDs {
					if f, ok := fusedScores[cid]; ok {
						f.vector = float64(vecScores[i])
					} else {
						fusedScores[cid] = &fused{chunkID: cid, vector: float64(vecScores[i])}
					}
				}
			}
		}
	} else {
		meta.Fallback = "embedding_provider_unavailable"
	}

	maxBM25 := 0.0
	for _, f := range fusedScores {
		if f.bm25 > maxBM25 {
			maxBM25 = f.bm25
		}
	}

	type rankedChunk struct {
		chunkID string
		score   float64
	}
	var ranking []rankedChunk
	for cid, f := range fusedScores {
		normBM25 := 0.0
		if maxBM25 > 0 {
			normBM25 = f.bm25 / maxBM25
		}
		score := o.bm25Weight*normBM25 + o.vectorWeight*f.vector
		ranking = append(ranking, rankedChunk{chunkID: cid, score: score})
	}
	sort.Slice(ranking, func(i, j int) bool { return ranking[i].score > ranking[j].score })
	if len(ranking) > limit {
		ranking = ranking[:limit]
	}

	chunkIDs := make([]string, len(ranking))
	for i, r := range ranking {
		chunkIDs[i] = r.chunkID
	}
	chunks, err := o.mysql.GetChunksByIDs(chunkIDs)
	if err != nil {
		o.logger.Warn("failed to fetch chunks for hybrid results", zap.Error(err))
	}

	var results []Result
	for _, r := range ranking {
		chunk, ok := chunks[r.chunkID]
		if !ok {
			continue
		}
		results = append(results, Result{
			File: chunk.FilePath, Lines: fmt.Sprintf("%d-%d", chunk.ChunkStartLine, chunk.ChunkEndLine),
			Score: r.score, Type: "chunk", Symbol: chunk.SymbolName, Kind: chunk.SymbolKind, Content: chunk.Content,
			SymbolID: chunk.SymbolID,
		})
	}
	return results, meta
}

// graphRerank implements spec.md §4.K's rerank: graph_score =
// min(1, (out + 2*in)/20); score = 0.7*score + 0.3*graph_score.
func (o *Orchestrator) graphRerank(results []Result) []Result {
	for i, r := range results {
		if r.SymbolID == "" {
			continue
		}
		out, in := o.degree(r.SymbolID)
		graphScore := float64(out+2*in) / 20.0
		if graphScore > 1 {
			graphScore = 1
		}
		results[i].Score = 0.7*r.Score + 0.3*graphScore
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// degree prefers the Neo4j mirror and falls back to MySQL's COUNT(*)
// when the mirror is unset or errors (spec.md component P).
func (o *Orchestrator) degree(symbolID string) (int, int) {
	if o.neo4j != nil {
		if degrees, err := o.neo4j.Degree(context.Background(), []string{symbolID}); err == nil {
			if d, ok := degrees[symbolID]; ok {
				return d[0], d[1]
			}
		}
	}
	out, in, err := o.mysql.CountEdges(symbolID)
	if err != nil {
		return 0, 0
	}
	return out, in
}

func (o *Orchestrator) symbolResult(sym model.Symbol, typ string, score float64) Result {
	content := ""
	if chunk, ok, err := o.mysql.GetChunkBySymbolID(sym.ID); err == nil && ok {
		content = chunk.Content
	}
	return Result{
		File: sym.FilePath, Lines: fmt.Sprintf("%d-%d", sym.Span.StartLine, sym.Span.EndLine),
		Score: score, Type: typ, Symbol: sym.Name, Kind: string(sym.Kind), Sig: sym.Signature,
		Content: content, Docs: sym.Documentation, SymbolID: sym.ID,
	}
}

func buildSuggestions(intent Intent, results []Result, query string) []string {
	if len(results) == 0 {
		return nil
	}
	top := results[0]
	switch intent {
	case IntentNavigation:
		if top.Symbol != "" {
			return []string{fmt.Sprintf("Show me the implementation of %s", top.Symbol)}
		}
	case IntentSearch, IntentDocumentation:
		if top.Symbol != "" {
			return []string{fmt.Sprintf("What calls %s?", top.Symbol), fmt.Sprintf("similar:%s", top.Symbol)}
		}
	case IntentRelations:
		return []string{"Show me an example of " + query}
	}
	return nil
}
