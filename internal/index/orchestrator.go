// Package index implements the indexing orchestrator (spec.md §4.I): the
// pipeline driver that turns a branch's pending file changes into
// symbols, edges, chunks, and embedding jobs inside one MySQL
// transaction per file, plus a best-effort Neo4j mirror update.
//
// Grounded on the teacher's internal/util/executor_pool.go
// (ExecutorPool[T] bounds the per-file worker concurrency spec.md §5
// requires) and internal/controller/repo_controller.go's overall
// group-by-repo/branch, read-then-transact orchestration shape — the
// controller's own LSP/codegraph/summary side effects are replaced here
// with this spec's parse/chunk/embed-enqueue/resolve-edges sequence.
package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/chunk"
	"github.com/armchr/codeindex/internal/edge"
	"github.com/armchr/codeindex/internal/fingerprint"
	"github.com/armchr/codeindex/internal/gittrack"
	"github.com/armchr/codeindex/internal/langdetect"
	"github.com/armchr/codeindex/internal/model"
	"github.com/armchr/codeindex/internal/parse"
	"github.com/armchr/codeindex/internal/store"
	"github.com/armchr/codeindex/internal/tokenize"
	"github.com/armchr/codeindex/internal/util"
	"github.com/armchr/codeindex/internal/workspace"
)

const maxSnippetChars = 500

type Orchestrator struct {
	mysql      *store.MySQLStore
	qdrant     *store.QdrantStore
	neo4j      *store.Neo4jStore
	tracker    *gittrack.Tracker
	loader     *workspace.Loader
	registry   *parse.Registry
	bloom      *util.BloomFilterManager
	chunkCfg   chunk.Config
	concurrency int
	embeddingModel string
	logger     *zap.Logger
}

func NewOrchestrator(mysql *store.MySQLStore, qdrant *store.QdrantStore, neo4j *store.Neo4jStore, tracker *gittrack.Tracker, loader *workspace.Loader, registry *parse.Registry, bloom *util.BloomFilterManager, chunkCfg chunk.Config, concurrency int, embeddingModel string, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		mysql: mysql, qdrant: qdrant, neo4j: neo4j, tracker: tracker, loader: loader,
		registry: registry, bloom: bloom, chunkCfg: chunkCfg, concurrency: concurrency,
		embeddingModel: embeddingModel, logger: logger,
	}
}

// IndexBranch runs the full pipeline for one (repo, branch): diff against
// the last indexed commit, process each changed file under a bounded
// worker pool, then mark the branch indexed. Deleted files are handled
// by removing their rows; renamed files are treated as a delete of the
// old path plus an add of the new one, matching spec.md §4.G/§4.I.
func (o *Orchestrator) IndexBranch(ctx context.Context, repo model.Repository, branchName string) error {
	state, err := o.tracker.EnsureBranch(ctx, repo.Name, branchName)
	if err != nil {
		return fmt.Errorf("failed to ensure branch %s/%s: %w", repo.Name, branchName, err)
	}

	changes, err := o.tracker.Changes(repo.ID, repo.Name, branchName)
	if err != nil {
		return fmt.Errorf("failed to compute changes for %s/%s: %w", repo.Name, branchName, err)
	}

	// A workspace handle is acquired even though file content comes from
	// the git tracker's object-database reads, not the working tree: the
	// handle keeps the checkout alive and deduplicated against concurrent
	// query-side reads of the same (repo, branch) for the duration of the
	// indexing run (spec.md §4.H).
	handle, err := o.loader.Acquire(repo.Name, branchName, o.tracker.WorkDirFor(repo.Name))
	if err == nil {
		defer o.loader.Release(handle)
	}

	if len(changes) == 0 {
		o.logger.Info("no changes to index", zap.String("repo", repo.Name), zap.String("branch", branchName))
		return o.tracker.MarkIndexed(repo.Name, branchName, state.HeadCommitSHA)
	}

	pool := util.NewExecutorPool[model.FileChange](o.concurrency, len(changes), func(fc model.FileChange) {
		if err := o.processChange(ctx, repo, branchName, state.HeadCommitSHA, fc); err != nil {
			o.logger.Error("failed to process file change", zap.String("path", fc.FilePath), zap.Error(err))
		}
	})
	for _, fc := range changes {
		pool.Submit(fc)
	}
	pool.Close()

	if o.bloom != nil {
		if err := o.bloom.Save(repo.ID, branchName); err != nil {
			o.logger.Warn("failed to persist bloom filter", zap.Error(err))
		}
	}

	return o.tracker.MarkIndexed(repo.Name, branchName, state.HeadCommitSHA)
}

func (o *Orchestrator) processChange(ctx context.Context, repo model.Repository, branchName, commitSHA string, fc model.FileChange) error {
	if fc.Kind == model.ChangeDeleted {
		return o.deleteFile(ctx, repo.ID, branchName, fc.FilePath)
	}
	if fc.Kind == model.ChangeRenamed && fc.OldPath != "" {
		if err := o.deleteFile(ctx, repo.ID, branchName, fc.OldPath); err != nil {
			return err
		}
	}

	content, ok, err := o.tracker.GetFileContent(repo.Name, commitSHA, fc.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fc.FilePath, err)
	}
	if !ok {
		return nil // binary or missing: skip silently, matches spec.md §4.G.
	}

	language := langdetect.Detect(fc.FilePath, firstLine(content))
	if !langdetect.ShouldIndex(language) {
		return nil
	}

	contentKey := fc.FilePath + "@" + fmt.Sprintf("%x", len(content)) + "@" + hashContent(content)
	if o.bloom != nil {
		seen, err := o.bloom.Test(repo.ID, branchName, contentKey)
		if err == nil && seen {
			return nil // already indexed, unchanged per the bloom dedup (spec.md §9).
		}
	}

	parsed := o.registry.Parse(repo.ID, branchName, commitSHA, fc.FilePath, language, content)
	if !parsed.Success {
		o.logger.Warn("parse failed", zap.String("path", fc.FilePath), zap.String("error", parsed.Error))
		return nil
	}

	for i := range parsed.Symbols {
		parsed.Symbols[i].ID = uuid.NewString()
		parsed.Symbols[i].QualifiedName = qualifiedName(parsed.Symbols[i])
	}

	symbolIDsByKey := map[string]string{}
	symbolsByName := map[string]string{}
	for _, sym := range parsed.Symbols {
		symbolIDsByKey[sym.Name+"@"+itoa(sym.Span.StartLine)] = sym.ID
		symbolsByName[sym.Name] = sym.ID
	}
	for i, sym := range parsed.Symbols {
		if sym.ParentSymbolName != "" {
			if id, ok := symbolsByName[sym.ParentSymbolName]; ok {
				parsed.Symbols[i].ParentSymbolID = id
			}
		}
	}

	current := make([]edge.Candidate, 0, len(parsed.Symbols))
	for _, sym := range parsed.Symbols {
		current = append(current, edge.Candidate{ID: sym.ID, QualifiedName: sym.QualifiedName, Name: sym.Name, ParentID: sym.ParentSymbolID})
	}
	parentOf := map[string]string{}
	childrenOfParent := map[string][]edge.Candidate{}
	for _, sym := range parsed.Symbols {
		if sym.ParentSymbolID != "" {
			parentOf[sym.ID] = sym.ParentSymbolID
			childrenOfParent[sym.ParentSymbolID] = append(childrenOfParent[sym.ParentSymbolID], edge.Candidate{ID: sym.ID, Name: sym.Name})
		}
	}

	resolveResult, err := edge.Resolve(repo.ID, branchName, parsed.Edges, symbolIDsByKey, current, o.mysql, parentOf, childrenOfParent)
	if err != nil {
		return fmt.Errorf("edge resolution failed for %s: %w", fc.FilePath, err)
	}

	chunks := chunk.Chunk(o.chunkCfg, parsed, symbolIDsByKey)
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
	}

	fingerprints, searchRows := buildSearchArtifacts(parsed.Symbols, chunks, commitSHA)

	if err := o.persist(ctx, repo.ID, branchName, fc.FilePath, parsed.Symbols, resolveResult.Resolved, chunks, fingerprints, searchRows); err != nil {
		return err
	}

	if err := o.enqueueEmbeddingJobs(chunks); err != nil {
		o.logger.Warn("failed to enqueue embedding jobs", zap.String("path", fc.FilePath), zap.Error(err))
	}

	if o.bloom != nil {
		if err := o.bloom.Add(repo.ID, branchName, contentKey); err != nil {
			o.logger.Warn("failed to update bloom filter", zap.Error(err))
		}
	}

	if o.neo4j != nil {
		if err := o.neo4j.ReplaceFileMirror(ctx, repo.ID, branchName, fc.FilePath, parsed.Symbols, resolveResult.Resolved); err != nil {
			o.logger.Warn("neo4j mirror update failed", zap.String("path", fc.FilePath), zap.Error(err))
		}
	}

	return nil
}

// persist runs the delete-old/insert-new/insert-edges/insert-chunks/
// insert-fingerprints/insert-search-rows/commit sequence inside a single
// transaction. Edge resolution is not part of it: processChange resolves
// edges before this transaction opens, against committed rows and the
// current file's symbols.
func (o *Orchestrator) persist(ctx context.Context, repoID, branchName, filePath string, symbols []model.Symbol, edges []model.Edge, chunks []model.CodeChunk, fingerprints []model.SymbolFingerprint, searchRows []model.SymbolSearch) error {
	tx, err := o.mysql.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := store.DeleteFileAuxData(tx, repoID, branchName, filePath); err != nil {
		return err
	}
	if err := store.DeleteFileData(tx, repoID, branchName, filePath); err != nil {
		return err
	}
	if err := store.InsertSymbols(tx, symbols); err != nil {
		return err
	}
	if err := store.InsertEdges(tx, edges); err != nil {
		return err
	}
	if err := store.InsertChunks(tx, chunks); err != nil {
		return err
	}
	if err := store.InsertFingerprints(tx, fingerprints); err != nil {
		return err
	}
	if err := store.InsertSymbolSearch(tx, searchRows); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index transaction for %s: %w", filePath, err)
	}
	committed = true
	return nil
}

func (o *Orchestrator) deleteFile(ctx context.Context, repoID, branchName, filePath string) error {
	tx, err := o.mysql.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	if err := store.DeleteFileAuxData(tx, repoID, branchName, filePath); err != nil {
		tx.Rollback()
		return err
	}
	if err := store.DeleteFileData(tx, repoID, branchName, filePath); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete for %s: %w", filePath, err)
	}
	if o.qdrant != nil {
		if err := o.qdrant.DeleteByFilePath(ctx, o.embeddingModel, repoID, branchName, filePath); err != nil {
			o.logger.Warn("failed to delete vector mirror rows", zap.String("path", filePath), zap.Error(err))
		}
	}
	return nil
}

// enqueueEmbeddingJobs writes one Pending embedding_jobs row per chunk,
// matching spec.md §4.J's queue-on-insert contract.
func (o *Orchestrator) enqueueEmbeddingJobs(chunks []model.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := o.mysql.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range chunks {
		if _, err := tx.Exec(`
			INSERT INTO embedding_jobs (id, repo_id, branch_name, commit_sha, target_kind, target_id, model, status, attempts, next_attempt_at)
			VALUES (?, ?, ?, '', 'CodeChunk', ?, ?, 'Pending', 0, NOW())
			ON DUPLICATE KEY UPDATE status = 'Pending', attempts = 0, next_attempt_at = NOW()
		`, uuid.NewString(), c.RepoID, c.BranchName, c.ID, o.embeddingModel); err != nil {
			return fmt.Errorf("failed to enqueue embedding job for chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// buildSearchArtifacts computes the per-symbol SimHash fingerprint
// (component B) and full-text search row (component K's lexical leg)
// for every symbol in a freshly parsed file. Snippets are drawn from the
// chunk, if any, covering that symbol.
func buildSearchArtifacts(symbols []model.Symbol, chunks []model.CodeChunk, commitSHA string) ([]model.SymbolFingerprint, []model.SymbolSearch) {
	snippetBySymbolID := map[string]string{}
	for _, c := range chunks {
		if c.SymbolID != "" {
			snippetBySymbolID[c.SymbolID] = truncateSnippet(c.Content)
		}
	}

	fingerprints := make([]model.SymbolFingerprint, 0, len(symbols))
	searchRows := make([]model.SymbolSearch, 0, len(symbols))
	for _, sym := range symbols {
		tokens := tokenize.TokenizeIdentifiers(sym.QualifiedName)
		fp := fingerprint.Fingerprint(tokens)
		bands := fingerprint.SplitBands(fp)
		fingerprints = append(fingerprints, model.SymbolFingerprint{
			SymbolID: sym.ID, RepoID: sym.RepoID, BranchName: sym.BranchName,
			Language: sym.Language, Kind: string(sym.Kind), FingerprintKind: "qualified_name",
			Fingerprint: fp, Band0: bands.Band0, Band1: bands.Band1, Band2: bands.Band2, Band3: bands.Band3,
		})

		searchRows = append(searchRows, model.SymbolSearch{
			SymbolID: sym.ID, RepoID: sym.RepoID, BranchName: sym.BranchName, CommitSHA: commitSHA,
			FilePath: sym.FilePath, Kind: string(sym.Kind), Language: sym.Language,
			NameTokens:          strings.Join(tokenize.Tokenize(sym.Name), " "),
			QualifiedTokens:     strings.Join(tokenize.Tokenize(sym.QualifiedName), " "),
			SignatureTokens:     strings.Join(tokenize.Tokenize(normalizedSignature(sym)), " "),
			DocumentationTokens: strings.Join(tokenize.Tokenize(sym.Documentation), " "),
			Snippet:             snippetBySymbolID[sym.ID],
		})
	}
	return fingerprints, searchRows
}

// signatureParseLanguages are the languages util.ParseSignatureByLanguage
// actually parses; anything else falls back to its raw signature text, since
// ParseSignatureByLanguage's default case discards the parameter list.
var signatureParseLanguages = map[string]bool{
	"go": true, "java": true, "python": true, "javascript": true, "typescript": true,
}

// normalizedSignature parses a symbol's raw signature string for its
// language and renders it back out through util's embedding-oriented
// normalizer, so SignatureTokens carries "find By Email String email
// returns User" rather than raw punctuation like "(" and "<>".
func normalizedSignature(sym model.Symbol) string {
	if sym.Signature == "" {
		return ""
	}
	lang := strings.ToLower(sym.Language)
	if !signatureParseLanguages[lang] {
		return sym.Signature
	}
	info := util.ParseSignatureByLanguage(sym.Signature, sym.Name, sym.ParentSymbolName, lang)
	return util.NormalizeSignatureForEmbedding(info)
}

func truncateSnippet(content string) string {
	if len(content) <= maxSnippetChars {
		return content
	}
	r := []rune(content)
	if len(r) <= maxSnippetChars {
		return content
	}
	return string(r[:maxSnippetChars])
}

func qualifiedName(sym model.Symbol) string {
	if sym.ParentSymbolName != "" {
		return sym.ParentSymbolName + "." + sym.Name
	}
	return sym.Name
}

func firstLine(content string) string {
	for i, r := range content {
		if r == '\n' {
			return content[:i]
		}
	}
	return content
}

func hashContent(content string) string {
	tokens := tokenize.Tokenize(content)
	var h uint64 = 1469598103934665603
	for _, t := range tokens {
		for _, r := range t {
			h ^= uint64(r)
			h *= 1099511628211
		}
	}
	return fmt.Sprintf("%x", h)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
