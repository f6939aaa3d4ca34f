// Package store implements the storage adapters SPEC_FULL.md component P
// describes: MySQL as the single source of truth for every §3 entity,
// Qdrant as a vector mirror, and Neo4j as a best-effort graph mirror for
// rerank only.
//
// The MySQL adapter is grounded on the teacher's internal/db/summary_store.go:
// the same sql.DB-wrapped-struct shape, EnsureTable-on-construction
// pattern, batch "INSERT ... VALUES (?, ?), (?, ?) ON DUPLICATE KEY
// UPDATE" idiom for upserts, and fmt.Errorf("...: %w", err) wrapping
// throughout — generalized here from one repo-scoped summaries table to
// the full fixed schema spec.md §3 defines, scoped by (repo_id,
// branch_name) columns instead of per-repo dynamic table names.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armchr/codeindex/internal/model"
)

type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	s := &MySQLStore{db: db, logger: logger}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ping is a lightweight readiness probe for the HTTP /ready endpoint.
func (s *MySQLStore) Ping() error {
	return s.db.Ping()
}

func (s *MySQLStore) ensureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS repositories (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			remote_url VARCHAR(1000) NOT NULL,
			default_branch VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS branches (
			id VARCHAR(36) PRIMARY KEY,
			repo_id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			head_commit_sha VARCHAR(40),
			indexed_commit_sha VARCHAR(40),
			index_state VARCHAR(20) NOT NULL,
			last_indexed_at TIMESTAMP NULL,
			last_accessed_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY idx_repo_branch (repo_id, name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS files (
			id VARCHAR(36) PRIMARY KEY,
			repo_id VARCHAR(36) NOT NULL,
			branch_name VARCHAR(255) NOT NULL,
			file_path VARCHAR(1000) NOT NULL,
			commit_sha VARCHAR(40),
			language VARCHAR(50),
			size BIGINT,
			line_count INT,
			indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY idx_repo_branch_path (repo_id, branch_name, file_path(255))
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS symbols (
			id VARCHAR(36) PRIMARY KEY,
			repo_id VARCHAR(36) NOT NULL,
			branch_name VARCHAR(255) NOT NULL,
			file_path VARCHAR(1000) NOT NULL,
			name VARCHAR(500) NOT NULL,
			qualified_name VARCHAR(1000),
			kind VARCHAR(30) NOT NULL,
			language VARCHAR(50),
			start_line INT, start_col INT, end_line INT, end_col INT,
			signature TEXT,
			documentation TEXT,
			parent_symbol_id VARCHAR(36),
			commit_sha VARCHAR(40),
			indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_repo_branch_file (repo_id, branch_name, file_path(255)),
			INDEX idx_repo_branch_qn (repo_id, branch_name, qualified_name(255))
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS edges (
			id VARCHAR(36) PRIMARY KEY,
			source_symbol_id VARCHAR(36) NOT NULL,
			target_symbol_id VARCHAR(36) NOT NULL,
			kind VARCHAR(30) NOT NULL,
			repo_id VARCHAR(36) NOT NULL,
			branch_name VARCHAR(255) NOT NULL,
			commit_sha VARCHAR(40),
			indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_source (source_symbol_id),
			INDEX idx_target (target_symbol_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS code_chunks (
			id VARCHAR(36) PRIMARY KEY,
			repo_id VARCHAR(36) NOT NULL,
			branch_name VARCHAR(255) NOT NULL,
			file_path VARCHAR(1000) NOT NULL,
			chunk_start_line INT, chunk_end_line INT,
			symbol_id VARCHAR(36),
			symbol_name VARCHAR(500),
			symbol_kind VARCHAR(30),
			language VARCHAR(50),
			content LONGTEXT,
			symbol_start_line INT, symbol_end_line INT,
			token_count INT,
			parent_symbol_name VARCHAR(500),
			signature TEXT,
			documentation TEXT,
			indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_repo_branch_file (repo_id, branch_name, file_path(255)),
			INDEX idx_symbol (symbol_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			id VARCHAR(36) PRIMARY KEY,
			chunk_id VARCHAR(36) NOT NULL,
			repo_id VARCHAR(36) NOT NULL,
			branch_name VARCHAR(255) NOT NULL,
			commit_sha VARCHAR(40),
			model VARCHAR(100) NOT NULL,
			model_version VARCHAR(100),
			dims INT,
			generated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY idx_chunk_model (chunk_id, model)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS symbol_fingerprints (
			symbol_id VARCHAR(36) PRIMARY KEY,
			repo_id VARCHAR(36) NOT NULL,
			branch_name VARCHAR(255) NOT NULL,
			language VARCHAR(50),
			kind VARCHAR(30),
			fingerprint_kind VARCHAR(30),
			fingerprint BIGINT UNSIGNED NOT NULL,
			band0 SMALLINT UNSIGNED, band1 SMALLINT UNSIGNED,
			band2 SMALLINT UNSIGNED, band3 SMALLINT UNSIGNED,
			INDEX idx_band0 (repo_id, branch_name, band0),
			INDEX idx_band1 (repo_id, branch_name, band1),
			INDEX idx_band2 (repo_id, branch_name, band2),
			INDEX idx_band3 (repo_id, branch_name, band3)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS symbol_search (
			symbol_id VARCHAR(36) PRIMARY KEY,
			repo_id VARCHAR(36) NOT NULL,
			branch_name VARCHAR(255) NOT NULL,
			commit_sha VARCHAR(40),
			file_path VARCHAR(1000),
			kind VARCHAR(30),
			language VARCHAR(50),
			name_tokens TEXT,
			qualified_tokens TEXT,
			signature_tokens TEXT,
			documentation_tokens TEXT,
			literal_tokens TEXT,
			snippet TEXT,
			FULLTEXT INDEX idx_fts (name_tokens, qualified_tokens, signature_tokens, documentation_tokens, literal_tokens)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS embedding_jobs (
			id VARCHAR(36) PRIMARY KEY,
			repo_id VARCHAR(36) NOT NULL,
			branch_name VARCHAR(255) NOT NULL,
			commit_sha VARCHAR(40),
			target_kind VARCHAR(30) NOT NULL,
			target_id VARCHAR(36) NOT NULL,
			model VARCHAR(100) NOT NULL,
			dims INT,
			status VARCHAR(20) NOT NULL,
			attempts INT DEFAULT 0,
			next_attempt_at TIMESTAMP NOT NULL,
			locked_by VARCHAR(100),
			locked_at TIMESTAMP NULL,
			last_error TEXT,
			UNIQUE KEY idx_target_model (target_id, model),
			INDEX idx_status_next (status, next_attempt_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertRepository inserts or refreshes a tracked repository's row.
func (s *MySQLStore) UpsertRepository(repo model.Repository) error {
	_, err := s.db.Exec(`
		INSERT INTO repositories (id, name, remote_url, default_branch)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE remote_url = VALUES(remote_url), default_branch = VALUES(default_branch)
	`, repo.ID, repo.Name, repo.RemoteURL, repo.DefaultBranch)
	if err != nil {
		return fmt.Errorf("failed to upsert repository: %w", err)
	}
	return nil
}

// GetOrCreateRepository looks up a repository by name, creating it with a
// fresh id when this is the first time it's been indexed. The config
// file is the source of truth for name/remoteURL/defaultBranch; this
// call keeps the repositories table in sync with it on every build.
func (s *MySQLStore) GetOrCreateRepository(name, remoteURL, defaultBranch string) (model.Repository, error) {
	repos, err := s.ListRepositories()
	if err != nil {
		return model.Repository{}, err
	}
	for _, r := range repos {
		if r.Name == name {
			r.RemoteURL = remoteURL
			r.DefaultBranch = defaultBranch
			if err := s.UpsertRepository(r); err != nil {
				return model.Repository{}, err
			}
			return r, nil
		}
	}

	repo := model.Repository{ID: uuid.NewString(), Name: name, RemoteURL: remoteURL, DefaultBranch: defaultBranch}
	if err := s.UpsertRepository(repo); err != nil {
		return model.Repository{}, err
	}
	return repo, nil
}

// GetRepositoryByName resolves the wire-level repository name (spec.md
// §6's `repository` request field) to the internal repo_id every other
// store method filters on. Query must call this once per request and
// pass the resolved id downstream — repository rows are keyed by a
// generated uuid (see GetOrCreateRepository), never by name.
func (s *MySQLStore) GetRepositoryByName(name string) (model.Repository, bool, error) {
	var repo model.Repository
	err := s.db.QueryRow(`
		SELECT id, name, remote_url, default_branch, created_at, updated_at
		FROM repositories WHERE name = ?
	`, name).Scan(&repo.ID, &repo.Name, &repo.RemoteURL, &repo.DefaultBranch, &repo.CreatedAt, &repo.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Repository{}, false, nil
	}
	if err != nil {
		return model.Repository{}, false, fmt.Errorf("failed to get repository by name: %w", err)
	}
	return repo, true, nil
}

// ListRepositories returns every tracked repository, used by the branch
// cleanup scheduler to enumerate what to sweep.
func (s *MySQLStore) ListRepositories() ([]model.Repository, error) {
	rows, err := s.db.Query(`SELECT id, name, remote_url, default_branch, created_at, updated_at FROM repositories`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var out []model.Repository
	for rows.Next() {
		var repo model.Repository
		if err := rows.Scan(&repo.ID, &repo.Name, &repo.RemoteURL, &repo.DefaultBranch, &repo.CreatedAt, &repo.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	return out, rows.Err()
}

// UpsertBranch inserts or updates a branch's lifecycle row.
func (s *MySQLStore) UpsertBranch(b model.Branch) error {
	_, err := s.db.Exec(`
		INSERT INTO branches (id, repo_id, name, head_commit_sha, indexed_commit_sha, index_state, last_indexed_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			head_commit_sha = VALUES(head_commit_sha),
			indexed_commit_sha = VALUES(indexed_commit_sha),
			index_state = VALUES(index_state),
			last_indexed_at = VALUES(last_indexed_at),
			last_accessed_at = VALUES(last_accessed_at)
	`, b.ID, b.RepoID, b.Name, b.HeadCommitSHA, nullIfEmpty(b.IndexedCommitSHA), string(b.IndexState), b.LastIndexedAt, b.LastAccessedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert branch: %w", err)
	}
	return nil
}

// ListBranches returns every tracked branch for a repository along with
// its lifecycle state, for the read-only repository/branch management
// endpoints.
func (s *MySQLStore) ListBranches(repoID string) ([]model.Branch, error) {
	rows, err := s.db.Query(`
		SELECT id, repo_id, name, head_commit_sha, indexed_commit_sha, index_state, last_indexed_at, last_accessed_at
		FROM branches WHERE repo_id = ?
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer rows.Close()

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		var indexedSHA *string
		if err := rows.Scan(&b.ID, &b.RepoID, &b.Name, &b.HeadCommitSHA, &indexedSHA, &b.IndexState, &b.LastIndexedAt, &b.LastAccessedAt); err != nil {
			return nil, err
		}
		if indexedSHA != nil {
			b.IndexedCommitSHA = *indexedSHA
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DeleteFileData removes a file's symbol and chunk rows, and every edge
// sourced at one of its symbols, ahead of re-indexing it — the
// orchestrator's delete-old step (spec.md §4.I), run inside the same
// *sql.Tx as the subsequent inserts. Edges from other files that target
// the file's symbols are kept.
func DeleteFileData(tx *sql.Tx, repoID, branchName, filePath string) error {
	if _, err := tx.Exec(`DELETE FROM edges WHERE source_symbol_id IN (
		SELECT id FROM symbols WHERE repo_id = ? AND branch_name = ? AND file_path = ?
	)`, repoID, branchName, filePath); err != nil {
		return fmt.Errorf("failed to delete old edges rows: %w", err)
	}
	tables := []string{"code_chunks", "symbols"}
	for _, t := range tables {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE repo_id = ? AND branch_name = ? AND file_path = ?", t), repoID, branchName, filePath); err != nil {
			return fmt.Errorf("failed to delete old %s rows: %w", t, err)
		}
	}
	// symbol_fingerprints and symbol_search key off symbol_id, which has
	// no file_path column of its own; callers delete those via
	// DeleteFileAuxData before calling this, while the symbols row they
	// key against still exists.
	return nil
}

// DeleteFileAuxData removes symbol_fingerprints and symbol_search rows
// for every symbol belonging to a file, via a subquery against symbols —
// used when the caller doesn't already have the prior batch's symbol ids
// in hand (e.g. file deletion).
func DeleteFileAuxData(tx *sql.Tx, repoID, branchName, filePath string) error {
	for _, t := range []string{"symbol_fingerprints", "symbol_search"} {
		query := fmt.Sprintf(`DELETE FROM %s WHERE symbol_id IN (
			SELECT id FROM symbols WHERE repo_id = ? AND branch_name = ? AND file_path = ?
		)`, t)
		if _, err := tx.Exec(query, repoID, branchName, filePath); err != nil {
			return fmt.Errorf("failed to delete old %s rows: %w", t, err)
		}
	}
	return nil
}

func InsertFingerprints(tx *sql.Tx, fps []model.SymbolFingerprint) error {
	if len(fps) == 0 {
		return nil
	}
	valueStrings := make([]string, 0, len(fps))
	args := make([]any, 0, len(fps)*11)
	for _, fp := range fps {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			fp.SymbolID, fp.RepoID, fp.BranchName, fp.Language, fp.Kind, fp.FingerprintKind,
			fp.Fingerprint, fp.Band0, fp.Band1, fp.Band2, fp.Band3,
		)
	}
	query := fmt.Sprintf(`
		INSERT INTO symbol_fingerprints (symbol_id, repo_id, branch_name, language, kind, fingerprint_kind, fingerprint, band0, band1, band2, band3)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert fingerprints: %w", err)
	}
	return nil
}

func InsertSymbolSearch(tx *sql.Tx, rows []model.SymbolSearch) error {
	if len(rows) == 0 {
		return nil
	}
	valueStrings := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*12)
	for _, r := range rows {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			r.SymbolID, r.RepoID, r.BranchName, r.CommitSHA, r.FilePath, r.Kind, r.Language,
			r.NameTokens, r.QualifiedTokens, r.SignatureTokens, r.DocumentationTokens, r.Snippet,
		)
	}
	query := fmt.Sprintf(`
		INSERT INTO symbol_search (symbol_id, repo_id, branch_name, commit_sha, file_path, kind, language, name_tokens, qualified_tokens, signature_tokens, documentation_tokens, snippet)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert symbol search rows: %w", err)
	}
	return nil
}

// BeginTx exposes a transaction handle to the orchestrator, which drives
// the delete-old/insert-new/insert-edges/insert-chunks/commit sequence
// itself. Edge resolution runs before that transaction opens, and
// embedding jobs are enqueued after it commits, in a transaction of
// their own.
func (s *MySQLStore) BeginTx() (*sql.Tx, error) {
	return s.db.Begin()
}

func InsertSymbols(tx *sql.Tx, symbols []model.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	valueStrings := make([]string, 0, len(symbols))
	args := make([]any, 0, len(symbols)*14)
	for _, sym := range symbols {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			sym.ID, sym.RepoID, sym.BranchName, sym.FilePath, sym.Name, sym.QualifiedName,
			string(sym.Kind), sym.Language, sym.Span.StartLine, sym.Span.StartCol, sym.Span.EndLine, sym.Span.EndCol,
			sym.Signature, nullIfEmpty(sym.ParentSymbolID),
		)
	}
	query := fmt.Sprintf(`
		INSERT INTO symbols (id, repo_id, branch_name, file_path, name, qualified_name, kind, language, start_line, start_col, end_line, end_col, signature, parent_symbol_id)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert symbols: %w", err)
	}
	return nil
}

func InsertEdges(tx *sql.Tx, edges []model.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	valueStrings := make([]string, 0, len(edges))
	args := make([]any, 0, len(edges)*6)
	for _, e := range edges {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?)")
		args = append(args, e.ID, e.SourceSymbolID, e.TargetSymbolID, string(e.Kind), e.RepoID, e.BranchName)
	}
	query := fmt.Sprintf(`
		INSERT INTO edges (id, source_symbol_id, target_symbol_id, kind, repo_id, branch_name)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert edges: %w", err)
	}
	return nil
}

func InsertChunks(tx *sql.Tx, chunks []model.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	valueStrings := make([]string, 0, len(chunks))
	args := make([]any, 0, len(chunks)*13)
	for _, c := range chunks {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			c.ID, c.RepoID, c.BranchName, c.FilePath, c.ChunkStartLine, c.ChunkEndLine,
			nullIfEmpty(c.SymbolID), c.SymbolName, c.SymbolKind, c.Language, c.Content, c.TokenCount, c.ParentSymbolName,
		)
	}
	query := fmt.Sprintf(`
		INSERT INTO code_chunks (id, repo_id, branch_name, file_path, chunk_start_line, chunk_end_line, symbol_id, symbol_name, symbol_kind, language, content, token_count, parent_symbol_name)
		VALUES %s
	`, strings.Join(valueStrings, ","))
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// LookupByQualifiedName implements edge.SymbolLookup (spec.md §4.F's
// L_db step): a single indexed query over symbols scoped to (repo, branch).
func (s *MySQLStore) LookupByQualifiedName(repoID, branchName string, normalizedNames []string) (map[string]string, error) {
	if len(normalizedNames) == 0 {
		return map[string]string{}, nil
	}
	args := make([]any, 0, len(normalizedNames)+2)
	args = append(args, repoID, branchName)
	conds := make([]string, 0, len(normalizedNames))
	for _, n := range normalizedNames {
		conds = append(conds, "LOWER(qualified_name) = ?")
		args = append(args, n)
	}
	query := fmt.Sprintf(`
		SELECT id, LOWER(qualified_name) FROM symbols
		WHERE repo_id = ? AND branch_name = ? AND (%s)
	`, strings.Join(conds, " OR "))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("qualified-name lookup failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, qn string
		if err := rows.Scan(&id, &qn); err != nil {
			return nil, err
		}
		if _, exists := out[qn]; !exists {
			out[qn] = id
		}
	}
	return out, rows.Err()
}

// LookupByStrippedPrefix implements edge.SymbolLookup's L_stripped step:
// matches by qualified name with the parameter list/generics removed,
// grouping all matching ids per stripped name so the resolver can reject
// ambiguous matches itself.
func (s *MySQLStore) LookupByStrippedPrefix(repoID, branchName string, strippedNames []string) (map[string][]string, error) {
	if len(strippedNames) == 0 {
		return map[string][]string{}, nil
	}
	args := make([]any, 0, len(strippedNames)+2)
	args = append(args, repoID, branchName)
	conds := make([]string, 0, len(strippedNames))
	for _, n := range strippedNames {
		conds = append(conds, "LOWER(SUBSTRING_INDEX(qualified_name, '(', 1)) = ?")
		args = append(args, n)
	}
	query := fmt.Sprintf(`
		SELECT id, LOWER(SUBSTRING_INDEX(qualified_name, '(', 1)) FROM symbols
		WHERE repo_id = ? AND branch_name = ? AND (%s)
	`, strings.Join(conds, " OR "))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("stripped-prefix lookup failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var id, stripped string
		if err := rows.Scan(&id, &stripped); err != nil {
			return nil, err
		}
		out[stripped] = append(out[stripped], id)
	}
	return out, rows.Err()
}

// FullTextSearch runs the BM25-style MySQL FULLTEXT query over
// symbol_search, returning symbol ids ranked by relevance, for the
// lexical half of the query orchestrator's hybrid fusion (spec.md §4.K).
func (s *MySQLStore) FullTextSearch(repoID, branchName, queryText string, limit int) ([]string, []float64, error) {
	rows, err := s.db.Query(`
		SELECT symbol_id, MATCH(name_tokens, qualified_tokens, signature_tokens, documentation_tokens, literal_tokens)
			AGAINST (? IN NATURAL LANGUAGE MODE) AS score
		FROM symbol_search
		WHERE repo_id = ? AND branch_name = ?
		HAVING score > 0
		ORDER BY score DESC
		LIMIT ?
	`, queryText, repoID, branchName, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("fulltext search failed: %w", err)
	}
	defer rows.Close()

	var ids []string
	var scores []float64
	for rows.Next() {
		var id string
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		scores = append(scores, score)
	}
	return ids, scores, rows.Err()
}

// ClaimJobs atomically claims up to batchSize pending/retry-ready jobs
// using SELECT ... FOR UPDATE SKIP LOCKED, matching spec.md §4.J's
// "workers must not double-process the same job" invariant.
func (s *MySQLStore) ClaimJobs(workerID string, batchSize int, leaseDuration time.Duration) ([]model.EmbeddingJob, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, repo_id, branch_name, commit_sha, target_kind, target_id, model, dims, attempts
		FROM embedding_jobs
		WHERE status IN ('Pending', 'InProgress') AND next_attempt_at <= NOW()
		ORDER BY next_attempt_at
		LIMIT ?
		FOR UPDATE SKIP LOCKED
	`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable jobs: %w", err)
	}

	var jobs []model.EmbeddingJob
	for rows.Next() {
		var j model.EmbeddingJob
		if err := rows.Scan(&j.ID, &j.RepoID, &j.BranchName, &j.CommitSHA, &j.TargetKind, &j.TargetID, &j.Model, &j.Dims, &j.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, j)
	}
	rows.Close()

	if len(jobs) == 0 {
		return nil, tx.Commit()
	}

	now := time.Now()
	lease := now.Add(leaseDuration)
	for _, j := range jobs {
		if _, err := tx.Exec(`
			UPDATE embedding_jobs SET status = 'InProgress', locked_by = ?, locked_at = ?, next_attempt_at = ?
			WHERE id = ?
		`, workerID, now, lease, j.ID); err != nil {
			return nil, fmt.Errorf("failed to lock job %s: %w", j.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job claim: %w", err)
	}
	return jobs, nil
}

// GetChunkByID fetches a chunk's content and path, the payload an
// embedding job's worker needs to call the embedding provider and to
// tag the resulting vector's Qdrant point.
func (s *MySQLStore) GetChunkByID(chunkID string) (model.CodeChunk, bool, error) {
	var c model.CodeChunk
	row := s.db.QueryRow(`
		SELECT id, repo_id, branch_name, file_path, content
		FROM code_chunks WHERE id = ?
	`, chunkID)
	if err := row.Scan(&c.ID, &c.RepoID, &c.BranchName, &c.FilePath, &c.Content); err != nil {
		if err == sql.ErrNoRows {
			return model.CodeChunk{}, false, nil
		}
		return model.CodeChunk{}, false, fmt.Errorf("failed to fetch chunk %s: %w", chunkID, err)
	}
	return c, true, nil
}

// UpsertEmbeddingRecord records that a (chunk, model) pair has a vector
// generated, mirroring the metadata whose actual vector lives in Qdrant.
func (s *MySQLStore) UpsertEmbeddingRecord(e model.Embedding) error {
	_, err := s.db.Exec(`
		INSERT INTO embeddings (id, chunk_id, repo_id, branch_name, commit_sha, model, model_version, dims)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE commit_sha = VALUES(commit_sha), model_version = VALUES(model_version), dims = VALUES(dims), generated_at = CURRENT_TIMESTAMP
	`, e.ID, e.ChunkID, e.RepoID, e.BranchName, e.CommitSHA, e.Model, e.ModelVersion, e.Dims)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding record for chunk %s: %w", e.ChunkID, err)
	}
	return nil
}

func (s *MySQLStore) CompleteJob(jobID string) error {
	_, err := s.db.Exec(`UPDATE embedding_jobs SET status = 'Completed', locked_by = NULL, locked_at = NULL WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	return nil
}

// RequeueJob records a failed attempt with exponential backoff
// (30*2^(attempts-1), capped at backoffCapSeconds per spec.md §4.J),
// blocking the job once attempts reaches maxAttempts.
func (s *MySQLStore) RequeueJob(jobID string, attempts int, lastErr string, maxAttempts, backoffBaseSeconds, backoffCapSeconds int) error {
	status := "Pending"
	if attempts >= maxAttempts {
		status = "Blocked"
	}
	backoff := backoffBaseSeconds
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= backoffCapSeconds {
			backoff = backoffCapSeconds
			break
		}
	}
	next := time.Now().Add(time.Duration(backoff) * time.Second)

	_, err := s.db.Exec(`
		UPDATE embedding_jobs
		SET status = ?, attempts = ?, next_attempt_at = ?, locked_by = NULL, locked_at = NULL, last_error = ?
		WHERE id = ?
	`, status, attempts, next, lastErr, jobID)
	if err != nil {
		return fmt.Errorf("failed to requeue job %s: %w", jobID, err)
	}
	return nil
}

// RequeueStaleLeases resets jobs whose lease (next_attempt_at, used as
// the lease expiry while InProgress) has passed without completion back
// to Pending, per spec.md §4.J's crashed-worker recovery requirement.
func (s *MySQLStore) RequeueStaleLeases() (int64, error) {
	res, err := s.db.Exec(`
		UPDATE embedding_jobs SET status = 'Pending', locked_by = NULL, locked_at = NULL
		WHERE status = 'InProgress' AND next_attempt_at <= NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale leases: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// FingerprintCandidatesInBands returns symbol ids sharing at least one
// SimHash band with the given bands, for the similarity operator
// (spec.md §4.K) before the caller ranks by Hamming distance.
func (s *MySQLStore) FingerprintCandidatesInBands(repoID, branchName string, bands [4]uint16, excludeSymbolID string) ([]model.SymbolFingerprint, error) {
	rows, err := s.db.Query(`
		SELECT symbol_id, fingerprint, band0, band1, band2, band3
		FROM symbol_fingerprints
		WHERE repo_id = ? AND branch_name = ? AND symbol_id != ?
		  AND (band0 = ? OR band1 = ? OR band2 = ? OR band3 = ?)
	`, repoID, branchName, excludeSymbolID, bands[0], bands[1], bands[2], bands[3])
	if err != nil {
		return nil, fmt.Errorf("fingerprint band lookup failed: %w", err)
	}
	defer rows.Close()

	var out []model.SymbolFingerprint
	for rows.Next() {
		var fp model.SymbolFingerprint
		if err := rows.Scan(&fp.SymbolID, &fp.Fingerprint, &fp.Band0, &fp.Band1, &fp.Band2, &fp.Band3); err != nil {
			return nil, err
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// CountEdges is the MySQL COUNT(*) fallback SPEC_FULL.md component P
// names for when the Neo4j mirror is behind or unreachable.
func (s *MySQLStore) CountEdges(symbolID string) (outDegree, inDegree int, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM edges WHERE source_symbol_id = ?`, symbolID).Scan(&outDegree); err != nil {
		return 0, 0, fmt.Errorf("out-degree count failed: %w", err)
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM edges WHERE target_symbol_id = ?`, symbolID).Scan(&inDegree); err != nil {
		return 0, 0, fmt.Errorf("in-degree count failed: %w", err)
	}
	return outDegree, inDegree, nil
}

// GetSymbolByID fetches a single symbol by id, for the similarity
// operator's seed lookup and for result assembly in general.
func (s *MySQLStore) GetSymbolByID(symbolID string) (model.Symbol, bool, error) {
	var sym model.Symbol
	row := s.db.QueryRow(`
		SELECT id, repo_id, branch_name, file_path, name, qualified_name, kind, language,
			start_line, start_col, end_line, end_col, signature, IFNULL(parent_symbol_id, '')
		FROM symbols WHERE id = ?
	`, symbolID)
	var kind string
	if err := row.Scan(&sym.ID, &sym.RepoID, &sym.BranchName, &sym.FilePath, &sym.Name, &sym.QualifiedName, &kind,
		&sym.Language, &sym.Span.StartLine, &sym.Span.StartCol, &sym.Span.EndLine, &sym.Span.EndCol,
		&sym.Signature, &sym.ParentSymbolID); err != nil {
		if err == sql.ErrNoRows {
			return model.Symbol{}, false, nil
		}
		return model.Symbol{}, false, fmt.Errorf("failed to fetch symbol %s: %w", symbolID, err)
	}
	sym.Kind = model.SymbolKind(kind)
	return sym, true, nil
}

// FindSymbolsByName does a case-insensitive fuzzy (substring) match over
// symbol names, for the Navigation intent's name-based lookup (spec.md
// §4.K) when no exact qualified-name match exists.
func (s *MySQLStore) FindSymbolsByName(repoID, branchName, name string, limit int) ([]model.Symbol, error) {
	rows, err := s.db.Query(`
		SELECT id, repo_id, branch_name, file_path, name, qualified_name, kind, language,
			start_line, start_col, end_line, end_col, signature, IFNULL(parent_symbol_id, '')
		FROM symbols
		WHERE repo_id = ? AND branch_name = ? AND LOWER(name) LIKE CONCAT('%', LOWER(?), '%')
		ORDER BY LENGTH(name) ASC
		LIMIT ?
	`, repoID, branchName, name, limit)
	if err != nil {
		return nil, fmt.Errorf("fuzzy name lookup failed: %w", err)
	}
	defer rows.Close()

	var out []model.Symbol
	for rows.Next() {
		var sym model.Symbol
		var kind string
		if err := rows.Scan(&sym.ID, &sym.RepoID, &sym.BranchName, &sym.FilePath, &sym.Name, &sym.QualifiedName, &kind,
			&sym.Language, &sym.Span.StartLine, &sym.Span.StartCol, &sym.Span.EndLine, &sym.Span.EndCol,
			&sym.Signature, &sym.ParentSymbolID); err != nil {
			return nil, err
		}
		sym.Kind = model.SymbolKind(kind)
		out = append(out, sym)
	}
	return out, rows.Err()
}

// GetChunkBySymbolID fetches the first chunk covering a symbol, used to
// surface a content snippet for symbol-lookup-driven results (Navigation,
// Relations) the same way hybrid search surfaces one for its chunk hits.
func (s *MySQLStore) GetChunkBySymbolID(symbolID string) (model.CodeChunk, bool, error) {
	var c model.CodeChunk
	row := s.db.QueryRow(`
		SELECT id, repo_id, branch_name, file_path, chunk_start_line, chunk_end_line, content
		FROM code_chunks WHERE symbol_id = ? LIMIT 1
	`, symbolID)
	if err := row.Scan(&c.ID, &c.RepoID, &c.BranchName, &c.FilePath, &c.ChunkStartLine, &c.ChunkEndLine, &c.Content); err != nil {
		if err == sql.ErrNoRows {
			return model.CodeChunk{}, false, nil
		}
		return model.CodeChunk{}, false, fmt.Errorf("failed to fetch chunk for symbol %s: %w", symbolID, err)
	}
	return c, true, nil
}

// GetChunksByIDs batch-fetches chunks for hybrid search's chunk-id results.
func (s *MySQLStore) GetChunksByIDs(chunkIDs []string) (map[string]model.CodeChunk, error) {
	if len(chunkIDs) == 0 {
		return map[string]model.CodeChunk{}, nil
	}
	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT id, repo_id, branch_name, file_path, chunk_start_line, chunk_end_line,
			IFNULL(symbol_id, ''), IFNULL(symbol_name, ''), IFNULL(symbol_kind, ''), language, content, IFNULL(parent_symbol_name, '')
		FROM code_chunks WHERE id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("chunk batch fetch failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.CodeChunk, len(chunkIDs))
	for rows.Next() {
		var c model.CodeChunk
		if err := rows.Scan(&c.ID, &c.RepoID, &c.BranchName, &c.FilePath, &c.ChunkStartLine, &c.ChunkEndLine,
			&c.SymbolID, &c.SymbolName, &c.SymbolKind, &c.Language, &c.Content, &c.ParentSymbolName); err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// EdgeTarget is one endpoint of a resolved edge, named for display
// rather than by bare id.
type EdgeTarget struct {
	SymbolID      string
	Name          string
	QualifiedName string
	FilePath      string
	Kind          model.EdgeKind
}

// OutgoingEdges returns up to limit edges sourced at symbolID, joined
// against the target symbol's name — the Relations intent's "what does X
// call" direction (spec.md §4.K).
func (s *MySQLStore) OutgoingEdges(symbolID string, limit int) ([]EdgeTarget, error) {
	return s.edgesJoin(`SELECT e.kind, s.id, s.name, s.qualified_name, s.file_path FROM edges e JOIN symbols s ON s.id = e.target_symbol_id WHERE e.source_symbol_id = ? LIMIT ?`, symbolID, limit)
}

// IncomingEdges returns up to limit edges targeting symbolID, joined
// against the source symbol's name — the "what calls X" direction.
func (s *MySQLStore) IncomingEdges(symbolID string, limit int) ([]EdgeTarget, error) {
	return s.edgesJoin(`SELECT e.kind, s.id, s.name, s.qualified_name, s.file_path FROM edges e JOIN symbols s ON s.id = e.source_symbol_id WHERE e.target_symbol_id = ? LIMIT ?`, symbolID, limit)
}

func (s *MySQLStore) edgesJoin(query, symbolID string, limit int) ([]EdgeTarget, error) {
	rows, err := s.db.Query(query, symbolID, limit)
	if err != nil {
		return nil, fmt.Errorf("edge join query failed: %w", err)
	}
	defer rows.Close()

	var out []EdgeTarget
	for rows.Next() {
		var t EdgeTarget
		var kind string
		if err := rows.Scan(&kind, &t.SymbolID, &t.Name, &t.QualifiedName, &t.FilePath); err != nil {
			return nil, err
		}
		t.Kind = model.EdgeKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetFingerprintBySymbolID fetches the SimHash fingerprint row for the
// similarity operator's seed lookup.
func (s *MySQLStore) GetFingerprintBySymbolID(symbolID string) (model.SymbolFingerprint, bool, error) {
	var fp model.SymbolFingerprint
	row := s.db.QueryRow(`
		SELECT symbol_id, repo_id, branch_name, language, kind, fingerprint_kind, fingerprint, band0, band1, band2, band3
		FROM symbol_fingerprints WHERE symbol_id = ?
	`, symbolID)
	if err := row.Scan(&fp.SymbolID, &fp.RepoID, &fp.BranchName, &fp.Language, &fp.Kind, &fp.FingerprintKind,
		&fp.Fingerprint, &fp.Band0, &fp.Band1, &fp.Band2, &fp.Band3); err != nil {
		if err == sql.ErrNoRows {
			return model.SymbolFingerprint{}, false, nil
		}
		return model.SymbolFingerprint{}, false, fmt.Errorf("failed to fetch fingerprint for symbol %s: %w", symbolID, err)
	}
	return fp, true, nil
}

// GetSymbolSearchRow fetches the raw token/snippet fields the similarity
// operator's post-text filter matches against.
func (s *MySQLStore) GetSymbolSearchRow(symbolID string) (model.SymbolSearch, bool, error) {
	var r model.SymbolSearch
	row := s.db.QueryRow(`
		SELECT symbol_id, repo_id, branch_name, IFNULL(commit_sha, ''), IFNULL(file_path, ''), kind, language,
			IFNULL(name_tokens, ''), IFNULL(qualified_tokens, ''), IFNULL(signature_tokens, ''), IFNULL(documentation_tokens, ''), IFNULL(snippet, '')
		FROM symbol_search WHERE symbol_id = ?
	`, symbolID)
	if err := row.Scan(&r.SymbolID, &r.RepoID, &r.BranchName, &r.CommitSHA, &r.FilePath, &r.Kind, &r.Language,
		&r.NameTokens, &r.QualifiedTokens, &r.SignatureTokens, &r.DocumentationTokens, &r.Snippet); err != nil {
		if err == sql.ErrNoRows {
			return model.SymbolSearch{}, false, nil
		}
		return model.SymbolSearch{}, false, fmt.Errorf("failed to fetch search row for symbol %s: %w", symbolID, err)
	}
	return r, true, nil
}
