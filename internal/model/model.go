// Package model holds the persisted entities for the code intelligence
// index: repositories, branches, commits, files, symbols, edges, chunks,
// embeddings, fingerprints, search rows, and embedding jobs.
package model

import "time"

// IndexState is the authoritative lifecycle marker for a Branch.
type IndexState string

const (
	IndexStatePending    IndexState = "Pending"
	IndexStateInProgress IndexState = "InProgress"
	IndexStateCompleted  IndexState = "Completed"
	IndexStateFailed     IndexState = "Failed"
	IndexStateStale      IndexState = "Stale"
)

// SymbolKind enumerates the symbol kinds produced by the parser set.
type SymbolKind string

const (
	KindNamespace   SymbolKind = "Namespace"
	KindClass       SymbolKind = "Class"
	KindInterface   SymbolKind = "Interface"
	KindStruct      SymbolKind = "Struct"
	KindEnum        SymbolKind = "Enum"
	KindMethod      SymbolKind = "Method"
	KindFunction    SymbolKind = "Function"
	KindConstructor SymbolKind = "Constructor"
	KindProperty    SymbolKind = "Property"
	KindField       SymbolKind = "Field"
	KindVariable    SymbolKind = "Variable"
	KindParameter   SymbolKind = "Parameter"
)

// ChunkableKinds returns true for the kinds the chunker acts on by default.
func ChunkableKinds() map[SymbolKind]bool {
	return map[SymbolKind]bool{
		KindClass:       true,
		KindInterface:   true,
		KindStruct:      true,
		KindEnum:        true,
		KindMethod:      true,
		KindFunction:    true,
		KindConstructor: true,
		KindProperty:    true,
	}
}

// EdgeKind enumerates the directed relation types between symbols.
type EdgeKind string

const (
	EdgeCalls      EdgeKind = "Calls"
	EdgeInherits   EdgeKind = "Inherits"
	EdgeImplements EdgeKind = "Implements"
	EdgeTypeOf     EdgeKind = "TypeOf"
	EdgeReturns    EdgeKind = "Returns"
)

// ChangeKind enumerates the kinds of file change the Git tracker reports.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "Added"
	ChangeModified ChangeKind = "Modified"
	ChangeDeleted  ChangeKind = "Deleted"
	ChangeRenamed  ChangeKind = "Renamed"
)

// JobStatus enumerates the embedding job queue's lifecycle states.
type JobStatus string

const (
	JobPending    JobStatus = "Pending"
	JobInProgress JobStatus = "InProgress"
	JobCompleted  JobStatus = "Completed"
	JobBlocked    JobStatus = "Blocked"
)

type Repository struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	RemoteURL     string    `json:"remote_url"`
	DefaultBranch string    `json:"default_branch"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Branch struct {
	ID               string     `json:"id"`
	RepoID           string     `json:"repo_id"`
	Name             string     `json:"name"`
	HeadCommitSHA    string     `json:"head_commit_sha"`
	IndexedCommitSHA string     `json:"indexed_commit_sha,omitempty"`
	IndexState       IndexState `json:"index_state"`
	LastIndexedAt    *time.Time `json:"last_indexed_at,omitempty"`
	LastAccessedAt   time.Time  `json:"last_accessed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type Commit struct {
	ID         string    `json:"id"`
	RepoID     string    `json:"repo_id"`
	SHA        string    `json:"sha"`
	BranchName string    `json:"branch_name"`
	Author     string    `json:"author"`
	Committer  string    `json:"committer"`
	Message    string    `json:"message"`
	IndexedAt  time.Time `json:"indexed_at"`
}

type File struct {
	ID         string    `json:"id"`
	RepoID     string    `json:"repo_id"`
	BranchName string    `json:"branch_name"`
	FilePath   string    `json:"file_path"`
	CommitSHA  string    `json:"commit_sha"`
	Language   string    `json:"language"`
	Size       int64     `json:"size"`
	LineCount  int       `json:"line_count"`
	IndexedAt  time.Time `json:"indexed_at"`
}

type Span struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

type Symbol struct {
	ID              string     `json:"id"`
	RepoID          string     `json:"repo_id"`
	BranchName      string     `json:"branch_name"`
	FilePath        string     `json:"file_path"`
	Name            string     `json:"name"`
	QualifiedName   string     `json:"qualified_name,omitempty"`
	Kind            SymbolKind `json:"kind"`
	Language        string     `json:"language"`
	Span            Span       `json:"span"`
	Signature       string     `json:"signature,omitempty"`
	Documentation   string     `json:"documentation,omitempty"`
	Modifiers       []string   `json:"modifiers,omitempty"`
	ParentSymbolID  string     `json:"parent_symbol_id,omitempty"`
	// ParentSymbolName is set by parsers that know the parent's name but
	// not yet its id (ids don't exist until the orchestrator persists this
	// batch); the orchestrator resolves it to ParentSymbolID before
	// persisting and never writes ParentSymbolName itself.
	ParentSymbolName string    `json:"-"`
	CommitSHA       string     `json:"commit_sha"`
	IndexedAt       time.Time  `json:"indexed_at"`
}

// Edge's Target starts life as a qualified-name string; the resolver (F)
// either turns it into a concrete TargetSymbolID or the edge is dropped.
type Edge struct {
	ID             string    `json:"id"`
	SourceSymbolID string    `json:"source_symbol_id"`
	TargetSymbolID string    `json:"target_symbol_id"`
	Kind           EdgeKind  `json:"kind"`
	RepoID         string    `json:"repo_id"`
	BranchName     string    `json:"branch_name"`
	CommitSHA      string    `json:"commit_sha"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// UnresolvedEdge is what the parser set emits before F runs. SourceSymbolID
// is empty at parse time (symbol ids don't exist yet); the orchestrator
// fills it in once ids are assigned, correlating by SourceSymbolName+Span.
type UnresolvedEdge struct {
	SourceSymbolID   string
	SourceSymbolName string
	SourceSpan       Span
	TargetQualName   string
	Kind             EdgeKind
}

type CodeChunk struct {
	ID               string    `json:"id"`
	RepoID           string    `json:"repo_id"`
	BranchName       string    `json:"branch_name"`
	FilePath         string    `json:"file_path"`
	ChunkStartLine   int       `json:"chunk_start_line"`
	ChunkEndLine     int       `json:"chunk_end_line"`
	SymbolID         string    `json:"symbol_id,omitempty"`
	SymbolName       string    `json:"symbol_name,omitempty"`
	SymbolKind       string    `json:"symbol_kind,omitempty"`
	Language         string    `json:"language"`
	Content          string    `json:"content"`
	SymbolStartLine  int       `json:"symbol_start_line"`
	SymbolEndLine    int       `json:"symbol_end_line"`
	TokenCount        int       `json:"token_count"`
	ParentSymbolName string    `json:"parent_symbol_name,omitempty"`
	Signature        string    `json:"signature,omitempty"`
	Documentation    string    `json:"documentation,omitempty"`
	IndexedAt        time.Time `json:"indexed_at"`
}

type Embedding struct {
	ID           string    `json:"id"`
	ChunkID      string    `json:"chunk_id"`
	RepoID       string    `json:"repo_id"`
	BranchName   string    `json:"branch_name"`
	CommitSHA    string    `json:"commit_sha"`
	Vector       []float32 `json:"vector"`
	Model        string    `json:"model"`
	ModelVersion string    `json:"model_version"`
	GeneratedAt  time.Time `json:"generated_at"`
}

type SymbolFingerprint struct {
	SymbolID      string `json:"symbol_id"`
	RepoID        string `json:"repo_id"`
	BranchName    string `json:"branch_name"`
	Language      string `json:"language"`
	Kind          string `json:"kind"`
	FingerprintKind string `json:"fingerprint_kind"`
	Fingerprint   uint64 `json:"fingerprint"`
	Band0         uint16 `json:"band0"`
	Band1         uint16 `json:"band1"`
	Band2         uint16 `json:"band2"`
	Band3         uint16 `json:"band3"`
}

type SymbolSearch struct {
	SymbolID          string `json:"symbol_id"`
	RepoID            string `json:"repo_id"`
	BranchName        string `json:"branch_name"`
	CommitSHA         string `json:"commit_sha"`
	FilePath          string `json:"file_path"`
	Kind              string `json:"kind"`
	Language          string `json:"language"`
	NameTokens        string `json:"name_tokens"`
	QualifiedTokens   string `json:"qualified_tokens"`
	SignatureTokens   string `json:"signature_tokens"`
	DocumentationTokens string `json:"documentation_tokens"`
	LiteralTokens     string `json:"literal_tokens"`
	Snippet           string `json:"snippet"`
}

type EmbeddingJob struct {
	ID            string     `json:"id"`
	RepoID        string     `json:"repo_id"`
	BranchName    string     `json:"branch_name"`
	CommitSHA     string     `json:"commit_sha"`
	TargetKind    string     `json:"target_kind"`
	TargetID      string     `json:"target_id"`
	Model         string     `json:"model"`
	Dims          int        `json:"dims,omitempty"`
	Status        JobStatus  `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LockedBy      string     `json:"locked_by,omitempty"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// FileChange is what the Git tracker (G) reports for a single path between
// the indexed commit and the current HEAD of a branch.
type FileChange struct {
	RepoID     string
	BranchName string
	Kind       ChangeKind
	FilePath   string
	OldPath    string // set only for Kind == ChangeRenamed
}

// ParsedFile is the output of the parser set (D): a single file's symbols
// and edges, plus the raw text the chunker (E) will window over.
type ParsedFile struct {
	RepoID     string
	BranchName string
	CommitSHA  string
	FilePath   string
	Language   string
	Symbols    []Symbol
	Edges      []UnresolvedEdge
	SourceText string
	Success    bool
	Error      string
}
