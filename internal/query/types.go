// Package query implements the query orchestrator (spec.md §4.K): intent
// detection, per-intent retrieval, hybrid search fusion, graph rerank,
// and the similarity operator, producing the QueryResponse envelope
// before it's handed to the response compactor (component L).
package query

// Intent is the rule-based classification of a query's phrasing.
type Intent string

const (
	IntentSimilar       Intent = "Similar"
	IntentRelations     Intent = "Relations"
	IntentDocumentation Intent = "Documentation"
	IntentExamples      Intent = "Examples"
	IntentSearch        Intent = "Search"
	IntentNavigation    Intent = "Navigation"
)

// Request is the Query operation's single public entry point (spec.md §6).
type Request struct {
	Repository string
	Query      string
	Branch     string
	MaxResults int
	Profile    string // "Fast" | "Hybrid" | "Semantic"
}

// Result is one entry in a QueryResponse, matching spec.md §6's envelope.
type Result struct {
	File    string       `json:"file"`
	Lines   string       `json:"lines,omitempty"`
	Score   float64      `json:"score"`
	Type    string       `json:"type"`
	Symbol  string       `json:"symbol,omitempty"`
	Kind    string       `json:"kind,omitempty"`
	Sig     string       `json:"sig,omitempty"`
	Content string       `json:"content,omitempty"`
	Docs    string       `json:"docs,omitempty"`
	Related []RelatedRef `json:"related,omitempty"`
	Reasons []string     `json:"-"` // internal only, never serialized

	// SymbolID is carried internally so the graph reranker can act on a
	// result without re-resolving its name; it is never serialized.
	SymbolID string `json:"-"`
}

// RelatedRef points a result back at another symbol it's connected to
// (e.g. a caller's related entry pointing at the callee).
type RelatedRef struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind,omitempty"`
	File   string `json:"file,omitempty"`
}

// Metadata carries the envelope's diagnostic fields.
type Metadata struct {
	Keywords       []string `json:"keywords"`
	Profile        string   `json:"profile"`
	Fallback       string   `json:"fallback,omitempty"`
	ErrorCode      string   `json:"errorCode,omitempty"`
	Error          string   `json:"error,omitempty"`
	EmbeddingUsed  bool     `json:"embeddingUsed"`
	EmbeddingModel string   `json:"embeddingModel,omitempty"`
}

// Response is the full QueryResponse envelope (spec.md §6). Repository
// and branch live only here, never duplicated per result.
type Response struct {
	Repo        string   `json:"repo"`
	Branch      string   `json:"branch"`
	Query       string   `json:"query"`
	Intent      Intent   `json:"intent"`
	Total       int      `json:"total"`
	Results     []Result `json:"results"`
	Suggestions []string `json:"suggestions"`
	Metadata    Metadata `json:"metadata"`
}
