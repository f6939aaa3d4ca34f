// Package parse implements the two-tier parser set (spec.md §4.D): regex
// line-scan parsers for JS/TS, Python, Java, Go, and Rust, plus a semantic
// parser contract for C# that defers to an external analyzer.
//
// Grounded in the teacher's per-language dispatch shape
// (internal/chunk/visitor.go's TraverseNode switch on cv.language) but
// reworked from a tree-sitter syntax-tree walk into a line-scan regex walk,
// since spec.md §4.D calls for regex parsers rather than a grammar-based
// one for these languages.
package parse

import (
	"fmt"

	"github.com/armchr/codeindex/internal/model"
)

// Parser extracts symbols and edges from one file's source text. A parser
// must never panic; failures are reported via ParsedFile.Success/Error with
// empty Symbols/Edges.
type Parser interface {
	Parse(repoID, branchName, commitSHA, filePath, language, source string) model.ParsedFile
}

// Registry dispatches to the parser registered for a language tag.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds the default registry: regex parsers for every
// regex-mode language, and the semantic adapter for C#.
func NewRegistry(csharp Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.parsers["JavaScript"] = regexParserFor("JavaScript")
	r.parsers["TypeScript"] = regexParserFor("TypeScript")
	r.parsers["Python"] = pythonParser{}
	r.parsers["Java"] = regexParserFor("Java")
	r.parsers["Go"] = regexParserFor("Go")
	r.parsers["Rust"] = regexParserFor("Rust")
	if csharp != nil {
		r.parsers["CSharp"] = csharp
	}
	return r
}

// Parse runs the registered parser for language, recovering from any panic
// inside a parser implementation so a single bad file never aborts a batch
// (spec.md §4.D: "a parser must not throw").
func (r *Registry) Parse(repoID, branchName, commitSHA, filePath, language, source string) (pf model.ParsedFile) {
	p, ok := r.parsers[language]
	if !ok {
		return model.ParsedFile{
			RepoID: repoID, BranchName: branchName, CommitSHA: commitSHA,
			FilePath: filePath, Language: language,
			Success: false, Error: fmt.Sprintf("no parser registered for language %q", language),
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			pf = model.ParsedFile{
				RepoID: repoID, BranchName: branchName, CommitSHA: commitSHA,
				FilePath: filePath, Language: language,
				Success: false, Error: fmt.Sprintf("parser panic: %v", rec),
			}
		}
	}()

	return p.Parse(repoID, branchName, commitSHA, filePath, language, source)
}
