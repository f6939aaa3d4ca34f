package parse

import (
	"context"
	"fmt"

	"github.com/armchr/codeindex/internal/model"
)

// SemanticAnalyzer is the external collaborator spec.md §1 names as "the
// language-specific semantic analyzer for C#": a tool outside this
// codebase's scope that supplies qualified names, type information, and
// parent-symbol structure for a C# file. This package defines only the
// contract and an adapter; no from-scratch C# AST is implemented here.
//
// Grounded in pkg/lsp/base.LSPClient's shape (one interface per external
// language tool, context-aware methods, explicit error returns) — the
// teacher's own internal/parse/csharp_visitor.go is an unfinished stub
// (every switch case commented out) and never reaches this level of
// completeness either, which is consistent with treating C# analysis as a
// true external collaborator rather than something to build in-process.
type SemanticAnalyzer interface {
	// AnalyzeFile returns, for one C# source file, the fully-qualified
	// symbol set (namespace/class/interface/struct/enum/method/
	// constructor/property/field, with modifiers and parent links) and the
	// typed edges (Inherits/Implements/Calls/Returns/TypeOf) spec.md §4.D
	// describes, with primitive types already excluded from Returns/TypeOf
	// targets.
	AnalyzeFile(ctx context.Context, filePath string, source string) (SemanticResult, error)
}

type SemanticResult struct {
	Symbols []model.Symbol
	Edges   []model.UnresolvedEdge
}

// primitiveTypes is the hard-coded exclusion list for Returns/TypeOf edge
// targets: void, bool, every numeric width, char, string, native int.
var primitiveTypes = map[string]bool{
	"void": true, "bool": true, "byte": true, "sbyte": true,
	"short": true, "ushort": true, "int": true, "uint": true,
	"long": true, "ulong": true, "float": true, "double": true,
	"decimal": true, "char": true, "string": true, "nint": true, "nuint": true,
}

// IsPrimitive reports whether a C# type name is in the hard-coded
// primitive exclusion list, case-sensitive as the language itself is.
func IsPrimitive(typeName string) bool {
	return primitiveTypes[typeName]
}

// csharpParser adapts a SemanticAnalyzer to the Parser interface used by
// the registry, translating its errors into the non-throwing ParsedFile
// contract every other parser follows.
type csharpParser struct {
	analyzer SemanticAnalyzer
}

// NewCSharpParser wraps a SemanticAnalyzer implementation (wired at
// startup to whatever external analyzer process/library is configured) as
// a registry-compatible Parser.
func NewCSharpParser(analyzer SemanticAnalyzer) Parser {
	return csharpParser{analyzer: analyzer}
}

func (p csharpParser) Parse(repoID, branchName, commitSHA, filePath, language, source string) model.ParsedFile {
	if p.analyzer == nil {
		return model.ParsedFile{
			RepoID: repoID, BranchName: branchName, CommitSHA: commitSHA,
			FilePath: filePath, Language: language,
			Success: false, Error: "no C# semantic analyzer configured",
		}
	}

	result, err := p.analyzer.AnalyzeFile(context.Background(), filePath, source)
	if err != nil {
		return model.ParsedFile{
			RepoID: repoID, BranchName: branchName, CommitSHA: commitSHA,
			FilePath: filePath, Language: language,
			Success: false, Error: fmt.Sprintf("semantic analysis failed: %v", err),
		}
	}

	for i := range result.Symbols {
		result.Symbols[i].RepoID = repoID
		result.Symbols[i].BranchName = branchName
		result.Symbols[i].FilePath = filePath
		result.Symbols[i].Language = language
		result.Symbols[i].CommitSHA = commitSHA
	}

	return model.ParsedFile{
		RepoID: repoID, BranchName: branchName, CommitSHA: commitSHA,
		FilePath: filePath, Language: language,
		Symbols: result.Symbols, Edges: result.Edges,
		SourceText: source, Success: true,
	}
}
