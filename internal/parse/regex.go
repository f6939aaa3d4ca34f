package parse

import (
	"regexp"
	"strings"

	"github.com/armchr/codeindex/internal/model"
)

// symbolPattern pairs a regex (whose first capture group is the symbol
// name) with the SymbolKind it denotes. The trimmed match line is always
// used as the symbol's signature.
type symbolPattern struct {
	re   *regexp.Regexp
	kind model.SymbolKind
}

// languagePatterns is the line-scan pattern table per regex-mode language.
// Patterns are tried top-to-bottom per line; first match wins.
var languagePatterns = map[string][]symbolPattern{
	"Go": {
		{regexp.MustCompile(`^\s*func\s+\([^)]*\)\s*([A-Za-z_]\w*)\s*\(`), model.KindMethod},
		{regexp.MustCompile(`^\s*func\s+([A-Za-z_]\w*)\s*\(`), model.KindFunction},
		{regexp.MustCompile(`^\s*type\s+([A-Za-z_]\w*)\s+struct\b`), model.KindStruct},
		{regexp.MustCompile(`^\s*type\s+([A-Za-z_]\w*)\s+interface\b`), model.KindInterface},
	},
	"Java": {
		{regexp.MustCompile(`^\s*(?:public|private|protected|static|final|\s)*class\s+([A-Za-z_]\w*)`), model.KindClass},
		{regexp.MustCompile(`^\s*(?:public|private|protected|static|final|\s)*interface\s+([A-Za-z_]\w*)`), model.KindInterface},
		{regexp.MustCompile(`^\s*(?:public|private|protected|static|final|\s)*enum\s+([A-Za-z_]\w*)`), model.KindEnum},
		{regexp.MustCompile(`^\s*(?:public|private|protected|static|final|synchronized|abstract|\s)*[\w<>\[\],\s]+\s+([A-Za-z_]\w*)\s*\([^;]*\)\s*\{?\s*$`), model.KindMethod},
	},
	"JavaScript": {
		{regexp.MustCompile(`^\s*class\s+([A-Za-z_$][\w$]*)`), model.KindClass},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`), model.KindFunction},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?\(?.*=>`), model.KindFunction},
		{regexp.MustCompile(`^\s*(?:async\s+)?([A-Za-z_$][\w$]*)\s*\([^)]*\)\s*\{`), model.KindMethod},
	},
	"TypeScript": {
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`), model.KindClass},
		{regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_$][\w$]*)`), model.KindInterface},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`), model.KindFunction},
		{regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::[^=]+)?=\s*(?:async\s*)?\(?.*=>`), model.KindFunction},
		{regexp.MustCompile(`^\s*(?:public|private|protected|readonly|static|\s)*([A-Za-z_$][\w$]*)\s*\([^)]*\)\s*(?::[^{]+)?\{`), model.KindMethod},
	},
	"Rust": {
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?struct\s+([A-Za-z_]\w*)`), model.KindStruct},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?enum\s+([A-Za-z_]\w*)`), model.KindEnum},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?trait\s+([A-Za-z_]\w*)`), model.KindInterface},
		{regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+([A-Za-z_]\w*)`), model.KindFunction},
	},
}

// regexParser is the generic line-scan parser shared by every regex-mode
// language except Python (which needs indentation tracking to distinguish
// a function from a method).
type regexParser struct {
	language string
}

func regexParserFor(language string) Parser {
	return regexParser{language: language}
}

func (p regexParser) Parse(repoID, branchName, commitSHA, filePath, language, source string) model.ParsedFile {
	patterns := languagePatterns[p.language]
	lines := strings.Split(source, "\n")

	var symbols []model.Symbol
	for i, line := range lines {
		for _, sp := range patterns {
			m := sp.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			startLine := i + 1
			endLine := findBlockEnd(lines, i)
			symbols = append(symbols, model.Symbol{
				RepoID: repoID, BranchName: branchName, FilePath: filePath,
				Name: name, Kind: sp.kind, Language: language,
				Span:      model.Span{StartLine: startLine, EndLine: endLine},
				Signature: strings.TrimSpace(line),
				CommitSHA: commitSHA,
			})
			break
		}
	}

	return model.ParsedFile{
		RepoID: repoID, BranchName: branchName, CommitSHA: commitSHA,
		FilePath: filePath, Language: language,
		Symbols: symbols, Edges: extractCallEdges(symbols, lines),
		SourceText: source, Success: true,
	}
}

// findBlockEnd is a brace/indent-agnostic heuristic: it scans forward from
// a symbol's declaration line counting brace depth (languages with braces)
// and falls back to "one line" only when no '{' appears anywhere from the
// declaration to the end of the file. A body-less declaration (e.g. a Rust
// trait method) followed by a braced block takes that later block's end.
func findBlockEnd(lines []string, startIdx int) int {
	depth := 0
	seenOpen := false
	for i := startIdx; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
			}
		}
		if seenOpen && depth <= 0 {
			return i + 1
		}
	}
	if !seenOpen {
		return startIdx + 1
	}
	return len(lines)
}

// extractCallEdges is a light-weight heuristic shared by the regex parsers:
// within each symbol's span, look for `identifier(` call sites and emit a
// Calls edge whose target is the bare identifier (qualified-name
// resolution, including parameter stripping, is the edge resolver's job
// per spec.md §4.F).
var callSitePattern = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*\(`)

func extractCallEdges(symbols []model.Symbol, lines []string) []model.UnresolvedEdge {
	var edges []model.UnresolvedEdge
	for idx := range symbols {
		sym := &symbols[idx]
		if sym.Kind != model.KindMethod && sym.Kind != model.KindFunction && sym.Kind != model.KindConstructor {
			continue
		}
		start := sym.Span.StartLine - 1
		end := sym.Span.EndLine
		if start < 0 {
			start = 0
		}
		if end > len(lines) {
			end = len(lines)
		}
		seen := make(map[string]bool)
		for i := start; i < end; i++ {
			for _, m := range callSitePattern.FindAllStringSubmatch(lines[i], -1) {
				callee := m[1]
				if callee == sym.Name || seen[callee] {
					continue
				}
				seen[callee] = true
				edges = append(edges, model.UnresolvedEdge{
					SourceSymbolName: sym.Name,
					SourceSpan:       sym.Span,
					TargetQualName:   callee,
					Kind:             model.EdgeCalls,
				})
			}
		}
	}
	return edges
}
