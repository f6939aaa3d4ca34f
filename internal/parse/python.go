package parse

import (
	"regexp"
	"strings"

	"github.com/armchr/codeindex/internal/model"
)

var (
	pyClassPattern = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_]\w*)\s*[:(]`)
	pyDefPattern   = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
)

// pythonParser distinguishes *function* (module-level def, zero leading
// indentation) from *method* (indented def, nested inside a class body) by
// leading-indentation comparison against the nearest enclosing class, per
// spec.md §4.D.
type pythonParser struct{}

func (pythonParser) Parse(repoID, branchName, commitSHA, filePath, language, source string) model.ParsedFile {
	lines := strings.Split(source, "\n")

	type openClass struct {
		indent int
		name   string
	}
	var classStack []openClass

	var symbols []model.Symbol
	for i, line := range lines {
		indent := leadingSpaces(line)

		for len(classStack) > 0 && indent <= classStack[len(classStack)-1].indent && strings.TrimSpace(line) != "" {
			classStack = classStack[:len(classStack)-1]
		}

		if m := pyClassPattern.FindStringSubmatch(line); m != nil {
			name := m[2]
			end := findPythonBlockEnd(lines, i, indent)
			symbols = append(symbols, model.Symbol{
				RepoID: repoID, BranchName: branchName, FilePath: filePath,
				Name: name, Kind: model.KindClass, Language: language,
				Span: model.Span{StartLine: i + 1, EndLine: end},
				Signature: strings.TrimSpace(line), CommitSHA: commitSHA,
			})
			classStack = append(classStack, openClass{indent: indent, name: name})
			continue
		}

		if m := pyDefPattern.FindStringSubmatch(line); m != nil {
			name := m[2]
			end := findPythonBlockEnd(lines, i, indent)
			kind := model.KindFunction
			var parent string
			if len(classStack) > 0 && indent > classStack[len(classStack)-1].indent {
				kind = model.KindMethod
				parent = classStack[len(classStack)-1].name
			}
			symbols = append(symbols, model.Symbol{
				RepoID: repoID, BranchName: branchName, FilePath: filePath,
				Name: name, Kind: kind, Language: language,
				Span: model.Span{StartLine: i + 1, EndLine: end},
				Signature: strings.TrimSpace(line), ParentSymbolName: parent,
				CommitSHA: commitSHA,
			})
		}
	}

	return model.ParsedFile{
		RepoID: repoID, BranchName: branchName, CommitSHA: commitSHA,
		FilePath: filePath, Language: language,
		Symbols: symbols, Edges: extractCallEdges(symbols, lines),
		SourceText: source, Success: true,
	}
}

func leadingSpaces(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8 // normalize tabs to a fixed width for comparison
		} else {
			break
		}
	}
	return n
}

// findPythonBlockEnd scans forward until a non-blank line whose indentation
// is <= the declaration's own indentation, i.e. the block has dedented.
func findPythonBlockEnd(lines []string, startIdx int, declIndent int) int {
	for i := startIdx + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if leadingSpaces(lines[i]) <= declIndent {
			return i
		}
	}
	return len(lines)
}
