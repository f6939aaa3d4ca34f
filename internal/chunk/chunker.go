// Package chunk implements the symbol-granular chunker (spec.md §4.E):
// bounded-context windows around a symbol's body, capped by character
// count, consumed later by the embedding pipeline.
//
// Grounded in the teacher's internal/chunk/visitor.go chunk-construction
// shape (one model.CodeChunk per syntactic unit, content plus span plus
// parent/signature metadata) but rebuilt as a line-window computation over
// already-parsed symbol spans instead of a tree-sitter visitor, since this
// chunker never touches a syntax tree — it only has ParsedFile.SourceText
// and Symbol spans available, exactly as spec.md §4.E specifies ("does not
// perform I/O; consumes source_text captured at parse time").
package chunk

import (
	"strings"

	"github.com/armchr/codeindex/internal/model"
)

const (
	DefaultContextLinesBefore = 5
	DefaultContextLinesAfter  = 5
	DefaultMaxChunkChars      = 30000
)

type Config struct {
	ContextLinesBefore int
	ContextLinesAfter  int
	MaxChunkChars      int
}

func DefaultConfig() Config {
	return Config{
		ContextLinesBefore: DefaultContextLinesBefore,
		ContextLinesAfter:  DefaultContextLinesAfter,
		MaxChunkChars:      DefaultMaxChunkChars,
	}
}

// Chunk builds the CodeChunk set for one parsed file. symbolIDs maps a
// symbol's (name, start_line) identity to its already-assigned id (the
// orchestrator assigns ids before calling Chunk). ParentSymbolName is
// copied from each symbol's own ParentSymbolName, for display.
func Chunk(cfg Config, pf model.ParsedFile, symbolIDs map[string]string) []model.CodeChunk {
	lines := strings.Split(pf.SourceText, "\n")
	n := len(lines)

	chunkable := model.ChunkableKinds()
	var chunks []model.CodeChunk

	for _, sym := range pf.Symbols {
		if !chunkable[sym.Kind] {
			continue
		}

		windowStart := sym.Span.StartLine - cfg.ContextLinesBefore
		if windowStart < 1 {
			windowStart = 1
		}
		windowEnd := sym.Span.EndLine + cfg.ContextLinesAfter
		if windowEnd > n {
			windowEnd = n
		}

		content := joinLines(lines, windowStart, windowEnd)

		// Drop the overlap first if the windowed content is too large, per
		// spec.md §4.E: fall back to the bare symbol range.
		if len(content) > cfg.MaxChunkChars {
			windowStart = sym.Span.StartLine
			windowEnd = sym.Span.EndLine
			if windowEnd > n {
				windowEnd = n
			}
			content = joinLines(lines, windowStart, windowEnd)
		}

		// Still too large: truncate char-granular, never mid multi-byte
		// rune (spec.md §9 open question resolved: char-granular means
		// rune-granular here, so we never split a UTF-8 sequence).
		if len(content) > cfg.MaxChunkChars {
			content = truncateRuneSafe(content, cfg.MaxChunkChars)
		}

		key := symbolKey(sym.Name, sym.Span.StartLine)
		symID := symbolIDs[key]

		chunks = append(chunks, model.CodeChunk{
			RepoID: pf.RepoID, BranchName: pf.BranchName,
			FilePath:        pf.FilePath,
			ChunkStartLine:  windowStart,
			ChunkEndLine:    windowEnd,
			SymbolID:        symID,
			SymbolName:      sym.Name,
			SymbolKind:      string(sym.Kind),
			Language:        pf.Language,
			Content:         content,
			SymbolStartLine: sym.Span.StartLine,
			SymbolEndLine:   sym.Span.EndLine,
			TokenCount:      estimateTokenCount(content),
			ParentSymbolName: sym.ParentSymbolName,
			Signature:       sym.Signature,
			Documentation:   sym.Documentation,
		})
	}

	return chunks
}

func symbolKey(name string, startLine int) string {
	return name + "@" + itoa(startLine)
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

func joinLines(lines []string, startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}

// estimateTokenCount follows spec.md §4.E's estimate: char_count / 4.
func estimateTokenCount(content string) int {
	return len(content) / 4
}

// truncateRuneSafe truncates to at most maxChars bytes without splitting a
// multi-byte UTF-8 sequence, appending an ellipsis marker.
func truncateRuneSafe(content string, maxChars int) string {
	const ellipsis = "... (truncated)"
	budget := maxChars - len(ellipsis)
	if budget <= 0 {
		return ellipsis[:maxChars]
	}
	runes := []rune(content)
	size := 0
	cut := 0
	for i, r := range runes {
		rl := len(string(r))
		if size+rl > budget {
			break
		}
		size += rl
		cut = i + 1
	}
	return string(runes[:cut]) + ellipsis
}
