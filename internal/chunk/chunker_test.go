package chunk

import (
	"strings"
	"testing"

	"github.com/armchr/codeindex/internal/model"
)

func TestChunkAddsContextWindow(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line"
	}
	source := strings.Join(lines, "\n")
	pf := model.ParsedFile{
		SourceText: source,
		Symbols: []model.Symbol{
			{Name: "Foo", Kind: model.KindFunction, Span: model.Span{StartLine: 10, EndLine: 12}},
		},
	}

	chunks := Chunk(DefaultConfig(), pf, map[string]string{"Foo@10": "sym-1"})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.ChunkStartLine != 5 || c.ChunkEndLine != 17 {
		t.Fatalf("expected window [5,17], got [%d,%d]", c.ChunkStartLine, c.ChunkEndLine)
	}
	if c.SymbolID != "sym-1" {
		t.Fatalf("expected symbol id to be wired through, got %q", c.SymbolID)
	}
}

func TestChunkSkipsNonChunkableKinds(t *testing.T) {
	pf := model.ParsedFile{
		SourceText: "x\ny\nz\n",
		Symbols: []model.Symbol{
			{Name: "v", Kind: model.KindVariable, Span: model.Span{StartLine: 1, EndLine: 1}},
		},
	}
	chunks := Chunk(DefaultConfig(), pf, nil)
	if len(chunks) != 0 {
		t.Fatalf("expected variables to be excluded from chunking by default, got %d chunks", len(chunks))
	}
}

func TestChunkFallsBackToBareRangeWhenOverBudget(t *testing.T) {
	big := strings.Repeat("x", 40000)
	cfg := DefaultConfig()
	pf := model.ParsedFile{
		SourceText: big + "\nSYMBOL\n" + big,
		Symbols: []model.Symbol{
			{Name: "Big", Kind: model.KindFunction, Span: model.Span{StartLine: 2, EndLine: 2}},
		},
	}
	chunks := Chunk(cfg, pf, nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ChunkStartLine != 2 || chunks[0].ChunkEndLine != 2 {
		t.Fatalf("expected fallback to bare symbol range [2,2], got [%d,%d]", chunks[0].ChunkStartLine, chunks[0].ChunkEndLine)
	}
}

func TestChunkTruncatesWhenBareRangeStillOverBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxChunkChars = 100
	huge := strings.Repeat("y", 5000)
	pf := model.ParsedFile{
		SourceText: huge,
		Symbols: []model.Symbol{
			{Name: "Huge", Kind: model.KindFunction, Span: model.Span{StartLine: 1, EndLine: 1}},
		},
	}
	chunks := Chunk(cfg, pf, nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(chunks[0].Content) > cfg.MaxChunkChars {
		t.Fatalf("expected truncated content within %d chars, got %d", cfg.MaxChunkChars, len(chunks[0].Content))
	}
}
