package compact

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/armchr/codeindex/internal/query"
)

func makeResults(n int, contentLen int) []query.Result {
	out := make([]query.Result, n)
	for i := 0; i < n; i++ {
		out[i] = query.Result{
			File: "a.go", Type: "chunk", Score: float64(n - i),
			Content: strings.Repeat("x", contentLen),
		}
	}
	return out
}

func TestCompactCapsResultCount(t *testing.T) {
	resp := query.Response{Results: makeResults(25, 1000)}
	out := Compact(resp, Config{MaxResults: 10, MaxSnippetChars: 8000, MaxJSONBytes: 16384})

	if len(out.Results) > 10 {
		t.Fatalf("got %d results, want <= 10", len(out.Results))
	}
	if out.Total != len(out.Results) {
		t.Errorf("Total = %d, want %d", out.Total, len(out.Results))
	}
	totalSnippetChars := 0
	for _, r := range out.Results {
		totalSnippetChars += len(r.Content)
	}
	if totalSnippetChars > 8000 {
		t.Errorf("total snippet chars = %d, want <= 8000", totalSnippetChars)
	}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(data) > 16384 {
		t.Errorf("serialized bytes = %d, want <= 16384", len(data))
	}
}

func TestCompactTruncatesWithEllipsis(t *testing.T) {
	resp := query.Response{Results: makeResults(1, 500)}
	out := Compact(resp, Config{MaxResults: 10, MaxSnippetChars: 100, MaxJSONBytes: 16384})

	if len(out.Results[0].Content) > 100 {
		t.Fatalf("content length = %d, want <= 100", len(out.Results[0].Content))
	}
	if !strings.HasSuffix(out.Results[0].Content, ellipsis) {
		t.Errorf("expected truncated content to end with %q, got %q", ellipsis, out.Results[0].Content)
	}
}

func TestCompactKeepsHighestScoredUnderByteCap(t *testing.T) {
	resp := query.Response{Results: makeResults(5, 4000)}
	out := Compact(resp, Config{MaxResults: 10, MaxSnippetChars: 8000, MaxJSONBytes: 2000})

	if len(out.Results) == 0 {
		t.Fatal("expected at least one result to survive")
	}
	// The lowest-scored results should be the first ones dropped.
	for _, r := range out.Results {
		if r.Score < float64(len(resp.Results)-len(out.Results)) {
			t.Errorf("expected low-scored results to be dropped first, got score %v among %d survivors", r.Score, len(out.Results))
		}
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	resp := query.Response{Results: makeResults(25, 1000)}
	cfg := Config{MaxResults: 10, MaxSnippetChars: 8000, MaxJSONBytes: 16384}

	once := Compact(resp, cfg)
	onceBytes, _ := json.Marshal(once)

	twice := Compact(once, cfg)
	twiceBytes, _ := json.Marshal(twice)

	if string(onceBytes) != string(twiceBytes) {
		t.Errorf("Compact is not idempotent:\nonce:  %s\ntwice: %s", onceBytes, twiceBytes)
	}
}
