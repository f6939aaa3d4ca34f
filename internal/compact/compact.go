// Package compact implements the response compactor (spec.md §4.L): a
// size governor applied to every QueryResponse before it leaves the
// service, enforcing hard caps on result count, snippet length, and
// total serialized bytes.
//
// Grounded on the teacher's internal/service/summary/context_builder.go,
// whose TruncateSummaries divides a total character budget evenly across
// a list of summaries and truncates (or, past a threshold, drops list
// items) to fit; generalized here from a flat summary list to
// QueryResponse's per-result snippet budgets plus the extra
// "drop-lowest-then-halve" shrink loop spec.md's algorithm adds on top.
package compact

import (
	"encoding/json"
	"sort"

	"github.com/armchr/codeindex/internal/query"
)

const ellipsis = "..."

// Config holds the three hard caps spec.md §4.L names.
type Config struct {
	MaxResults      int
	MaxSnippetChars int
	MaxJSONBytes    int
}

// DefaultConfig matches spec.md §4.L's stated defaults.
func DefaultConfig() Config {
	return Config{MaxResults: 10, MaxSnippetChars: 8000, MaxJSONBytes: 16384}
}

// Compact applies the size governor in place and returns the trimmed
// response. It is a monotone projection: applying it twice to its own
// output yields identical bytes, since every step only ever shrinks.
func Compact(resp query.Response, cfg Config) query.Response {
	if cfg.MaxResults > 0 && len(resp.Results) > cfg.MaxResults {
		resp.Results = topByScore(resp.Results, cfg.MaxResults)
	}

	snippetBudget := cfg.MaxSnippetChars
	distributeSnippets(resp.Results, snippetBudget)
	resp.Total = len(resp.Results)

	for cfg.MaxJSONBytes > 0 {
		data, err := json.Marshal(resp)
		if err == nil && len(data) <= cfg.MaxJSONBytes {
			break
		}
		if len(resp.Results) <= 1 {
			break
		}
		resp.Results = dropLowestScored(resp.Results)
		resp.Total = len(resp.Results)
		snippetBudget /= 2
		distributeSnippets(resp.Results, snippetBudget)
	}
	return resp
}

// topByScore keeps the n highest-scored results, preserving their
// relative order (the caller's ranking already reflects intent-specific
// ordering the compactor shouldn't disturb beyond the cut itself).
func topByScore(results []query.Result, n int) []query.Result {
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return results[idx[i]].Score > results[idx[j]].Score })
	keep := map[int]bool{}
	for _, i := range idx[:n] {
		keep[i] = true
	}
	out := make([]query.Result, 0, n)
	for i, r := range results {
		if keep[i] {
			out = append(out, r)
		}
	}
	return out
}

// dropLowestScored removes the single lowest-scored result.
func dropLowestScored(results []query.Result) []query.Result {
	lowest := 0
	for i, r := range results {
		if r.Score < results[lowest].Score {
			lowest = i
		}
	}
	out := make([]query.Result, 0, len(results)-1)
	out = append(out, results[:lowest]...)
	out = append(out, results[lowest+1:]...)
	return out
}

// distributeSnippets splits budget evenly across results' content fields,
// truncating with a trailing ellipsis marker when a snippet exceeds its
// share. Fields besides content are left untouched — spec.md's caps only
// ever bound the snippet payload, not symbol names or signatures.
func distributeSnippets(results []query.Result, budget int) {
	if len(results) == 0 || budget <= 0 {
		for i := range results {
			results[i].Content = ""
		}
		return
	}
	perResult := budget / len(results)
	for i, r := range results {
		results[i].Content = truncateWithEllipsis(r.Content, perResult)
	}
}

func truncateWithEllipsis(content string, budget int) string {
	r := []rune(content)
	if len(r) <= budget {
		return content
	}
	if budget <= len(ellipsis) {
		return string(r[:max(budget, 0)])
	}
	return string(r[:budget-len(ellipsis)]) + ellipsis
}
