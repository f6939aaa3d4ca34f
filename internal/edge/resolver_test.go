package edge

import (
	"testing"

	"github.com/armchr/codeindex/internal/model"
)

type fakeLookup struct {
	byQN       map[string]string
	byStripped map[string][]string
}

func (f fakeLookup) LookupByQualifiedName(repoID, branchName string, names []string) (map[string]string, error) {
	out := map[string]string{}
	for _, n := range names {
		if id, ok := f.byQN[n]; ok {
			out[n] = id
		}
	}
	return out, nil
}

func (f fakeLookup) LookupByStrippedPrefix(repoID, branchName string, names []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, n := range names {
		if ids, ok := f.byStripped[n]; ok {
			out[n] = ids
		}
	}
	return out, nil
}

func TestResolveCurrentBatchFirstWin(t *testing.T) {
	edges := []model.UnresolvedEdge{
		{SourceSymbolName: "Caller", SourceSpan: model.Span{StartLine: 1}, TargetQualName: "Ns.Callee", Kind: model.EdgeCalls},
	}
	current := []Candidate{{ID: "sym-callee", QualifiedName: "Ns.Callee", Name: "Callee"}}
	sourceIDs := map[string]string{"Caller@1": "sym-caller"}

	res, err := Resolve("repo1", "main", edges, sourceIDs, current, fakeLookup{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 1 || res.Resolved[0].TargetSymbolID != "sym-callee" {
		t.Fatalf("expected edge resolved to sym-callee, got %+v", res)
	}
}

func TestResolveStrippedAmbiguityIsDropped(t *testing.T) {
	// spec.md scenario 6: two stripped candidates -> drop, don't guess.
	edges := []model.UnresolvedEdge{
		{SourceSymbolName: "Caller", SourceSpan: model.Span{StartLine: 1}, TargetQualName: "Namespace.C.M(int)", Kind: model.EdgeCalls},
	}
	sourceIDs := map[string]string{"Caller@1": "sym-caller"}
	lookup := fakeLookup{
		byStripped: map[string][]string{
			"namespace.c.m": {"sym-m1", "sym-m2"},
		},
	}

	res, err := Resolve("repo1", "main", edges, sourceIDs, nil, lookup, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 0 || res.Discarded != 1 {
		t.Fatalf("expected the ambiguous edge to be discarded, got %+v", res)
	}
}

func TestResolveStrippedUniqueMatchAccepted(t *testing.T) {
	edges := []model.UnresolvedEdge{
		{SourceSymbolName: "Caller", SourceSpan: model.Span{StartLine: 1}, TargetQualName: "Namespace.C.M(int)", Kind: model.EdgeCalls},
	}
	sourceIDs := map[string]string{"Caller@1": "sym-caller"}
	lookup := fakeLookup{
		byStripped: map[string][]string{
			"namespace.c.m": {"sym-m1"},
		},
	}

	res, err := Resolve("repo1", "main", edges, sourceIDs, nil, lookup, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 1 || res.Resolved[0].TargetSymbolID != "sym-m1" {
		t.Fatalf("expected unique stripped match to resolve, got %+v", res)
	}
}

func TestResolveLocalScopeFallback(t *testing.T) {
	edges := []model.UnresolvedEdge{
		{SourceSymbolName: "Method", SourceSpan: model.Span{StartLine: 1}, TargetQualName: "Sibling", Kind: model.EdgeCalls},
	}
	sourceIDs := map[string]string{"Method@1": "sym-method"}
	childrenOfParent := map[string][]Candidate{
		"sym-class": {{ID: "sym-sibling", Name: "Sibling"}},
	}
	parentOf := map[string]string{"sym-method": "sym-class"}

	res, err := Resolve("repo1", "main", edges, sourceIDs, nil, fakeLookup{}, parentOf, childrenOfParent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 1 || res.Resolved[0].TargetSymbolID != "sym-sibling" {
		t.Fatalf("expected local-scope fallback to resolve, got %+v", res)
	}
}

func TestResolveDiscardsExternalReference(t *testing.T) {
	edges := []model.UnresolvedEdge{
		{SourceSymbolName: "Method", SourceSpan: model.Span{StartLine: 1}, TargetQualName: "System.Console.WriteLine", Kind: model.EdgeCalls},
	}
	sourceIDs := map[string]string{"Method@1": "sym-method"}

	res, err := Resolve("repo1", "main", edges, sourceIDs, nil, fakeLookup{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 0 || res.Discarded != 1 {
		t.Fatalf("expected external reference to be discarded, got %+v", res)
	}
}

func TestResolveUUIDTargetAcceptedAsIs(t *testing.T) {
	id := "550e8400-e29b-41d4-a716-446655440000"
	edges := []model.UnresolvedEdge{
		{SourceSymbolName: "Method", SourceSpan: model.Span{StartLine: 1}, TargetQualName: id, Kind: model.EdgeCalls},
	}
	sourceIDs := map[string]string{"Method@1": "sym-method"}

	res, err := Resolve("repo1", "main", edges, sourceIDs, nil, fakeLookup{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Resolved) != 1 || res.Resolved[0].TargetSymbolID != id {
		t.Fatalf("expected UUID target accepted as-is, got %+v", res)
	}
}
