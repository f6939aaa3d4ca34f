// Package edge implements the edge resolver (spec.md §4.F): turning
// qualified-name edge targets into concrete symbol ids, scoped per
// (repo, branch), with a parameter-stripping fallback and a local-scope
// parent fallback.
//
// Grounded in the teacher's internal/util/signature_normalizer.go
// normalization helpers — stripSignature calls util.StripGenericBlocks for
// the generics half of the qn-normalization step spec.md §4.F calls for,
// applied to qualified names instead of full signatures.
package edge

import (
	"regexp"
	"strings"

	"github.com/armchr/codeindex/internal/model"
	"github.com/armchr/codeindex/internal/util"
)

// SymbolLookup is the read handle the resolver needs against symbols
// already in the store, scoped to (repo, branch). Implemented by the
// store adapter.
type SymbolLookup interface {
	// LookupByQualifiedName resolves normalized qualified names to symbol
	// ids via a single indexed query (L_db in spec.md §4.F).
	LookupByQualifiedName(repoID, branchName string, normalizedNames []string) (map[string]string, error)
	// LookupByStrippedPrefix resolves stripped qualified names (parameter
	// list / generics removed) to the set of matching symbol ids
	// (L_stripped in spec.md §4.F); ambiguous matches are the caller's
	// responsibility to reject.
	LookupByStrippedPrefix(repoID, branchName string, strippedNames []string) (map[string][]string, error)
}

// Candidate is a symbol produced by the current batch, used to build
// L_current before any store round-trip.
type Candidate struct {
	ID            string
	QualifiedName string
	Name          string
	ParentID      string
}

type ResolveResult struct {
	Resolved  []model.Edge
	Discarded int
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Resolve implements the full resolution order from spec.md §4.F for a
// batch of unresolved edges, given a source-symbol-id-by-(name,span) map
// already assigned by the orchestrator, this batch's own just-inserted
// candidates, and a read handle into the store.
func Resolve(repoID, branchName string, edges []model.UnresolvedEdge, sourceIDs map[string]string, current []Candidate, lookup SymbolLookup, parentOf map[string]string, childrenOfParent map[string][]Candidate) (ResolveResult, error) {
	lCurrent := make(map[string]string, len(current))
	byID := make(map[string]Candidate, len(current))
	for _, c := range current {
		lCurrent[normalize(c.QualifiedName)] = firstWin(lCurrent, normalize(c.QualifiedName), c.ID)
		byID[c.ID] = c
	}

	normSet := make(map[string]bool)
	strippedSet := make(map[string]bool)
	for _, e := range edges {
		if uuidPattern.MatchString(e.TargetQualName) {
			continue
		}
		n := normalize(e.TargetQualName)
		normSet[n] = true
		strippedSet[stripSignature(n)] = true
	}

	normList := make([]string, 0, len(normSet))
	for n := range normSet {
		normList = append(normList, n)
	}
	strippedList := make([]string, 0, len(strippedSet))
	for s := range strippedSet {
		strippedList = append(strippedList, s)
	}

	lDB := map[string]string{}
	lStripped := map[string][]string{}
	var err error
	if len(normList) > 0 {
		lDB, err = lookup.LookupByQualifiedName(repoID, branchName, normList)
		if err != nil {
			return ResolveResult{}, err
		}
	}
	if len(strippedList) > 0 {
		lStripped, err = lookup.LookupByStrippedPrefix(repoID, branchName, strippedList)
		if err != nil {
			return ResolveResult{}, err
		}
	}

	var out ResolveResult
	for _, e := range edges {
		sourceID := e.SourceSymbolID
		if sourceID == "" {
			sourceID = sourceIDs[sourceKey(e.SourceSymbolName, e.SourceSpan)]
		}
		if sourceID == "" {
			out.Discarded++
			continue
		}

		targetID, ok := resolveOne(e.TargetQualName, lCurrent, lDB, lStripped, parentOf[sourceID], childrenOfParent)
		if !ok {
			out.Discarded++
			continue
		}

		out.Resolved = append(out.Resolved, model.Edge{
			SourceSymbolID: sourceID,
			TargetSymbolID: targetID,
			Kind:           e.Kind,
			RepoID:         repoID,
			BranchName:     branchName,
		})
	}

	return out, nil
}

func sourceKey(name string, span model.Span) string {
	return name + "@" + itoa(span.StartLine)
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

func firstWin(m map[string]string, key, val string) string {
	if existing, ok := m[key]; ok {
		return existing
	}
	return val
}

// resolveOne runs the five-step resolution order from spec.md §4.F.
func resolveOne(target string, lCurrent, lDB map[string]string, lStripped map[string][]string, parentID string, childrenOfParent map[string][]Candidate) (string, bool) {
	// 1. UUID-shaped target: accept as-is.
	if uuidPattern.MatchString(target) {
		return target, true
	}

	norm := normalize(target)

	// 2. L_current, then L_db.
	if id, ok := lCurrent[norm]; ok {
		return id, true
	}
	if id, ok := lDB[norm]; ok {
		return id, true
	}

	// 3. L_stripped — only accept if exactly one id.
	if ids, ok := lStripped[stripSignature(norm)]; ok && len(ids) == 1 {
		return ids[0], true
	}

	// 4. Local-scope fallback: search the source's parent's children for a
	// member whose short name equals the last dotted segment of target.
	if parentID != "" {
		shortName := lastSegment(target)
		for _, child := range childrenOfParent[parentID] {
			if strings.EqualFold(child.Name, shortName) {
				return child.ID, true
			}
		}
	}

	// 5. Discard: external/framework reference.
	return "", false
}

// normalize trims, lower-cases (invariant-style, i.e. simple byte-wise
// ToLower — see DESIGN.md's note on the locale-folding open question), and
// leaves parameter lists and generics intact; stripSignature is the
// separate step that removes those.
func normalize(qn string) string {
	return strings.ToLower(strings.TrimSpace(qn))
}

// stripSignature strips everything from the first '(' (parameter list) and
// collapses <...> generics, for the L_stripped fallback lookup.
func stripSignature(normalized string) string {
	s := normalized
	if idx := strings.Index(s, "("); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(util.StripGenericBlocks(s))
}

func lastSegment(qn string) string {
	parts := strings.Split(qn, ".")
	return parts[len(parts)-1]
}
