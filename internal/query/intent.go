package query

import (
	"regexp"
	"strings"

	"github.com/armchr/codeindex/internal/tokenize"
)

var (
	similarPrefixRe = regexp.MustCompile(`(?i)^\s*similar:\s*(\S+)\s*(.*)$`)
	relationsRe     = regexp.MustCompile(`(?i)\b(calls?|uses?|implement(s|ing)?|extends?|inherit(s|ing)?|callers?|callees?)\b`)
	incomingRe      = regexp.MustCompile(`(?i)\b(what\s+calls|who\s+calls|callers?\s+of|calls\s+into)\b`)
	documentationRe = regexp.MustCompile(`(?i)\b(explain|describe|what\s+is|what\s+does|documentation)\b`)
	examplesRe      = regexp.MustCompile(`(?i)\b(example|usage|sample|how\s+to\s+use)\b`)
	searchRe        = regexp.MustCompile(`(?i)\b(search\s+for|find\s+code|search\s+code)\b`)
	navigationRe    = regexp.MustCompile(`(?i)\b(find|show|locate|go\s+to|open)\b`)

	identifierRe = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]{2,}\b`)
	filePathRe   = regexp.MustCompile(`\b[\w.-]+(?:[/\\][\w.-]+)*\.[A-Za-z0-9]{1,8}\b`)

	pascalCaseRe = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)
	camelCaseRe  = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*[A-Z][a-zA-Z0-9]*$`)
	snakeCaseRe  = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)+$`)
)

// conceptTokens is a small set of generic nouns that, on their own,
// indicate a conceptual rather than identifier-anchored Navigation
// query (spec.md §4.K's Navigation→Search demotion rule).
var conceptTokens = map[string]bool{
	"logic": true, "handling": true, "processing": true, "flow": true,
	"validation": true, "authentication": true, "authorization": true,
	"configuration": true, "service": true, "component": true, "module": true,
}

// SimilarTarget is the parsed "similar:<id> extra terms" query shape.
type SimilarTarget struct {
	SymbolID   string
	ExtraTerms []string
}

// DetectIntent applies spec.md §4.K's ordered rule set, first match wins.
func DetectIntent(q string) Intent {
	if similarPrefixRe.MatchString(q) {
		return IntentSimilar
	}
	if relationsRe.MatchString(q) {
		return IntentRelations
	}
	if documentationRe.MatchString(q) {
		return IntentDocumentation
	}
	if examplesRe.MatchString(q) {
		return IntentExamples
	}
	if searchRe.MatchString(q) {
		return IntentSearch
	}
	if navigationRe.MatchString(q) {
		if isConceptualPhrase(q) {
			return IntentSearch
		}
		return IntentNavigation
	}
	return IntentSearch
}

// isConceptualPhrase reports whether q carries at least two generic
// "concept" tokens but no exact PascalCase identifier — the signal that
// demotes an apparent Navigation query to Search.
func isConceptualPhrase(q string) bool {
	conceptCount := 0
	for _, tok := range tokenize.Tokenize(q) {
		if conceptTokens[tok] {
			conceptCount++
		}
	}
	if conceptCount < 2 {
		return false
	}
	for _, word := range identifierRe.FindAllString(q, -1) {
		if pascalCaseRe.MatchString(word) {
			return false
		}
	}
	return true
}

// ParseSimilarTarget extracts the seed id and trailing filter terms from
// a "similar:<id> extra terms" query.
func ParseSimilarTarget(q string) (SimilarTarget, bool) {
	m := similarPrefixRe.FindStringSubmatch(q)
	if m == nil {
		return SimilarTarget{}, false
	}
	extra := strings.Fields(m[2])
	return SimilarTarget{SymbolID: m[1], ExtraTerms: extra}, true
}

// ExtractKeywords tokenizes and stopword-strips the query text for the
// metadata.keywords field and as lexical search input.
func ExtractKeywords(q string) []string {
	return tokenize.Tokenize(q)
}

// ExtractSymbolNames returns candidate identifier names (PascalCase,
// camelCase, or snake_case, length > 2) found in the query text.
func ExtractSymbolNames(q string) []string {
	var out []string
	seen := map[string]bool{}
	for _, word := range identifierRe.FindAllString(q, -1) {
		if len(word) <= 2 {
			continue
		}
		if !pascalCaseRe.MatchString(word) && !camelCaseRe.MatchString(word) && !snakeCaseRe.MatchString(word) {
			continue
		}
		if seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

// ExtractFilePaths returns candidate file-path-like tokens (word[/word]*.ext).
func ExtractFilePaths(q string) []string {
	return filePathRe.FindAllString(q, -1)
}
