package tokenize

import (
	"reflect"
	"testing"
)

func TestTokenizeCamelCase(t *testing.T) {
	got := Tokenize("findByEmailAddress")
	want := []string{"find", "by", "email", "address"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize camelCase = %v, want %v", got, want)
	}
}

func TestTokenizeAcronym(t *testing.T) {
	got := Tokenize("HTTPServer")
	want := []string{"http", "server"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize acronym = %v, want %v", got, want)
	}
}

func TestTokenizeDropsShortAndKeywords(t *testing.T) {
	got := Tokenize("a_ok_for_x")
	for _, tok := range got {
		if tok == "a" || tok == "for" || tok == "x" {
			t.Fatalf("expected short token / keyword to be dropped, got %v", got)
		}
	}
}

func TestTokenizeIdentifiersCapsAndFiltersDigits(t *testing.T) {
	got := TokenizeIdentifiers("item123 ab 42 fooBarBaz")
	for _, tok := range got {
		if tok == "ab" || tok == "42" {
			t.Fatalf("expected short/all-digit token to be dropped, got %v", got)
		}
	}
	if len(got) > identifierMaxResults {
		t.Fatalf("expected at most %d identifiers, got %d", identifierMaxResults, len(got))
	}
}

func TestTokenizeIdentifiersTruncatesInput(t *testing.T) {
	long := make([]byte, identifierMaxChars+500)
	for i := range long {
		long[i] = 'a'
	}
	got := TokenizeIdentifiers(string(long))
	if len(got) == 0 {
		t.Fatalf("expected at least one token from truncated input")
	}
}
