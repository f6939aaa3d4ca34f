package store

import "testing"

func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Fatalf("expected nil for empty string")
	}
	if nullIfEmpty("x") != "x" {
		t.Fatalf("expected value passed through for non-empty string")
	}
}
