package index

import (
	"testing"

	"github.com/armchr/codeindex/internal/model"
)

func TestQualifiedNameUsesParentWhenPresent(t *testing.T) {
	sym := model.Symbol{Name: "Bar", ParentSymbolName: "Foo"}
	if got := qualifiedName(sym); got != "Foo.Bar" {
		t.Fatalf("expected Foo.Bar, got %q", got)
	}
	sym2 := model.Symbol{Name: "Bar"}
	if got := qualifiedName(sym2); got != "Bar" {
		t.Fatalf("expected bare name Bar, got %q", got)
	}
}

func TestFirstLineStopsAtNewline(t *testing.T) {
	if got := firstLine("#!/usr/bin/env python\nimport os\n"); got != "#!/usr/bin/env python" {
		t.Fatalf("unexpected first line: %q", got)
	}
	if got := firstLine("no newline"); got != "no newline" {
		t.Fatalf("expected full string when no newline, got %q", got)
	}
}

func TestNormalizedSignatureParsesKnownLanguage(t *testing.T) {
	sym := model.Symbol{
		Name: "findByEmail", ParentSymbolName: "UserService", Language: "Java",
		Signature: "public User findByEmail(String email)",
	}
	got := normalizedSignature(sym)
	want := "User Service find By Email String email returns User"
	if got != want {
		t.Fatalf("normalizedSignature() = %q, want %q", got, want)
	}
}

func TestNormalizedSignatureFallsBackForUnknownLanguage(t *testing.T) {
	sym := model.Symbol{Name: "compare", Language: "Rust", Signature: "fn compare(a: i32, b: i32) -> bool"}
	if got := normalizedSignature(sym); got != sym.Signature {
		t.Fatalf("normalizedSignature() = %q, want raw signature %q", got, sym.Signature)
	}
}

func TestHashContentDeterministic(t *testing.T) {
	a := hashContent("package main\nfunc main() {}\n")
	b := hashContent("package main\nfunc main() {}\n")
	if a != b {
		t.Fatalf("expected deterministic hash, got %q vs %q", a, b)
	}
	c := hashContent("package main\nfunc other() {}\n")
	if a == c {
		t.Fatalf("expected different content to hash differently")
	}
}
