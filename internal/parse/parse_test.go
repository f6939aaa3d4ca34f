package parse

import (
	"testing"

	"github.com/armchr/codeindex/internal/model"
)

func TestGoParserExtractsFunctionAndMethod(t *testing.T) {
	src := "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n\ntype T struct{}\n\nfunc (t *T) Double(x int) int {\n\treturn Add(x, x)\n}\n"
	pf := regexParserFor("Go").Parse("repo1", "main", "sha1", "demo.go", "Go", src)
	if !pf.Success {
		t.Fatalf("expected success, got error: %s", pf.Error)
	}

	var foundFunc, foundMethod, foundStruct bool
	for _, s := range pf.Symbols {
		switch {
		case s.Name == "Add" && s.Kind == model.KindFunction:
			foundFunc = true
		case s.Name == "Double" && s.Kind == model.KindMethod:
			foundMethod = true
		case s.Name == "T" && s.Kind == model.KindStruct:
			foundStruct = true
		}
	}
	if !foundFunc || !foundMethod || !foundStruct {
		t.Fatalf("missing expected symbols: func=%v method=%v struct=%v, got %+v", foundFunc, foundMethod, foundStruct, pf.Symbols)
	}
}

func TestPythonParserDistinguishesFunctionFromMethod(t *testing.T) {
	src := "def top_level():\n    pass\n\nclass Greeter:\n    def say_hi(self):\n        pass\n"
	pf := pythonParser{}.Parse("repo1", "main", "sha1", "demo.py", "Python", src)
	if !pf.Success {
		t.Fatalf("expected success, got error: %s", pf.Error)
	}

	var funcKind, methodKind model.SymbolKind
	for _, s := range pf.Symbols {
		if s.Name == "top_level" {
			funcKind = s.Kind
		}
		if s.Name == "say_hi" {
			methodKind = s.Kind
			if s.ParentSymbolName != "Greeter" {
				t.Errorf("expected say_hi's parent to be Greeter, got %q", s.ParentSymbolName)
			}
		}
	}
	if funcKind != model.KindFunction {
		t.Errorf("expected top_level to be Function, got %v", funcKind)
	}
	if methodKind != model.KindMethod {
		t.Errorf("expected say_hi to be Method, got %v", methodKind)
	}
}

func TestRegistryRecoversFromParserPanic(t *testing.T) {
	r := NewRegistry(nil)
	r.parsers["Panics"] = panicParser{}
	pf := r.Parse("repo1", "main", "sha1", "bad.x", "Panics", "whatever")
	if pf.Success {
		t.Fatalf("expected Success=false after panic recovery")
	}
	if pf.Error == "" {
		t.Fatalf("expected a non-empty error message")
	}
}

type panicParser struct{}

func (panicParser) Parse(repoID, branchName, commitSHA, filePath, language, source string) model.ParsedFile {
	panic("boom")
}

func TestUnknownLanguageReturnsFailureNotPanic(t *testing.T) {
	r := NewRegistry(nil)
	pf := r.Parse("repo1", "main", "sha1", "mystery.zz", "Brainfuck", "")
	if pf.Success {
		t.Fatalf("expected Success=false for unregistered language")
	}
}
