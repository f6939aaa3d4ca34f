package langdetect

import "testing"

func TestDetectByExtension(t *testing.T) {
	cases := map[string]string{
		"main.go":        "Go",
		"app/index.tsx":  "TypeScript",
		"pkg/lib.rs":     "Rust",
		"Service.java":   "Java",
		"models.py":      "Python",
		"Program.cs":     "CSharp",
		"config.unknown": Unknown,
	}
	for path, want := range cases {
		if got := Detect(path, ""); got != want {
			t.Errorf("Detect(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestDetectByShebang(t *testing.T) {
	if got := Detect("build_script", "#!/usr/bin/env python3"); got != "Python" {
		t.Errorf("Detect shebang python3 = %q, want Python", got)
	}
	if got := Detect("run", "#!/bin/bash"); got != "Shell" {
		t.Errorf("Detect shebang bash = %q, want Shell", got)
	}
}

func TestDetectByFilename(t *testing.T) {
	if got := Detect("Rakefile", ""); got != "Ruby" {
		t.Errorf("Detect(Rakefile) = %q, want Ruby", got)
	}
}

func TestShouldIndexExcludesDataAndUnknown(t *testing.T) {
	for _, lang := range []string{"JSON", "YAML", "HTML", Unknown} {
		if ShouldIndex(lang) {
			t.Errorf("ShouldIndex(%q) = true, want false", lang)
		}
	}
	if !ShouldIndex("Go") {
		t.Errorf("ShouldIndex(Go) = false, want true")
	}
}
