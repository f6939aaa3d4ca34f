// Package langdetect maps file paths and shebang lines to a language tag,
// and decides which languages are worth indexing.
//
// Grounded in the teacher's Repository.Language/SkipOtherLanguages config
// shape (internal/config/config.go) for the notion of a declared-language
// repository, generalized here into a standalone path/shebang classifier
// since the teacher itself never implements path-based detection (it takes
// language from config per repository).
package langdetect

import (
	"path/filepath"
	"strings"
)

const Unknown = "Unknown"

var extensionLanguage = map[string]string{
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".mjs":   "JavaScript",
	".cjs":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".py":    "Python",
	".pyw":   "Python",
	".java":  "Java",
	".go":    "Go",
	".rs":    "Rust",
	".cs":    "CSharp",
	".json":  "JSON",
	".yaml":  "YAML",
	".yml":   "YAML",
	".html":  "HTML",
	".htm":   "HTML",
	".md":    "Markdown",
	".txt":   "Text",
	".xml":   "XML",
	".toml":  "TOML",
}

var shebangLanguage = map[string]string{
	"python":  "Python",
	"python3": "Python",
	"node":    "JavaScript",
	"bash":    "Shell",
	"sh":      "Shell",
	"ruby":    "Ruby",
}

var filenameLanguage = map[string]string{
	"rakefile":   "Ruby",
	"gemfile":    "Ruby",
	"makefile":   "Makefile",
	"dockerfile": "Dockerfile",
}

// nonIndexable are languages that should_index excludes: data/markup
// formats and Unknown.
var nonIndexable = map[string]bool{
	"JSON":     true,
	"YAML":     true,
	"HTML":     true,
	"Markdown": true,
	"Text":     true,
	"XML":      true,
	"TOML":     true,
	Unknown:    true,
}

// Detect determines a file's language from its path and, for extensionless
// files, its first line (shebang) or base filename.
func Detect(path string, firstLine string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguage[ext]; ok {
		return lang
	}

	if shebang := parseShebang(firstLine); shebang != "" {
		if lang, ok := shebangLanguage[shebang]; ok {
			return lang
		}
	}

	base := strings.ToLower(filepath.Base(path))
	if lang, ok := filenameLanguage[base]; ok {
		return lang
	}

	return Unknown
}

// ShouldIndex reports whether the parser set should run over a file of the
// given language.
func ShouldIndex(language string) bool {
	return !nonIndexable[language]
}

func parseShebang(firstLine string) string {
	if !strings.HasPrefix(firstLine, "#!") {
		return ""
	}
	line := strings.TrimPrefix(firstLine, "#!")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	interpreter := fields[len(fields)-1]
	if interpreter == "env" && len(fields) > 1 {
		interpreter = fields[1]
	}
	interpreter = filepath.Base(interpreter)
	return strings.ToLower(interpreter)
}
