package chunker

import (
	"path/filepath"
	"strings"
)

// extensionLanguages maps file extensions to language tags.
var extensionLanguages = map[string]string{
	".go":       "go",
	".py":       "python",
	".pyw":      "python",
	".js":       "javascript",
	".mjs":      "javascript",
	".cjs":      "javascript",
	".jsx":      "javascript",
	".ts":       "typescript",
	".tsx":      "typescript",
	".java":     "java",
	".rb":       "ruby",
	".rs":       "rust",
	".c":        "c",
	".h":        "c",
	".cpp":      "cpp",
	".cc":       "cpp",
	".hpp":      "cpp",
	".cs":       "csharp",
	".php":      "php",
	".swift":    "swift",
	".kt":       "kotlin",
	".scala":    "scala",
	".sh":       "shell",
	".bash":     "shell",
	".zsh":      "shell",
	".sql":      "sql",
	".md":       "markdown",
	".markdown": "markdown",
	".txt":      "plaintext",
	".yaml":     "yaml",
	".yml":      "yaml",
	".json":     "json",
	".toml":     "toml",
	".xml":      "xml",
	".html":     "html",
	".htm":      "html",
	".css":      "css",
}

// shebangLanguages maps interpreter names found on a #! line.
var shebangLanguages = map[string]string{
	"python":  "python",
	"python3": "python",
	"node":    "javascript",
	"sh":      "shell",
	"bash":    "shell",
	"zsh":     "shell",
	"ruby":    "ruby",
}

// DetectLanguage resolves a language tag for a file, in order:
// extension table, shebang scan, keyword heuristics on the head of the
// content, and finally "unknown".
func DetectLanguage(filename, content string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}

	if lang := detectShebang(content); lang != "" {
		return lang
	}

	if lang := detectByKeywords(content); lang != "" {
		return lang
	}

	return "unknown"
}

// detectShebang inspects the first line for an interpreter.
func detectShebang(content string) string {
	if !strings.HasPrefix(content, "#!") {
		return ""
	}

	line := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}

	// Both "#!/usr/bin/python3" and "#!/usr/bin/env python3" forms.
	fields := strings.Fields(line)
	candidate := ""
	switch {
	case len(fields) >= 2 && strings.HasSuffix(fields[0], "/env"):
		candidate = fields[1]
	case len(fields) >= 1:
		candidate = filepath.Base(strings.TrimPrefix(fields[0], "#!"))
	}

	if lang, ok := shebangLanguages[candidate]; ok {
		return lang
	}
	return ""
}

// detectByKeywords applies coarse heuristics to the first few KiB.
func detectByKeywords(content string) string {
	head := content
	if len(head) > 3072 {
		head = head[:3072]
	}

	switch {
	case strings.Contains(head, "def ") && strings.Contains(head, "import "):
		return "python"
	case strings.Contains(head, "package ") && strings.Contains(head, "func "):
		return "go"
	case strings.Contains(head, "fn ") && strings.Contains(head, "let "):
		return "rust"
	case strings.Contains(head, "function ") || strings.Contains(head, "const "):
		if strings.Contains(head, "interface ") || strings.Contains(head, ": ") {
			return "typescript"
		}
		return "javascript"
	case strings.Contains(head, "public class ") || strings.Contains(head, "private class "):
		return "java"
	}
	return ""
}
