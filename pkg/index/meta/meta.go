// Package meta extracts filterable metadata from file text.
//
// The extractor runs on the same text the chunker sees and produces
// the facet fields stored beside each chunk in the vector store: code
// symbols and framework signals for source files, structure and link
// statistics for documentation.
package meta

import (
	"regexp"
	"sort"
	"strings"
)

// CodeMetadata is the facet set for a source file.
type CodeMetadata struct {
	Language           string   `json:"language"`
	Imports            []string `json:"imports,omitempty"`
	Exports            []string `json:"exports,omitempty"`
	Functions          []string `json:"functions,omitempty"`
	Classes            []string `json:"classes,omitempty"`
	Interfaces         []string `json:"interfaces,omitempty"`
	TypeAliases        []string `json:"type_aliases,omitempty"`
	Constants          []string `json:"constants,omitempty"`
	Frameworks         []string `json:"frameworks,omitempty"`
	HasTests           bool     `json:"has_tests"`
	HasTypeAnnotations bool     `json:"has_type_annotations"`
	CommentRatio       float64  `json:"comment_ratio"`
}

// Heading is one documentation heading with its position.
type Heading struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
	Line  int    `json:"line"`
}

// DocMetadata is the facet set for a documentation file.
type DocMetadata struct {
	Title         string    `json:"title,omitempty"`
	Headings      []Heading `json:"headings,omitempty"`
	HasCode       bool      `json:"has_code"`
	CodeLanguages []string  `json:"code_languages,omitempty"`
	HasTables     bool      `json:"has_tables"`
	HasImages     bool      `json:"has_images"`
	InternalLinks int       `json:"internal_links"`
	ExternalLinks int       `json:"external_links"`
	WordCount     int       `json:"word_count"`
	SectionCount  int       `json:"section_count"`
}

// Per-language symbol patterns. Group 1 captures the name.
var (
	functionPatterns = map[string][]*regexp.Regexp{
		"go":         {regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?(\w+)`)},
		"python":     {regexp.MustCompile(`(?m)^(?:async\s+)?def\s+(\w+)`)},
		"javascript": {regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+(\w+)`), regexp.MustCompile(`(?m)^(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(`)},
		"typescript": {regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+(\w+)`), regexp.MustCompile(`(?m)^(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\(`)},
		"rust":       {regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:async\s+)?fn\s+(\w+)`)},
		"java":       {regexp.MustCompile(`(?m)^\s+(?:public|private|protected)\s+(?:static\s+)?[\w<>\[\]]+\s+(\w+)\s*\(`)},
		"ruby":       {regexp.MustCompile(`(?m)^\s*def\s+(\w+[?!]?)`)},
	}

	classPatterns = map[string][]*regexp.Regexp{
		"go":         {regexp.MustCompile(`(?m)^type\s+(\w+)\s+struct\b`)},
		"python":     {regexp.MustCompile(`(?m)^class\s+(\w+)`)},
		"javascript": {regexp.MustCompile(`(?m)^(?:export\s+)?class\s+(\w+)`)},
		"typescript": {regexp.MustCompile(`(?m)^(?:export\s+)?(?:abstract\s+)?class\s+(\w+)`)},
		"rust":       {regexp.MustCompile(`(?m)^(?:pub\s+)?(?:struct|enum)\s+(\w+)`)},
		"java":       {regexp.MustCompile(`(?m)(?:^|\s)(?:public\s+|private\s+)?(?:abstract\s+|final\s+)?class\s+(\w+)`)},
		"ruby":       {regexp.MustCompile(`(?m)^class\s+(\w+)`)},
	}

	interfacePatterns = map[string][]*regexp.Regexp{
		"go":         {regexp.MustCompile(`(?m)^type\s+(\w+)\s+interface\b`)},
		"typescript": {regexp.MustCompile(`(?m)^(?:export\s+)?interface\s+(\w+)`)},
		"rust":       {regexp.MustCompile(`(?m)^(?:pub\s+)?trait\s+(\w+)`)},
		"java":       {regexp.MustCompile(`(?m)^(?:public\s+)?interface\s+(\w+)`)},
	}

	typeAliasPatterns = map[string][]*regexp.Regexp{
		"go":         {regexp.MustCompile(`(?m)^type\s+(\w+)\s*=`)},
		"typescript": {regexp.MustCompile(`(?m)^(?:export\s+)?type\s+(\w+)\s*=`)},
		"rust":       {regexp.MustCompile(`(?m)^(?:pub\s+)?type\s+(\w+)\s*=`)},
	}

	constantPatterns = map[string][]*regexp.Regexp{
		"go":         {regexp.MustCompile(`(?m)^const\s+(\w+)`)},
		"python":     {regexp.MustCompile(`(?m)^([A-Z][A-Z0-9_]{2,})\s*=`)},
		"javascript": {regexp.MustCompile(`(?m)^(?:export\s+)?const\s+([A-Z][A-Z0-9_]+)\s*=`)},
		"typescript": {regexp.MustCompile(`(?m)^(?:export\s+)?const\s+([A-Z][A-Z0-9_]+)\s*=`)},
		"rust":       {regexp.MustCompile(`(?m)^\s*(?:pub\s+)?const\s+(\w+)`)},
	}

	importLinePatterns = map[string]*regexp.Regexp{
		"go":         regexp.MustCompile(`(?m)^\s*(?:import\s+)?"([^"]+)"`),
		"python":     regexp.MustCompile(`(?m)^(?:import\s+(\S+)|from\s+(\S+)\s+import)`),
		"javascript": regexp.MustCompile(`(?m)^import\s+(?:.+\s+from\s+)?['"]([^'"]+)['"]`),
		"typescript": regexp.MustCompile(`(?m)^import\s+(?:.+\s+from\s+)?['"]([^'"]+)['"]`),
		"rust":       regexp.MustCompile(`(?m)^use\s+([\w:]+)`),
		"java":       regexp.MustCompile(`(?m)^import\s+([\w.]+);`),
	}

	pythonAllPattern = regexp.MustCompile(`__all__\s*=\s*\[([^\]]*)\]`)
	quotedName       = regexp.MustCompile(`['"](\w+)['"]`)
	jsExportPattern  = regexp.MustCompile(`(?m)^export\s+(?:default\s+)?(?:async\s+)?(?:function|class|const|let|interface|type)\s+(\w+)`)
	rustPubPattern   = regexp.MustCompile(`(?m)^pub\s+(?:async\s+)?(?:fn|struct|enum|trait|type|const)\s+(\w+)`)
)

// frameworkSignals maps a framework tag to content patterns.
var frameworkSignals = map[string][]*regexp.Regexp{
	"react":   {regexp.MustCompile(`from ['"]react['"]`), regexp.MustCompile(`\buseState\(`)},
	"vue":     {regexp.MustCompile(`from ['"]vue['"]`)},
	"express": {regexp.MustCompile(`require\(['"]express['"]\)`), regexp.MustCompile(`from ['"]express['"]`)},
	"django":  {regexp.MustCompile(`from django`)},
	"flask":   {regexp.MustCompile(`from flask`)},
	"fastapi": {regexp.MustCompile(`from fastapi`)},
	"gin":     {regexp.MustCompile(`"github\.com/gin-gonic/gin"`)},
	"chi":     {regexp.MustCompile(`"github\.com/go-chi/chi`)},
	"gorm":    {regexp.MustCompile(`"gorm\.io/gorm"`)},
	"spring":  {regexp.MustCompile(`@SpringBootApplication|@RestController`)},
	"rails":   {regexp.MustCompile(`< ApplicationController|ActiveRecord::Base`)},
}

// testSignals flag a file as test code by name or content.
var testSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^func Test\w+\(t \*testing\.T\)`),
	regexp.MustCompile(`(?m)^\s*(?:async\s+)?def test_\w+`),
	regexp.MustCompile(`\b(?:describe|it|test)\(['"]`),
	regexp.MustCompile(`#\[test\]`),
	regexp.MustCompile(`@Test\b`),
}

// ExtractCode derives the code facet set for one file.
func ExtractCode(text, filename, language string) *CodeMetadata {
	m := &CodeMetadata{
		Language:           language,
		Imports:            matchNames(importLinePatterns[language], text),
		Functions:          matchAll(functionPatterns[language], text),
		Classes:            matchAll(classPatterns[language], text),
		Interfaces:         matchAll(interfacePatterns[language], text),
		TypeAliases:        matchAll(typeAliasPatterns[language], text),
		Constants:          matchAll(constantPatterns[language], text),
		Exports:            extractExports(text, language),
		Frameworks:         detectFrameworks(text),
		HasTests:           hasTests(text, filename),
		HasTypeAnnotations: hasTypeAnnotations(text, language),
		CommentRatio:       commentRatio(text, language),
	}
	return m
}

// ExtractDoc derives the documentation facet set for one file.
func ExtractDoc(text string) *DocMetadata {
	m := &DocMetadata{}

	headingRe := regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	inFence := false

	for i, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "```") {
			if !inFence {
				m.HasCode = true
				if lang := strings.TrimSpace(strings.TrimPrefix(line, "```")); lang != "" {
					m.CodeLanguages = appendUnique(m.CodeLanguages, lang)
				}
			}
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		if h := headingRe.FindStringSubmatch(line); h != nil {
			heading := Heading{Text: h[2], Level: len(h[1]), Line: i + 1}
			m.Headings = append(m.Headings, heading)
			if m.Title == "" && heading.Level == 1 {
				m.Title = heading.Text
			}
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			m.HasTables = true
		}
	}

	m.SectionCount = len(m.Headings)
	m.WordCount = len(strings.Fields(text))
	m.HasImages = strings.Contains(text, "![")

	for _, match := range regexp.MustCompile(`[^!]\[[^\]]*\]\(([^)]+)\)`).FindAllStringSubmatch(text, -1) {
		target := match[1]
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			m.ExternalLinks++
		} else {
			m.InternalLinks++
		}
	}

	return m
}

func matchAll(patterns []*regexp.Regexp, text string) []string {
	var names []string
	for _, re := range patterns {
		names = append(names, matchNames(re, text)...)
	}
	return dedupe(names)
}

// matchNames returns the first non-empty capture group of each match.
func matchNames(re *regexp.Regexp, text string) []string {
	if re == nil {
		return nil
	}
	var names []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g != "" {
				names = append(names, g)
				break
			}
		}
	}
	return dedupe(names)
}

// extractExports finds the public surface per language convention:
// __all__ for Python, export declarations for JS/TS, pub items for
// Rust, capitalized top-level names for Go.
func extractExports(text, language string) []string {
	switch language {
	case "python":
		if m := pythonAllPattern.FindStringSubmatch(text); m != nil {
			return matchNames(quotedName, m[1])
		}
		return nil
	case "javascript", "typescript":
		return matchNames(jsExportPattern, text)
	case "rust":
		return matchNames(rustPubPattern, text)
	case "go":
		var exports []string
		re := regexp.MustCompile(`(?m)^(?:func|type|const|var)\s+(?:\([^)]+\)\s+)?([A-Z]\w*)`)
		exports = append(exports, matchNames(re, text)...)
		return dedupe(exports)
	default:
		return nil
	}
}

func detectFrameworks(text string) []string {
	var tags []string
	for tag, patterns := range frameworkSignals {
		for _, re := range patterns {
			if re.MatchString(text) {
				tags = append(tags, tag)
				break
			}
		}
	}
	// Map iteration order is random; keep the output stable.
	sort.Strings(tags)
	return tags
}

func hasTests(text, filename string) bool {
	lower := strings.ToLower(filename)
	if strings.Contains(lower, "_test.") || strings.Contains(lower, ".test.") ||
		strings.Contains(lower, ".spec.") || strings.HasPrefix(lower, "test_") {
		return true
	}
	for _, re := range testSignals {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func hasTypeAnnotations(text, language string) bool {
	switch language {
	case "go", "rust", "java", "typescript":
		return true
	case "python":
		return regexp.MustCompile(`(?m)def \w+\([^)]*:\s*\w|->\s*\w+\s*:`).MatchString(text)
	case "javascript":
		return false
	default:
		return false
	}
}

// commentRatio is comment lines over non-blank lines.
func commentRatio(text, language string) float64 {
	prefix := "//"
	switch language {
	case "python", "ruby", "shell":
		prefix = "#"
	}

	total, comments := 0, 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		total++
		if strings.HasPrefix(trimmed, prefix) {
			comments++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(comments) / float64(total)
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
