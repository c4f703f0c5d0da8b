package chunker

import (
	"regexp"
	"strings"
)

// languagePattern pairs a chunk type with a compiled matcher. Patterns
// run with multiline+dotall semantics over the full source; a match
// is one chunk, line numbers come from match offsets.
type languagePattern struct {
	chunkType string
	re        *regexp.Regexp
}

// Matchers are anchored at line starts and run to the next
// same-or-lower indentation declaration or end of input. Group 1
// captures the symbol name where the syntax allows it.
var regexPatterns = map[string][]languagePattern{
	"python": {
		// Declaration line plus its indented (or blank) continuation
		// lines; RE2 has no lookahead, so the block ends where
		// indentation returns to column zero.
		{TypeClass, regexp.MustCompile(`(?m)^class\s+(\w+)[^\n]*(?:\n(?:[ \t]+[^\n]*)?)*`)},
		{TypeFunction, regexp.MustCompile(`(?m)^(?:async\s+)?def\s+(\w+)[^\n]*(?:\n(?:[ \t]+[^\n]*)?)*`)},
	},
	"javascript": {
		{TypeClass, regexp.MustCompile(`(?ms)^(?:export\s+)?class\s+(\w+).*?^\}`)},
		{TypeFunction, regexp.MustCompile(`(?ms)^(?:export\s+)?(?:async\s+)?function\s+(\w+).*?^\}`)},
		{TypeFunction, regexp.MustCompile(`(?ms)^(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\([^)]*\)\s*=>.*?^\}`)},
	},
	"typescript": {
		{TypeClass, regexp.MustCompile(`(?ms)^(?:export\s+)?(?:abstract\s+)?class\s+(\w+).*?^\}`)},
		{TypeInterface, regexp.MustCompile(`(?ms)^(?:export\s+)?interface\s+(\w+).*?^\}`)},
		{TypeFunction, regexp.MustCompile(`(?ms)^(?:export\s+)?(?:async\s+)?function\s+(\w+).*?^\}`)},
		{TypeFunction, regexp.MustCompile(`(?ms)^(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\([^)]*\)\s*(?::\s*[^=]+)?=>.*?^\}`)},
		{TypeTypeAlias, regexp.MustCompile(`(?m)^(?:export\s+)?type\s+(\w+)\s*=.*$`)},
	},
	"go": {
		{TypeFunction, regexp.MustCompile(`(?ms)^func\s+(?:\([^)]+\)\s+)?(\w+).*?^\}`)},
		{TypeStruct, regexp.MustCompile(`(?ms)^type\s+(\w+)\s+struct\s*\{.*?^\}`)},
		{TypeInterface, regexp.MustCompile(`(?ms)^type\s+(\w+)\s+interface\s*\{.*?^\}`)},
	},
	"rust": {
		{TypeFunction, regexp.MustCompile(`(?ms)^(?:pub\s+)?(?:async\s+)?fn\s+(\w+).*?^\}`)},
		{TypeStruct, regexp.MustCompile(`(?ms)^(?:pub\s+)?struct\s+(\w+).*?(?:^\}|;)`)},
		{TypeEnum, regexp.MustCompile(`(?ms)^(?:pub\s+)?enum\s+(\w+).*?^\}`)},
		{TypeTrait, regexp.MustCompile(`(?ms)^(?:pub\s+)?trait\s+(\w+).*?^\}`)},
	},
	"java": {
		{TypeClass, regexp.MustCompile(`(?ms)^(?:public\s+|private\s+|protected\s+)?(?:abstract\s+|final\s+)?class\s+(\w+).*?^\}`)},
		{TypeInterface, regexp.MustCompile(`(?ms)^(?:public\s+)?interface\s+(\w+).*?^\}`)},
		{TypeEnum, regexp.MustCompile(`(?ms)^(?:public\s+)?enum\s+(\w+).*?^\}`)},
	},
	"ruby": {
		{TypeClass, regexp.MustCompile(`(?ms)^class\s+(\w+).*?^end`)},
		{TypeFunction, regexp.MustCompile(`(?ms)^\s*def\s+(\w+[?!]?).*?^\s*end`)},
	},
	"c": {
		{TypeFunction, regexp.MustCompile(`(?ms)^\w[\w\s*]*\s+\**(\w+)\s*\([^;]*?\)\s*\{.*?^\}`)},
	},
	"cpp": {
		{TypeClass, regexp.MustCompile(`(?ms)^class\s+(\w+).*?^\};`)},
		{TypeFunction, regexp.MustCompile(`(?ms)^\w[\w\s*:<>,&]*\s+\**(\w+)\s*\([^;]*?\)\s*\{.*?^\}`)},
	},
	"csharp": {
		{TypeClass, regexp.MustCompile(`(?ms)^\s*(?:public|private|internal|protected)?\s*(?:static\s+|abstract\s+|sealed\s+)?class\s+(\w+).*?^\s*\}`)},
		{TypeInterface, regexp.MustCompile(`(?ms)^\s*(?:public\s+)?interface\s+(\w+).*?^\s*\}`)},
	},
	"php": {
		{TypeClass, regexp.MustCompile(`(?ms)^class\s+(\w+).*?^\}`)},
		{TypeFunction, regexp.MustCompile(`(?ms)^(?:\s*(?:public|private|protected)\s+)?function\s+(\w+).*?^\s*\}`)},
	},
	"shell": {
		{TypeFunction, regexp.MustCompile(`(?ms)^(?:function\s+)?(\w+)\s*\(\)\s*\{.*?^\}`)},
	},
}

// importPatterns pull the file's import lines for attachment to every
// chunk.
var importPatterns = map[string]*regexp.Regexp{
	"python":     regexp.MustCompile(`(?m)^(?:import\s+\S+|from\s+\S+\s+import\s+.+)$`),
	"javascript": regexp.MustCompile(`(?m)^import\s+.+$|^const\s+\w+\s*=\s*require\(.+\)`),
	"typescript": regexp.MustCompile(`(?m)^import\s+.+$`),
	"go":         regexp.MustCompile(`(?m)^\s*(?:import\s+)?"[^"]+"$|^import\s+\([^)]*\)`),
	"rust":       regexp.MustCompile(`(?m)^use\s+.+;$`),
	"java":       regexp.MustCompile(`(?m)^import\s+.+;$`),
}

// pythonDocstring matches a leading docstring in a def/class body.
var pythonDocstring = regexp.MustCompile(`(?ms):\s*\n\s+(?:"""(.*?)"""|'''(.*?)''')`)

// chunkRegex matches per-language declaration patterns against the
// full source. Overlapping matches are deduplicated by start offset,
// favoring the earlier pattern in the table.
func (c *Chunker) chunkRegex(text, language string) []Chunk {
	patterns, ok := regexPatterns[language]
	if !ok {
		return nil
	}

	var imports []string
	if re, ok := importPatterns[language]; ok {
		imports = re.FindAllString(text, -1)
	}

	seen := make(map[int]bool)
	var chunks []Chunk
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if seen[start] {
				continue
			}
			seen[start] = true

			body := text[start:end]
			if len(strings.TrimSpace(body)) < minCodeChunkBytes {
				continue
			}

			name := ""
			if len(loc) >= 4 && loc[2] >= 0 {
				name = text[loc[2]:loc[3]]
			}

			chunk := Chunk{
				Text:      body,
				Type:      p.chunkType,
				Name:      name,
				LineStart: lineAt(text, start),
				LineEnd:   lineAt(text, end-1),
				Imports:   imports,
			}
			if language == "python" {
				if m := pythonDocstring.FindStringSubmatch(body); m != nil {
					doc := m[1]
					if doc == "" {
						doc = m[2]
					}
					chunk.Docstring = strings.TrimSpace(doc)
				}
			}
			chunks = append(chunks, chunk)
		}
	}

	// Restore source order across pattern passes.
	sortChunksByLine(chunks)
	return chunks
}

// lineAt returns the 1-based line number of a byte offset.
func lineAt(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	return strings.Count(text[:offset], "\n") + 1
}

// sortChunksByLine orders chunks by starting line (insertion sort;
// chunk counts are capped and small).
func sortChunksByLine(chunks []Chunk) {
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].LineStart < chunks[j-1].LineStart; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
}
