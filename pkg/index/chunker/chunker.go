// Package chunker turns extracted file text into a bounded, ordered
// sequence of chunks for embedding.
//
// Strategy selection picks the most structural producer that yields
// output: code goes AST → regex → fixed-size, markdown splits by
// heading, everything else takes the fixed-size window. A parse
// failure is never fatal; the dispatcher just moves to the next
// strategy.
package chunker

import (
	"strings"
)

// Chunk types attached to chunk metadata.
const (
	TypeFunction  = "function"
	TypeMethod    = "method"
	TypeClass     = "class"
	TypeInterface = "interface"
	TypeStruct    = "struct"
	TypeEnum      = "enum"
	TypeTrait     = "trait"
	TypeTypeAlias = "type_alias"
	TypeConstant  = "constant"
	TypeSection   = "section"
	TypeText      = "text"
)

// Chunk is one contiguous piece of a file's text with its position and
// structural metadata.
type Chunk struct {
	// Index is dense and zero-based across the file's output.
	Index int

	// Text is the chunk content.
	Text string

	// Type classifies the chunk (function, class, section, text, ...).
	Type string

	// Name is the symbol or heading the chunk represents, if any.
	Name string

	// Language is the detected language tag.
	Language string

	// LineStart and LineEnd are 1-based line positions in the source.
	LineStart int
	LineEnd   int

	// Imports holds the file's imports, attached to every code chunk.
	Imports []string

	// Docstring is the extracted documentation string (Python).
	Docstring string

	// Markdown section metadata.
	Heading       string
	HeadingLevel  int
	ParentHeading string
	HasCode       bool
	CodeLanguages []string
}

// Config bounds chunk sizes. Sizes are in tokens; character budgets
// are derived as tokens x 4.
type Config struct {
	// ChunkSizeCode is the token budget for code chunks (default 1500).
	ChunkSizeCode int

	// ChunkSizeDocs is the token budget for doc chunks (default 1000).
	ChunkSizeDocs int

	// ChunkOverlap is the token overlap between windows (default 200).
	ChunkOverlap int

	// MaxChunksPerFile caps output length (default 50).
	MaxChunksPerFile int
}

func (c Config) withDefaults() Config {
	if c.ChunkSizeCode <= 0 {
		c.ChunkSizeCode = 1500
	}
	if c.ChunkSizeDocs <= 0 {
		c.ChunkSizeDocs = 1000
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = 200
	}
	if c.MaxChunksPerFile <= 0 {
		c.MaxChunksPerFile = 50
	}
	return c
}

// Minimum chunk sizes after whitespace trim. Shorter output is noise
// for retrieval and is dropped.
const (
	minCodeChunkBytes = 50
	minTextChunkBytes = 30
)

// Chunker produces chunks from extracted text.
type Chunker struct {
	cfg Config
}

// New creates a chunker with the given size budgets.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.withDefaults()}
}

// nonStructuralLanguages are recognized tags that still take the
// markdown or fixed-size path rather than AST/regex.
var nonStructuralLanguages = map[string]bool{
	"markdown":  true,
	"plaintext": true,
	"yaml":      true,
	"json":      true,
	"toml":      true,
	"xml":       true,
	"html":      true,
	"css":       true,
	"unknown":   true,
}

// Chunk splits text into an ordered chunk sequence. The result is
// truncated at MaxChunksPerFile and chunk indices are dense and
// zero-based.
func (c *Chunker) Chunk(text, filename, contentType string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	language := DetectLanguage(filename, text)

	var chunks []Chunk
	switch {
	case language == "markdown":
		chunks = c.chunkMarkdown(text)
	case !nonStructuralLanguages[language]:
		chunks = c.chunkCode(text, language)
	default:
		chunks = c.chunkFixed(text, false)
	}

	if len(chunks) > c.cfg.MaxChunksPerFile {
		chunks = chunks[:c.cfg.MaxChunksPerFile]
	}
	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Language = language
	}
	return chunks
}

// chunkCode tries AST, then regex, then fixed-size. Empty output, not
// just an error, triggers the next fallback.
func (c *Chunker) chunkCode(text, language string) []Chunk {
	if chunks := c.chunkAST(text, language); len(chunks) > 0 {
		return chunks
	}
	if chunks := c.chunkRegex(text, language); len(chunks) > 0 {
		return chunks
	}
	return c.chunkFixed(text, true)
}
