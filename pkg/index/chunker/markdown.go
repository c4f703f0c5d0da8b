package chunker

import (
	"regexp"
	"strings"
)

var (
	headingLine = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	fenceLine   = regexp.MustCompile("^```\\s*(\\S*)\\s*$")
)

// section is one heading-delimited region during the scan.
type section struct {
	heading       string
	level         int
	parentHeading string
	lineStart     int
	lineEnd       int
	lines         []string
	codeLanguages []string
	hasCode       bool
}

// chunkMarkdown splits at heading lines, tracking for each section its
// nearest ancestor heading and any fenced code blocks. Sections larger
// than the docs character budget are re-split by the fixed-size
// strategy, carrying the section's heading metadata.
func (c *Chunker) chunkMarkdown(text string) []Chunk {
	lines := strings.Split(text, "\n")
	maxSectionChars := c.cfg.ChunkSizeDocs * 4

	// Stack of open headings, one slot per level 1..6.
	var headingStack [7]string

	var sections []*section
	current := &section{lineStart: 1}
	inFence := false

	flush := func(endLine int) {
		current.lineEnd = endLine
		if len(strings.TrimSpace(strings.Join(current.lines, "\n"))) > 0 {
			sections = append(sections, current)
		}
	}

	for i, line := range lines {
		if fenceLine.MatchString(line) {
			if !inFence {
				current.hasCode = true
				if lang := fenceLine.FindStringSubmatch(line)[1]; lang != "" {
					current.codeLanguages = append(current.codeLanguages, lang)
				}
			}
			inFence = !inFence
			current.lines = append(current.lines, line)
			continue
		}

		m := headingLine.FindStringSubmatch(line)
		if m == nil || inFence {
			current.lines = append(current.lines, line)
			continue
		}

		flush(i)

		level := len(m[1])
		parent := ""
		for l := level - 1; l >= 1; l-- {
			if headingStack[l] != "" {
				parent = headingStack[l]
				break
			}
		}
		headingStack[level] = m[2]
		for l := level + 1; l <= 6; l++ {
			headingStack[l] = ""
		}

		current = &section{
			heading:       m[2],
			level:         level,
			parentHeading: parent,
			lineStart:     i + 1,
			lines:         []string{line},
		}
	}
	flush(len(lines))

	var chunks []Chunk
	for _, sec := range sections {
		body := strings.Join(sec.lines, "\n")

		if len(body) <= maxSectionChars {
			if len(strings.TrimSpace(body)) < minTextChunkBytes {
				continue
			}
			chunks = append(chunks, Chunk{
				Text:          body,
				Type:          TypeSection,
				Name:          sec.heading,
				Heading:       sec.heading,
				HeadingLevel:  sec.level,
				ParentHeading: sec.parentHeading,
				HasCode:       sec.hasCode,
				CodeLanguages: sec.codeLanguages,
				LineStart:     sec.lineStart,
				LineEnd:       sec.lineEnd,
			})
			continue
		}

		// Oversized section: window it, keeping the heading metadata
		// on every piece.
		for _, piece := range c.chunkFixed(body, false) {
			piece.Type = TypeSection
			piece.Name = sec.heading
			piece.Heading = sec.heading
			piece.HeadingLevel = sec.level
			piece.ParentHeading = sec.parentHeading
			piece.HasCode = sec.hasCode
			piece.CodeLanguages = sec.codeLanguages
			piece.LineStart += sec.lineStart - 1
			piece.LineEnd += sec.lineStart - 1
			chunks = append(chunks, piece)
		}

		if len(chunks) >= c.cfg.MaxChunksPerFile {
			break
		}
	}

	return chunks
}
