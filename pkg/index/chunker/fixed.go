package chunker

import (
	"strings"
)

// chunkFixed slides a character window over the text. Window ends are
// snapped to the nearest structural boundary behind the cut: newline
// for code, paragraph break then sentence terminator for prose.
func (c *Chunker) chunkFixed(text string, isCode bool) []Chunk {
	sizeTokens := c.cfg.ChunkSizeDocs
	minBytes := minTextChunkBytes
	if isCode {
		sizeTokens = c.cfg.ChunkSizeCode
		minBytes = minCodeChunkBytes
	}

	// Rough 4 chars per token.
	windowChars := sizeTokens * 4
	overlapChars := c.cfg.ChunkOverlap * 4
	if overlapChars >= windowChars {
		overlapChars = windowChars / 4
	}

	chunkType := TypeText
	var chunks []Chunk

	pos := 0
	for pos < len(text) {
		end := pos + windowChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = snapBoundary(text, pos, end, isCode)
		}

		piece := text[pos:end]
		if len(strings.TrimSpace(piece)) >= minBytes {
			chunks = append(chunks, Chunk{
				Text:      piece,
				Type:      chunkType,
				LineStart: lineAt(text, pos),
				LineEnd:   lineAt(text, end-1),
			})
		}

		if end == len(text) {
			break
		}
		next := end - overlapChars
		if next <= pos {
			next = pos + 1
		}
		pos = next

		if len(chunks) >= c.cfg.MaxChunksPerFile {
			break
		}
	}

	return chunks
}

// snapBoundary moves the window end back to the nearest structural
// boundary within the window, keeping at least half the window.
func snapBoundary(text string, start, end int, isCode bool) int {
	limit := start + (end-start)/2

	if isCode {
		if idx := strings.LastIndexByte(text[limit:end], '\n'); idx >= 0 {
			return limit + idx + 1
		}
		return end
	}

	// Prose: prefer a paragraph break, then a sentence terminator,
	// then a newline.
	if idx := strings.LastIndex(text[limit:end], "\n\n"); idx >= 0 {
		return limit + idx + 2
	}
	for i := end - 1; i > limit; i-- {
		switch text[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	if idx := strings.LastIndexByte(text[limit:end], '\n'); idx >= 0 {
		return limit + idx + 1
	}
	return end
}
