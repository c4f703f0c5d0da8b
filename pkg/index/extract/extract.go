// Package extract turns stored file bytes into indexable text.
//
// Plain text and source files are normalized in place (UTF-8
// validation, BOM strip, control-character heuristics). Office and
// PDF formats are sent to the external document conversion service;
// when the service is unavailable the file is skipped rather than
// indexed as garbage.
package extract

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrBinaryContent marks bytes that cannot be treated as text.
var ErrBinaryContent = errors.New("content is binary")

// textualExtensions are indexed directly without conversion.
var textualExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true,
	".tsx": true, ".java": true, ".rb": true, ".rs": true, ".c": true,
	".h": true, ".cpp": true, ".cc": true, ".hpp": true, ".cs": true,
	".php": true, ".swift": true, ".kt": true, ".scala": true,
	".sh": true, ".bash": true, ".zsh": true, ".sql": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true,
	".xml": true, ".html": true, ".htm": true, ".css": true,
	".csv": true, ".ini": true, ".cfg": true, ".conf": true,
	".env": true, ".mod": true, ".sum": true, ".lock": true,
}

// convertibleExtensions go through the conversion service.
var convertibleExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".odt": true,
	".ppt": true, ".pptx": true, ".xls": true, ".xlsx": true,
	".rtf": true,
}

// IsTextual reports whether the extension is indexed without
// conversion.
func IsTextual(ext string) bool {
	return textualExtensions[strings.ToLower(ext)]
}

// NeedsConversion reports whether the extension requires the
// conversion service.
func NeedsConversion(ext string) bool {
	return convertibleExtensions[strings.ToLower(ext)]
}

// Normalize validates and cleans raw bytes into indexable text.
//
// The BOM is stripped, invalid UTF-8 is rejected, and a control
// character density check filters binaries that happen to decode. An
// empty result is legal (0-byte files index as nothing).
func Normalize(data []byte) (string, error) {
	// Strip UTF-8 BOM.
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}

	if len(data) == 0 {
		return "", nil
	}

	if !utf8.Valid(data) {
		return "", ErrBinaryContent
	}

	text := string(data)

	// A NUL byte is a hard binary signal.
	if strings.IndexByte(text, 0) >= 0 {
		return "", ErrBinaryContent
	}

	// More than 10% control characters (excluding whitespace) means
	// this decoded by accident.
	control := 0
	for _, r := range text {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			control++
		}
	}
	if control*10 > utf8.RuneCountInString(text) {
		return "", ErrBinaryContent
	}

	// Normalize line endings.
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return text, nil
}
