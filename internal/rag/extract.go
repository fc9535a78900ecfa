package rag

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Extractor turns an uploaded file into plain text. Rich-format adapters
// (PDF, DOCX, spreadsheets) sit behind this boundary; a failed extraction
// yields empty text rather than an error, so indexing degrades to zero
// chunks instead of failing the upload.
type Extractor interface {
	Extract(filename string, raw []byte) string
}

// PlainText is the default Extractor: it treats the payload as UTF-8 text,
// dropping invalid bytes.
type PlainText struct{}

// Extract decodes raw as best-effort UTF-8 and trims surrounding whitespace.
func (PlainText) Extract(filename string, raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	text := string(raw)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
		slog.Debug("dropped invalid UTF-8 from upload", "filename", filename)
	}
	return strings.TrimSpace(text)
}
