// Package handle implements content-addressed storage that exposes large
// artifacts to agents as bounded metadata records ("handles") plus
// server-clamped read-only views over their contents.
//
// A Handle never carries the payload itself. Raw content retrieval is
// internal to this package; callers inspect content exclusively through the
// bounded View operations.
package handle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Known dtypes. The dtype describes how view operations interpret the
// stored content; any other string is treated like text.
const (
	DTypeText  = "text"  // opaque text, peek only
	DTypeLines = "lines" // newline-delimited records
	DTypeRows  = "rows"  // tab-separated rows, first row is the header
	DTypeJSON  = "json"  // JSON document, treated as text for viewing
)

// PreviewChars is the hard cap on the preview carried inside a Handle.
const PreviewChars = 80

// Handle is the bounded, serializable reference to stored content.
// It is a flat record of primitives so it survives any process or sandbox
// boundary without relying on object identity.
type Handle struct {
	ID      string `json:"id"`
	DType   string `json:"dtype"`
	Size    int    `json:"size"`
	Preview string `json:"preview"`
}

// MarshalFlat returns the handle as a flat JSON object. Used at tool-call
// boundaries where only primitive records may cross.
func (h Handle) MarshalFlat() (string, error) {
	data, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ContentID derives the deterministic id for content of a given dtype.
// Identical content always maps to the same id, which makes Put idempotent.
func ContentID(content, dtype string) string {
	sum := sha256.Sum256([]byte(dtype + "\x00" + content))
	return "h-" + hex.EncodeToString(sum[:])[:16]
}

// makePreview returns the first PreviewChars characters of content with
// newlines flattened, safe to embed in logs and tool results.
func makePreview(content string) string {
	flat := strings.ReplaceAll(content, "\n", " ")
	runes := []rune(flat)
	if len(runes) <= PreviewChars {
		return flat
	}
	return string(runes[:PreviewChars])
}

// newHandle builds the metadata record for content being stored.
func newHandle(content, dtype string) Handle {
	return Handle{
		ID:      ContentID(content, dtype),
		DType:   dtype,
		Size:    len(content),
		Preview: makePreview(content),
	}
}
