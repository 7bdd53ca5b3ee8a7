// Package memory implements the durable procedural-memory store: ranked
// metadata search, capped batch retrieval, and append-only consolidation
// with similarity-based deduplication.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/substratehq/strata/pkg/errors"
)

// Source identifies how an item was produced. Deduplication only ever
// compares items of the same source polarity.
type Source string

const (
	SourceSeed        Source = "seed"        // imported from a memory pack
	SourceSuccess     Source = "success"     // transferable strategy from a successful attempt
	SourceFailure     Source = "failure"     // preventive lesson from a failed attempt
	SourceContrastive Source = "contrastive" // compare/contrast of a winning and losing attempt
	SourcePattern     Source = "pattern"     // strategy common to multiple independent successes
)

// ValidSources lists every accepted source value.
var ValidSources = []Source{SourceSeed, SourceSuccess, SourceFailure, SourceContrastive, SourcePattern}

// UsageStats counts how an item performed when injected into later attempts.
// Counters update in place; they are the only mutable part of an item.
type UsageStats struct {
	Helpful int `json:"helpful"`
	Harmful int `json:"harmful"`
}

// Item is one stored procedural-memory record. Content is immutable once
// created; items are never deleted automatically, only superseded.
type Item struct {
	ID          string     `json:"id"`
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"required,max=1000"`
	Content     string     `json:"content" validate:"required"`
	Source      Source     `json:"source" validate:"required,oneof=seed success failure contrastive pattern"`
	Tags        []string   `json:"tags,omitempty" validate:"max=16,dive,max=64"`
	CreatedAt   time.Time  `json:"created_at"`
	Iterations  int        `json:"iterations,omitempty" validate:"min=0"`
	Usage       UsageStats `json:"usage_stats"`
}

// ComputeID derives the deterministic id for an item from its identity
// fields. Resubmitting a byte-identical candidate yields the same id, which
// is what makes consolidation idempotent.
func (i Item) ComputeID() string {
	sum := sha256.Sum256([]byte(string(i.Source) + "\x00" + i.Title + "\x00" + i.Content))
	return "m-" + hex.EncodeToString(sum[:])[:16]
}

// SuccessRate returns the ratio of helpful uses to total uses.
func (u UsageStats) SuccessRate() float64 {
	total := u.Helpful + u.Harmful
	if total == 0 {
		return 0.5
	}
	return float64(u.Helpful) / float64(total)
}

var validate = validator.New()

// Validate coerces the item against the fixed schema. Malformed candidates
// are rejected at the boundary rather than stored partially.
func (i Item) Validate() error {
	if err := validate.Struct(i); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.ValidationFailed, "item failed schema validation"),
			errors.Fields{"title": i.Title, "source": string(i.Source)},
		)
	}
	return nil
}

// SearchResult is one ranked, metadata-only hit. The content stays behind
// Get so search output remains bounded.
type SearchResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Source      Source  `json:"source"`
	Score       float64 `json:"score"`
}
