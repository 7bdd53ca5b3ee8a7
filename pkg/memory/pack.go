package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/logging"
)

// Memory packs are flat JSONL files: a header line followed by one item per
// line, with stable ids. They move learned strategies between environments.

const packSchemaVersion = "1"

// PackHeader is the first line of a pack file.
type PackHeader struct {
	StrataPack    bool   `json:"_strata_pack"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// ExportJSONL writes all live items to w, one record per line.
func (s *Store) ExportJSONL(ctx context.Context, w io.Writer) (int, error) {
	if err := s.ensureInitialized(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	items, err := s.loadLive(ctx)
	s.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	header := PackHeader{
		StrataPack:    true,
		SchemaVersion: packSchemaVersion,
		ExportedAt:    time.Now().Unix(),
	}
	if err := enc.Encode(header); err != nil {
		return 0, errors.Wrap(err, errors.Unknown, "failed to write pack header")
	}

	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return 0, errors.WithFields(
				errors.Wrap(err, errors.Unknown, "failed to write pack record"),
				errors.Fields{"id": item.ID},
			)
		}
	}
	return len(items), nil
}

// ImportJSONL reads pack records from r and consolidates them into the
// store. Imported items keep their ids; duplicates of resident items are
// deduplicated like any other candidates.
func (s *Store) ImportJSONL(ctx context.Context, r io.Reader, opts ConsolidateOptions) ([]Outcome, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var candidates []Item
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if lineNo == 1 && strings.Contains(line, `"_strata_pack"`) {
			var header PackHeader
			if err := json.Unmarshal([]byte(line), &header); err == nil && header.StrataPack {
				continue
			}
		}

		var item Item
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.InvalidInput, "malformed pack record"),
				errors.Fields{"line": lineNo},
			)
		}
		candidates = append(candidates, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.Unknown, "failed to read pack")
	}

	return s.Consolidate(ctx, candidates, opts)
}

// ExportPack writes a pack file atomically: the content lands in a temp
// file first and is renamed into place, so a failed export never clobbers
// an existing pack.
func (s *Store) ExportPack(ctx context.Context, path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, errors.Wrap(err, errors.Unknown, "failed to create pack directory")
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, errors.Wrap(err, errors.Unknown, "failed to create pack file")
	}

	count, err := s.ExportJSONL(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, errors.Wrap(err, errors.Unknown, "failed to finalize pack file")
	}

	logging.GetLogger().Info(ctx, "exported %d items to %s", count, path)
	return count, nil
}

// ImportPack reads a pack file and consolidates its items into the store.
func (s *Store) ImportPack(ctx context.Context, path string, opts ConsolidateOptions) ([]Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.ResourceNotFound, "failed to open pack file"),
			errors.Fields{"path": path},
		)
	}
	defer f.Close()

	return s.ImportJSONL(ctx, f, opts)
}
