package memory

import (
	"context"
	"strings"

	"github.com/apache/arrow/go/v13/arrow/array"
	arrowmem "github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/apache/arrow/go/v13/parquet/file"
	"github.com/apache/arrow/go/v13/parquet/pqarrow"

	"github.com/substratehq/strata/pkg/errors"
)

// ImportParquet reads a column-stored memory pack and consolidates its
// items into the store. The file must carry string columns `title`,
// `description`, `content` and `source`; a `tags` column (comma-separated)
// is optional. Ids are derived deterministically, as with any candidate.
func (s *Store) ImportParquet(ctx context.Context, path string, opts ConsolidateOptions) ([]Outcome, error) {
	reader, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.ResourceNotFound, "failed to open parquet pack"),
			errors.Fields{"path": path},
		)
	}
	defer reader.Close()

	arrowReader, err := pqarrow.NewFileReader(reader, pqarrow.ArrowReadProperties{}, arrowmem.DefaultAllocator)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read parquet pack")
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read parquet schema")
	}

	required := []string{"title", "description", "content", "source"}
	indices := make(map[string]int, len(required)+1)
	for _, name := range required {
		found := schema.FieldIndices(name)
		if len(found) == 0 {
			return nil, errors.WithFields(
				errors.New(errors.InvalidInput, "parquet pack missing required column"),
				errors.Fields{"column": name},
			)
		}
		indices[name] = found[0]
	}
	hasTags := len(schema.FieldIndices("tags")) > 0
	if hasTags {
		indices["tags"] = schema.FieldIndices("tags")[0]
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read parquet table")
	}
	defer table.Release()

	column := func(name string) ([]string, error) {
		col := table.Column(indices[name])
		values := make([]string, 0, table.NumRows())
		for _, chunk := range col.Data().Chunks() {
			strs, ok := chunk.(*array.String)
			if !ok {
				return nil, errors.WithFields(
					errors.New(errors.InvalidInput, "parquet column is not a string column"),
					errors.Fields{"column": name},
				)
			}
			for i := 0; i < strs.Len(); i++ {
				values = append(values, strs.Value(i))
			}
		}
		return values, nil
	}

	titles, err := column("title")
	if err != nil {
		return nil, err
	}
	descriptions, err := column("description")
	if err != nil {
		return nil, err
	}
	contents, err := column("content")
	if err != nil {
		return nil, err
	}
	sources, err := column("source")
	if err != nil {
		return nil, err
	}
	var tags []string
	if hasTags {
		if tags, err = column("tags"); err != nil {
			return nil, err
		}
	}

	candidates := make([]Item, 0, len(titles))
	for i := range titles {
		item := Item{
			Title:       titles[i],
			Description: descriptions[i],
			Content:     contents[i],
			Source:      Source(sources[i]),
		}
		if hasTags && tags[i] != "" {
			item.Tags = strings.Split(tags[i], ",")
		}
		candidates = append(candidates, item)
	}

	return s.Consolidate(ctx, candidates, opts)
}
