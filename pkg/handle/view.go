package handle

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/logging"
)

// Sampling strategies accepted by View.Sample.
const (
	SampleHead   = "head"   // first n records
	SampleRandom = "random" // n records drawn with a caller-provided seed
	SampleStride = "stride" // every (len/n)-th record
)

// Filter operators accepted by View.Where.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpContains = "contains"
	OpGt       = "gt"
	OpLt       = "lt"
)

// Limits holds the server-side clamps applied to every view operation.
// Caller-requested sizes are clamped into [1, limit], never trusted.
type Limits struct {
	MaxPeekChars int
	MaxSampleN   int
	MaxRows      int
	MaxGroups    int
	MaxDistinct  int
}

// DefaultLimits returns the clamps used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPeekChars: 2000,
		MaxSampleN:   50,
		MaxRows:      100,
		MaxGroups:    50,
		MaxDistinct:  100,
	}
}

// View provides read-only, output-bounded inspection of stored content.
// All operations are pure functions of (id, params): they never mutate the
// store and produce identical output for identical input.
type View struct {
	store  Store
	limits Limits
}

// NewView creates a view over the given store.
func NewView(store Store, limits Limits) *View {
	if limits.MaxPeekChars <= 0 {
		limits = DefaultLimits()
	}
	return &View{store: store, limits: limits}
}

// clamp forces a caller-requested size into [1, max].
func clamp(n, max int) int {
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

// Peek returns a prefix of the stored content. The returned length is
// min(clamp(maxChars, 1, MaxPeekChars), len(content)) in characters.
func (v *View) Peek(ctx context.Context, id string, maxChars int) (string, error) {
	content, err := v.store.raw(ctx, id)
	if err != nil {
		return "", err
	}

	n := clamp(maxChars, v.limits.MaxPeekChars)
	runes := []rune(content)
	if n >= len(runes) {
		return content, nil
	}
	return string(runes[:n]), nil
}

// Lines returns a window of records starting at a zero-based offset.
// The count is clamped; an offset past the end yields an empty slice.
func (v *View) Lines(ctx context.Context, id string, offset, count int) ([]string, error) {
	records, err := v.records(ctx, id)
	if err != nil {
		return nil, err
	}

	n := clamp(count, v.limits.MaxRows)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return []string{}, nil
	}
	end := offset + n
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end], nil
}

// Sample returns n records chosen by the given strategy. The sample size is
// clamped server-side; an oversized request clamps instead of failing.
// Random sampling is deterministic for a given seed so sibling rollouts
// observe the same sample.
func (v *View) Sample(ctx context.Context, id string, n int, strategy string, seed int64) ([]string, error) {
	records, err := v.records(ctx, id)
	if err != nil {
		return nil, err
	}

	n = clamp(n, v.limits.MaxSampleN)
	if n >= len(records) {
		out := make([]string, len(records))
		copy(out, records)
		return out, nil
	}

	switch strategy {
	case SampleHead, "":
		out := make([]string, n)
		copy(out, records[:n])
		return out, nil

	case SampleRandom:
		rng := rand.New(rand.NewSource(seed))
		picked := rng.Perm(len(records))[:n]
		sort.Ints(picked)
		out := make([]string, 0, n)
		for _, idx := range picked {
			out = append(out, records[idx])
		}
		return out, nil

	case SampleStride:
		stride := len(records) / n
		out := make([]string, 0, n)
		for i := 0; i < len(records) && len(out) < n; i += stride {
			out = append(out, records[i])
		}
		return out, nil

	default:
		return nil, errors.WithFields(
			errors.New(errors.InvalidInput, "unknown sampling strategy"),
			errors.Fields{"strategy": strategy},
		)
	}
}

// Where returns the rows whose column matches the operator and value,
// bounded by MaxRows. The content must be rows dtype (header + TSV rows).
// The gt and lt operators compare numerically and reject non-numeric cells.
func (v *View) Where(ctx context.Context, id, column, op, value string) ([]string, error) {
	header, rows, err := v.table(ctx, id)
	if err != nil {
		return nil, err
	}

	col, err := columnIndex(header, column)
	if err != nil {
		return nil, err
	}

	logger := logging.GetLogger()
	out := make([]string, 0)
	for _, row := range rows {
		cells := strings.Split(row, "\t")
		if col >= len(cells) {
			continue
		}
		ok, err := matchCell(cells[col], op, value)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
			if len(out) >= v.limits.MaxRows {
				logger.Debug(ctx, "where result clamped to %d rows", v.limits.MaxRows)
				break
			}
		}
	}
	return out, nil
}

// GroupCount tallies rows per distinct value of a column. At most MaxGroups
// groups are returned, largest first, ties broken by value.
func (v *View) GroupCount(ctx context.Context, id, column string) ([]Group, error) {
	header, rows, err := v.table(ctx, id)
	if err != nil {
		return nil, err
	}

	col, err := columnIndex(header, column)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, row := range rows {
		cells := strings.Split(row, "\t")
		if col >= len(cells) {
			continue
		}
		counts[cells[col]]++
	}

	groups := make([]Group, 0, len(counts))
	for value, count := range counts {
		groups = append(groups, Group{Value: value, Count: count})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Value < groups[j].Value
	})

	if len(groups) > v.limits.MaxGroups {
		groups = groups[:v.limits.MaxGroups]
	}
	return groups, nil
}

// Group is one aggregation bucket from GroupCount.
type Group struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Distinct returns the sorted distinct values of a column, bounded by
// MaxDistinct.
func (v *View) Distinct(ctx context.Context, id, column string) ([]string, error) {
	header, rows, err := v.table(ctx, id)
	if err != nil {
		return nil, err
	}

	col, err := columnIndex(header, column)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, row := range rows {
		cells := strings.Split(row, "\t")
		if col >= len(cells) {
			continue
		}
		seen[cells[col]] = true
	}

	values := make([]string, 0, len(seen))
	for value := range seen {
		values = append(values, value)
	}
	sort.Strings(values)

	if len(values) > v.limits.MaxDistinct {
		values = values[:v.limits.MaxDistinct]
	}
	return values, nil
}

// records splits stored content into newline-delimited records, dropping a
// trailing empty record from a final newline.
func (v *View) records(ctx context.Context, id string) ([]string, error) {
	content, err := v.store.raw(ctx, id)
	if err != nil {
		return nil, err
	}

	records := strings.Split(content, "\n")
	if len(records) > 0 && records[len(records)-1] == "" {
		records = records[:len(records)-1]
	}
	return records, nil
}

// table splits rows-dtype content into header cells and data rows.
func (v *View) table(ctx context.Context, id string) ([]string, []string, error) {
	records, err := v.records(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.WithFields(
			errors.New(errors.InvalidInput, "content has no header row"),
			errors.Fields{"id": id},
		)
	}
	return strings.Split(records[0], "\t"), records[1:], nil
}

func columnIndex(header []string, column string) (int, error) {
	for i, name := range header {
		if name == column {
			return i, nil
		}
	}
	return 0, errors.WithFields(
		errors.New(errors.InvalidInput, "unknown column"),
		errors.Fields{"column": column, "header": strings.Join(header, ",")},
	)
}

func matchCell(cell, op, value string) (bool, error) {
	switch op {
	case OpEq:
		return cell == value, nil
	case OpNe:
		return cell != value, nil
	case OpContains:
		return strings.Contains(cell, value), nil
	case OpGt, OpLt:
		a, errA := strconv.ParseFloat(cell, 64)
		b, errB := strconv.ParseFloat(value, 64)
		if errA != nil || errB != nil {
			return false, errors.WithFields(
				errors.New(errors.InvalidInput, "numeric comparison on non-numeric value"),
				errors.Fields{"op": op, "cell": cell, "value": value},
			)
		}
		if op == OpGt {
			return a > b, nil
		}
		return a < b, nil
	default:
		return false, errors.WithFields(
			errors.New(errors.InvalidInput, "unknown filter operator"),
			errors.Fields{"op": op},
		)
	}
}
