// Package normalize brings datasets from different sources to a common shape:
// canonical column names, consistent value types and a deterministic row order.
package normalize

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/dataset"
)

// Options controls Normalize
type Options struct {
	// Renames maps column names to their final names. Both sides are
	// canonicalized, and a target may not be renamed again.
	Renames map[string]string
	// SortKey is the column rows are ordered by. Empty leaves the order unchanged.
	SortKey string
}

// ColumnName lower-cases a column name and joins its words with underscores,
// so "Average Time Spent" becomes "average_time_spent".
func ColumnName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// Normalize canonicalizes column names, applies renames and sorts rows by the
// sort key, ties broken by the other columns. Normalizing an already
// normalized dataset returns an identical one.
func Normalize(ds *dataset.Dataset, opts Options) (*dataset.Dataset, error) {
	out := ds.Clone()
	for i, c := range out.Columns {
		out.Columns[i].Name = ColumnName(c.Name)
	}

	if len(opts.Renames) > 0 {
		renames, err := canonicalRenames(opts.Renames)
		if err != nil {
			return nil, err
		}
		clean := duplicateName(out.Names()) == ""
		out = out.Rename(renames)
		if dup := duplicateName(out.Names()); dup != "" && clean {
			return nil, &dataset.SchemaMismatchError{Reason: "rename produces duplicate column " + quote(dup)}
		}
	}

	if opts.SortKey == "" {
		return out, nil
	}

	key := ColumnName(opts.SortKey)
	if out.Index(key) < 0 {
		return nil, &dataset.SchemaMismatchError{Reason: "sort key " + quote(key) + " not found in " + strings.Join(out.Names(), ", ")}
	}

	// Ragged datasets cannot be reordered row-wise; the comparison reports them
	if err := out.Validate(); err != nil {
		log.Warn("Skipping row sort on ragged dataset", "key", key, "error", err)
		return out, nil
	}

	return out.SortRows(key)
}

// canonicalRenames canonicalizes both sides of a rename mapping. A target
// that is itself renamed would be renamed again on the next pass, so chains
// are rejected.
func canonicalRenames(renames map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(renames))
	for from, to := range renames {
		from, to = ColumnName(from), ColumnName(to)
		if from != to {
			out[from] = to
		}
	}
	for from, to := range out {
		if _, ok := out[to]; ok {
			return nil, &dataset.SchemaMismatchError{Reason: "rename target " + quote(to) + " of " + quote(from) + " is renamed again"}
		}
	}
	return out, nil
}

func duplicateName(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
