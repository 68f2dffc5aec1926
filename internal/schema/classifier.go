package schema

import (
	"strings"
	"time"
)

// temporalRatio is the fraction of values that must parse as dates for a
// column to be treated as temporal.
const temporalRatio = 0.70

// Column is a dataset column as seen at ingestion time: its declared
// storage type plus a sample of stringified values.
type Column struct {
	Name        string
	StorageType string
	Values      []string
}

// Classification partitions a dataset's columns. Every column lands in
// exactly one of the three groups; order follows the dataset's column
// order so downstream tie-breaks are deterministic.
type Classification struct {
	Numeric     []string
	Categorical []string
	Temporal    []string
}

func (c Classification) AllColumns() []string {
	all := make([]string, 0, len(c.Numeric)+len(c.Categorical)+len(c.Temporal))
	all = append(all, c.Numeric...)
	all = append(all, c.Categorical...)
	all = append(all, c.Temporal...)
	return all
}

// Classify inspects each column once. Numeric means a numeric storage
// type; temporal means enough values date-parse; everything else is
// categorical.
func Classify(cols []Column) Classification {
	var out Classification
	for _, col := range cols {
		switch {
		case isNumericStorage(col.StorageType):
			out.Numeric = append(out.Numeric, col.Name)
		case LooksTemporal(col.Values):
			out.Temporal = append(out.Temporal, col.Name)
		default:
			out.Categorical = append(out.Categorical, col.Name)
		}
	}
	return out
}

func isNumericStorage(storageType string) bool {
	switch strings.ToUpper(storageType) {
	case "INTEGER", "REAL":
		return true
	}
	return false
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// LooksTemporal reports whether at least 70% of the values parse with one
// of the supported date layouts. Empty input is never temporal.
func LooksTemporal(values []string) bool {
	if len(values) == 0 {
		return false
	}
	parsed := 0
	for _, v := range values {
		if parsesAsDate(v) {
			parsed++
		}
	}
	return float64(parsed)/float64(len(values)) >= temporalRatio
}

func parsesAsDate(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}
