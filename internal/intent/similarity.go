package intent

import (
	"sort"
	"strings"
	"unicode"
)

// RankedColumn pairs a candidate column with its similarity score against
// the question, so threshold and tie-break policy stay testable outside
// the extraction control flow.
type RankedColumn struct {
	Name  string
	Score float64
}

// RankColumns scores every column against the question and returns them
// best-first. Ties keep the input order.
func RankColumns(question string, columns []string) []RankedColumn {
	q := normalize(question)
	ranked := make([]RankedColumn, 0, len(columns))
	for _, col := range columns {
		ranked = append(ranked, RankedColumn{
			Name:  col,
			Score: ratio(q, normalize(col)),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Similarity is the normalized edit-distance score between two strings,
// compared lower-cased with all whitespace removed.
func Similarity(a, b string) float64 {
	return ratio(normalize(a), normalize(b))
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func ratio(a, b string) float64 {
	maxLen := len([]rune(a))
	if n := len([]rune(b)); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	r1, r2 := []rune(a), []rune(b)
	len1, len2 := len(r1), len(r2)

	row := make([]int, len2+1)
	for i := 0; i <= len2; i++ {
		row[i] = i
	}

	for i := 1; i <= len1; i++ {
		prev := i
		for j := 1; j <= len2; j++ {
			val := row[j]
			if r1[i-1] == r2[j-1] {
				val = row[j-1]
			} else {
				val = minInt(minInt(row[j-1]+1, prev+1), row[j]+1)
			}
			row[j-1] = prev
			prev = val
		}
		row[len2] = prev
	}
	return row[len2]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
