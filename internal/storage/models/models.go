package models

import "time"

// ResultSet is the ordered output of a read query.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

func (r *ResultSet) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// RowMaps renders rows as column-keyed maps for JSON responses.
func (r *ResultSet) RowMaps() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				m[col] = row[i]
			}
		}
		out = append(out, m)
	}
	return out
}

// DatasetMeta describes the currently loaded dataset. Replaced wholesale on
// each upload; there is no versioning beyond latest-wins.
type DatasetMeta struct {
	Filename   string
	Table      string
	Columns    []string
	RowCount   int
	UploadedAt time.Time
}

// Turn is one answered question in a session's conversation history.
type Turn struct {
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	Columns   []string  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}
