package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/askdata/backend/pkg/logger"
)

// Generator is the narrow slice of the text-generation backend the drafter
// needs: one prompt in, one completion out.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)
}

const draftPromptTemplate = `You convert English questions into correct SQLite SQL.

CRITICAL RULES:
- ALWAYS include the grouping column when GROUP BY is used.
- If the question says "by X", return: SELECT X AS group_col, <AGG>(metric) AS value FROM %s GROUP BY X ORDER BY value DESC
- The result must always have either:
    - one column: value
    - OR two columns: group_col, value
- Column names must match exactly.

Return ONLY the SQL.
No explanations.
No markdown.

Table: %s
Columns: %s

Question: %s`

const contextPromptTemplate = `You convert English questions into correct SQLite SQL.

Use ONLY the table and columns described in the dataset context below.
Return ONLY the SQL. No explanations. No markdown.

Dataset context:
%s

User Question:
%s`

const repairPromptTemplate = `You are an expert SQL repair assistant.

A SQL query caused an error. Your job is to FIX the SQL.

# RULES
- Return ONLY valid SQL.
- Do NOT explain anything.
- No markdown.
- No backticks.
- Use ONLY columns mentioned in the context below:
%s

BROKEN SQL:
%s

ERROR MESSAGE:
%s

Return ONLY corrected SQL.`

// DraftRequest carries everything one drafting attempt needs. Context and
// Columns are mutually exclusive prompt modes: when Context is non-empty
// it wins and the column list is omitted.
type DraftRequest struct {
	Question string
	Columns  []string
	Context  string
	History  string
}

// Drafter asks a text-generation backend for SQL and cleans what comes
// back. It never executes anything; failures surface as a missing
// candidate, not an error.
type Drafter struct {
	generator   Generator
	table       string
	temperature float32
	maxTokens   int
}

func NewDrafter(generator Generator, table string) *Drafter {
	return &Drafter{
		generator:   generator,
		table:       table,
		temperature: 0.1,
		maxTokens:   200,
	}
}

// Draft proposes a SQL statement for the question. The second return is
// false when the backend failed, returned nothing, or returned text that
// is not a read query.
func (d *Drafter) Draft(ctx context.Context, req DraftRequest) (string, bool) {
	var prompt string
	if strings.TrimSpace(req.Context) != "" {
		prompt = fmt.Sprintf(contextPromptTemplate, req.Context, req.Question)
	} else {
		prompt = fmt.Sprintf(draftPromptTemplate,
			d.table, d.table, strings.Join(req.Columns, ", "), req.Question)
	}
	if req.History != "" {
		prompt += "\n\n" + req.History
	}

	return d.generate(ctx, prompt)
}

// Repair asks for a corrected statement given the failed SQL and the
// engine's literal error text. Same cleanup and validation as Draft.
func (d *Drafter) Repair(ctx context.Context, req DraftRequest, brokenSQL, errorText string) (string, bool) {
	known := req.Context
	if strings.TrimSpace(known) == "" {
		known = fmt.Sprintf("Table: %s\nColumns: %s", d.table, strings.Join(req.Columns, ", "))
	}

	prompt := fmt.Sprintf(repairPromptTemplate, known, brokenSQL, errorText)
	return d.generate(ctx, prompt)
}

func (d *Drafter) generate(ctx context.Context, prompt string) (string, bool) {
	raw, err := d.generator.Generate(ctx, prompt, d.temperature, d.maxTokens)
	if err != nil {
		logger.Warn("SQL generation failed", zap.Error(err))
		return "", false
	}

	cleaned := Clean(raw)
	if !IsSelect(cleaned) {
		logger.Warn("Generated text is not a read query",
			zap.String("cleaned", truncate(cleaned, 200)),
		)
		return "", false
	}

	return cleaned, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
