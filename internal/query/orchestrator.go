package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/askdata/backend/internal/metrics"
	"github.com/askdata/backend/internal/schema"
	"github.com/askdata/backend/internal/sqlgen"
	"github.com/askdata/backend/internal/storage/models"
	"github.com/askdata/backend/pkg/logger"
)

// Store executes read queries against the current dataset.
type Store interface {
	ExecuteRead(ctx context.Context, sqlText string) (*models.ResultSet, error)
}

// Drafter proposes and repairs SQL candidates. A false second return means
// "no candidate" and is never an error condition.
type Drafter interface {
	Draft(ctx context.Context, req sqlgen.DraftRequest) (string, bool)
	Repair(ctx context.Context, req sqlgen.DraftRequest, brokenSQL, errorText string) (string, bool)
}

// Retriever fetches dataset-context text for a question. May be nil.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) (string, error)
}

// Answer always pairs the SQL that was attempted with either rows or an
// error description; exactly one of Rows/Err is set.
type Answer struct {
	SQL  string
	Rows *models.ResultSet
	Err  string
}

func (a Answer) Failed() bool {
	return a.Err != ""
}

type Config struct {
	Table             string
	MaxRepairAttempts int
	ContextTopK       int
	ContextMaxChars   int
}

// Orchestrator runs the draft → execute → repair → fallback chain. Every
// stage failure is a sentinel that feeds the next stage; only a failing
// fallback execution surfaces to the caller.
type Orchestrator struct {
	store     Store
	drafter   Drafter
	retriever Retriever
	cfg       Config
}

func NewOrchestrator(store Store, drafter Drafter, retriever Retriever, cfg Config) *Orchestrator {
	if cfg.Table == "" {
		cfg.Table = "data"
	}
	if cfg.MaxRepairAttempts <= 0 {
		cfg.MaxRepairAttempts = 3
	}
	if cfg.ContextTopK <= 0 {
		cfg.ContextTopK = 3
	}
	if cfg.ContextMaxChars <= 0 {
		cfg.ContextMaxChars = 1400
	}

	return &Orchestrator{
		store:     store,
		drafter:   drafter,
		retriever: retriever,
		cfg:       cfg,
	}
}

// Answer converts a question into executed SQL. historyContext is an
// optional prior-turn summary the caller already rendered.
func (o *Orchestrator) Answer(ctx context.Context, question string, class schema.Classification, historyContext string) Answer {
	req := sqlgen.DraftRequest{
		Question: question,
		Columns:  class.AllColumns(),
		Context:  o.retrieveContext(ctx, question),
		History:  historyContext,
	}

	if sqlText, ok := o.drafter.Draft(ctx, req); ok {
		for attempt := 0; attempt < o.cfg.MaxRepairAttempts; attempt++ {
			rows, err := o.store.ExecuteRead(ctx, sqlText)
			if err == nil {
				outcome := "generative"
				if attempt > 0 {
					outcome = "repaired"
				}
				metrics.QueryTotal.WithLabelValues(outcome).Inc()
				metrics.RepairAttempts.Observe(float64(attempt))
				logger.Info("Question answered",
					zap.String("outcome", outcome),
					zap.Int("repair_attempts", attempt),
				)
				return Answer{SQL: sqlText, Rows: rows}
			}

			logger.Warn("Candidate SQL failed to execute",
				zap.Int("attempt", attempt+1),
				zap.String("sql", sqlText),
				zap.Error(err),
			)

			repaired, ok := o.drafter.Repair(ctx, req, sqlText, err.Error())
			if !ok {
				break
			}
			sqlText = repaired
		}
	}

	return o.fallback(ctx, question, class)
}

// fallback discards all generative SQL and runs the deterministic builder.
// Its failure is the only one the caller ever sees.
func (o *Orchestrator) fallback(ctx context.Context, question string, class schema.Classification) Answer {
	sqlText := sqlgen.FallbackSQL(question, class, o.cfg.Table)

	rows, err := o.store.ExecuteRead(ctx, sqlText)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		logger.Error("Fallback SQL failed",
			zap.String("sql", sqlText),
			zap.Error(err),
		)
		return Answer{SQL: sqlText, Err: fmt.Sprintf("SQL error in fallback: %v", err)}
	}

	metrics.QueryTotal.WithLabelValues("fallback").Inc()
	logger.Info("Question answered", zap.String("outcome", "fallback"))
	return Answer{SQL: sqlText, Rows: rows}
}

func (o *Orchestrator) retrieveContext(ctx context.Context, question string) string {
	if o.retriever == nil {
		return ""
	}

	text, err := o.retriever.Retrieve(ctx, question, o.cfg.ContextTopK)
	if err != nil {
		// retrieval is best-effort; an empty context is always acceptable
		logger.Warn("Context retrieval failed", zap.Error(err))
		return ""
	}
	if len(text) > o.cfg.ContextMaxChars {
		text = text[:o.cfg.ContextMaxChars]
	}
	return text
}
