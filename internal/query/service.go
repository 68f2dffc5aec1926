package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/askdata/backend/internal/ingestion"
	"github.com/askdata/backend/internal/insights"
	"github.com/askdata/backend/internal/session"
	"github.com/askdata/backend/internal/storage/models"
	"github.com/askdata/backend/pkg/logger"
	"github.com/askdata/backend/pkg/utils"
)

// ErrNoDataset is returned when a question arrives before any upload.
var ErrNoDataset = errors.New("no dataset loaded, upload a CSV first")

// AnswerCache stores finished responses keyed by question hash. May be nil.
type AnswerCache interface {
	GetAnswer(ctx context.Context, answerHash string, response interface{}) (bool, error)
	SetAnswer(ctx context.Context, answerHash string, response interface{}, ttl time.Duration) error
}

// AskResponse is the full payload for one answered question.
type AskResponse struct {
	Question       string           `json:"question"`
	SQL            string           `json:"sql"`
	Columns        []string         `json:"columns"`
	Rows           []map[string]any `json:"rows"`
	RowCount       int              `json:"row_count"`
	Insights       []string         `json:"insights"`
	SuggestedChart string           `json:"suggested_chart"`
	SessionID      string           `json:"session_id"`
	Cached         bool             `json:"cached"`
	Error          string           `json:"error,omitempty"`
}

// Service owns the live dataset and runs questions end to end: session
// history in, orchestrated SQL, computed insights, cached response out.
type Service struct {
	orchestrator *Orchestrator
	store        Store
	sessions     session.Store
	cache        AnswerCache
	answerTTL    time.Duration

	mu      sync.RWMutex
	dataset *ingestion.Result
}

func NewService(orchestrator *Orchestrator, store Store, sessions session.Store, cache AnswerCache, answerTTL time.Duration) *Service {
	if answerTTL <= 0 {
		answerTTL = 10 * time.Minute
	}

	return &Service{
		orchestrator: orchestrator,
		store:        store,
		sessions:     sessions,
		cache:        cache,
		answerTTL:    answerTTL,
	}
}

// SetDataset swaps in a freshly ingested dataset. Questions asked from
// this point on run against it.
func (s *Service) SetDataset(result *ingestion.Result) {
	s.mu.Lock()
	s.dataset = result
	s.mu.Unlock()
}

// Dataset returns the currently loaded dataset, if any.
func (s *Service) Dataset() (*ingestion.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, s.dataset != nil
}

// Ask answers one question within a session. The only error is a missing
// dataset; SQL-level failures come back inside the response.
func (s *Service) Ask(ctx context.Context, question, sessionID string) (*AskResponse, error) {
	dataset, ok := s.Dataset()
	if !ok {
		return nil, ErrNoDataset
	}
	if sessionID == "" {
		sessionID = "default"
	}

	hash := utils.HashKey(question, sessionID, dataset.Meta.UploadedAt.Format(time.RFC3339Nano))
	if s.cache != nil {
		var cached AskResponse
		found, err := s.cache.GetAnswer(ctx, hash, &cached)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		} else if found {
			cached.Cached = true
			return &cached, nil
		}
	}

	history := session.LastContext(ctx, s.sessions, sessionID)
	ans := s.orchestrator.Answer(ctx, question, dataset.Classification, history)

	resp := &AskResponse{
		Question:  question,
		SQL:       ans.SQL,
		SessionID: sessionID,
	}

	if ans.Failed() {
		resp.Error = ans.Err
		return resp, nil
	}

	report := insights.Generate(ans.Rows, ans.SQL, question)
	resp.Columns = ans.Rows.Columns
	resp.Rows = ans.Rows.RowMaps()
	resp.RowCount = len(ans.Rows.Rows)
	resp.Insights = report.Insights
	resp.SuggestedChart = report.SuggestedChart

	if err := s.sessions.Append(ctx, sessionID, models.Turn{
		Question:  question,
		SQL:       ans.SQL,
		Columns:   ans.Rows.Columns,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		logger.Warn("Failed to record session turn", zap.Error(err))
	}

	if s.cache != nil {
		if err := s.cache.SetAnswer(ctx, hash, resp, s.answerTTL); err != nil {
			logger.Warn("Answer cache write failed", zap.Error(err))
		}
	}

	return resp, nil
}

// Report runs the full insight analysis for a question, for callers that
// want the ranked groups and outlier details alongside the bullets.
func (s *Service) Report(ctx context.Context, question, sessionID string) (*AskResponse, *insights.Report, error) {
	resp, err := s.Ask(ctx, question, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if resp.Error != "" {
		return resp, nil, nil
	}

	rs := &models.ResultSet{Columns: resp.Columns}
	for _, rowMap := range resp.Rows {
		row := make([]any, len(resp.Columns))
		for i, col := range resp.Columns {
			row[i] = rowMap[col]
		}
		rs.Rows = append(rs.Rows, row)
	}

	report := insights.Generate(rs, resp.SQL, question)
	return resp, &report, nil
}

// RunSQL executes a caller-provided statement under the read-only guard.
func (s *Service) RunSQL(ctx context.Context, sqlText string) (*models.ResultSet, error) {
	if _, ok := s.Dataset(); !ok {
		return nil, ErrNoDataset
	}
	return s.store.ExecuteRead(ctx, sqlText)
}

// History lists the turns recorded for a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]models.Turn, error) {
	if sessionID == "" {
		sessionID = "default"
	}
	return s.sessions.History(ctx, sessionID)
}
