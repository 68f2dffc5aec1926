package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdata/backend/internal/schema"
	"github.com/askdata/backend/internal/sqlgen"
	"github.com/askdata/backend/internal/storage/models"
)

type fakeStore struct {
	failing  map[string]error
	executed []string
}

func (s *fakeStore) ExecuteRead(_ context.Context, sqlText string) (*models.ResultSet, error) {
	s.executed = append(s.executed, sqlText)
	if err, ok := s.failing[sqlText]; ok {
		return nil, err
	}
	return &models.ResultSet{Columns: []string{"value"}, Rows: [][]any{{int64(1)}}}, nil
}

type fakeDrafter struct {
	draft       string
	draftOK     bool
	repairs     []string
	repairCalls int
	lastReq     sqlgen.DraftRequest
}

func (d *fakeDrafter) Draft(_ context.Context, req sqlgen.DraftRequest) (string, bool) {
	d.lastReq = req
	return d.draft, d.draftOK
}

func (d *fakeDrafter) Repair(_ context.Context, _ sqlgen.DraftRequest, _, _ string) (string, bool) {
	if d.repairCalls >= len(d.repairs) {
		d.repairCalls++
		return "", false
	}
	sqlText := d.repairs[d.repairCalls]
	d.repairCalls++
	return sqlText, true
}

type fakeRetriever struct {
	text string
	err  error
}

func (r *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) (string, error) {
	return r.text, r.err
}

func salesClassification() schema.Classification {
	return schema.Classification{
		Numeric:     []string{"salary"},
		Categorical: []string{"department"},
	}
}

func TestAnswerDraftSucceedsFirstExecution(t *testing.T) {
	store := &fakeStore{}
	drafter := &fakeDrafter{draft: "SELECT salary FROM data", draftOK: true}

	o := NewOrchestrator(store, drafter, nil, Config{})
	ans := o.Answer(context.Background(), "show salaries", salesClassification(), "")

	require.False(t, ans.Failed())
	assert.Equal(t, "SELECT salary FROM data", ans.SQL)
	assert.NotNil(t, ans.Rows)
	assert.Equal(t, []string{"SELECT salary FROM data"}, store.executed)
	assert.Zero(t, drafter.repairCalls)
}

func TestAnswerDraftFailureSkipsToFallback(t *testing.T) {
	store := &fakeStore{}
	drafter := &fakeDrafter{draftOK: false}

	o := NewOrchestrator(store, drafter, nil, Config{})
	ans := o.Answer(context.Background(), "average salary by department", salesClassification(), "")

	require.False(t, ans.Failed())
	assert.Equal(t,
		"SELECT department AS group_col, AVG(salary) AS value FROM data GROUP BY department ORDER BY value DESC",
		ans.SQL)
	// no generative SQL ever reached the store and no repair was requested
	assert.Len(t, store.executed, 1)
	assert.Zero(t, drafter.repairCalls)
}

func TestAnswerRepairedCandidateWins(t *testing.T) {
	store := &fakeStore{failing: map[string]error{
		"SELECT slary FROM data": errors.New("no such column: slary"),
	}}
	drafter := &fakeDrafter{
		draft:   "SELECT slary FROM data",
		draftOK: true,
		repairs: []string{"SELECT salary FROM data"},
	}

	o := NewOrchestrator(store, drafter, nil, Config{})
	ans := o.Answer(context.Background(), "show salaries", salesClassification(), "")

	require.False(t, ans.Failed())
	assert.Equal(t, "SELECT salary FROM data", ans.SQL)
	assert.Equal(t, 1, drafter.repairCalls)
	assert.NotContains(t, ans.SQL, "slary")
}

func TestAnswerRepairExhaustionFallsBack(t *testing.T) {
	boom := errors.New("no such column: x")
	store := &fakeStore{failing: map[string]error{
		"SELECT x FROM data": boom,
		"SELECT y FROM data": boom,
		"SELECT z FROM data": boom,
	}}
	drafter := &fakeDrafter{
		draft:   "SELECT x FROM data",
		draftOK: true,
		repairs: []string{"SELECT y FROM data", "SELECT z FROM data", "SELECT w FROM data"},
	}

	o := NewOrchestrator(store, drafter, nil, Config{})
	ans := o.Answer(context.Background(), "average salary by department", salesClassification(), "")

	require.False(t, ans.Failed())
	// three generative executions, then the deterministic fallback; the last
	// repair result is never executed
	require.Len(t, store.executed, 4)
	assert.Equal(t, "SELECT x FROM data", store.executed[0])
	assert.Equal(t, "SELECT y FROM data", store.executed[1])
	assert.Equal(t, "SELECT z FROM data", store.executed[2])
	assert.NotContains(t, store.executed, "SELECT w FROM data")
	assert.Equal(t,
		"SELECT department AS group_col, AVG(salary) AS value FROM data GROUP BY department ORDER BY value DESC",
		ans.SQL)
}

func TestAnswerRepairGivesUpEarly(t *testing.T) {
	store := &fakeStore{failing: map[string]error{
		"SELECT x FROM data": errors.New("syntax error"),
	}}
	drafter := &fakeDrafter{draft: "SELECT x FROM data", draftOK: true}

	o := NewOrchestrator(store, drafter, nil, Config{})
	ans := o.Answer(context.Background(), "count rows", salesClassification(), "")

	require.False(t, ans.Failed())
	assert.Equal(t, "SELECT COUNT(*) AS value FROM data", ans.SQL)
	assert.Len(t, store.executed, 2)
}

func TestAnswerFallbackFailureIsTheOnlyVisibleError(t *testing.T) {
	fallbackSQL := "SELECT department AS group_col, AVG(salary) AS value FROM data GROUP BY department ORDER BY value DESC"
	store := &fakeStore{failing: map[string]error{
		fallbackSQL: errors.New("no such table: data"),
	}}
	drafter := &fakeDrafter{draftOK: false}

	o := NewOrchestrator(store, drafter, nil, Config{})
	ans := o.Answer(context.Background(), "average salary by department", salesClassification(), "")

	require.True(t, ans.Failed())
	assert.Equal(t, fallbackSQL, ans.SQL)
	assert.Nil(t, ans.Rows)
	assert.Contains(t, ans.Err, "SQL error in fallback")
	assert.Contains(t, ans.Err, "no such table")
}

func TestAnswerAlwaysPairsSQLWithRowsOrError(t *testing.T) {
	cases := []struct {
		name    string
		store   *fakeStore
		drafter *fakeDrafter
	}{
		{"generative success", &fakeStore{}, &fakeDrafter{draft: "SELECT salary FROM data", draftOK: true}},
		{"fallback success", &fakeStore{}, &fakeDrafter{draftOK: false}},
		{"fallback failure", &fakeStore{failing: map[string]error{
			"SELECT COUNT(*) AS value FROM data": errors.New("locked"),
		}}, &fakeDrafter{draftOK: false}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(tc.store, tc.drafter, nil, Config{})
			ans := o.Answer(context.Background(), "count", schema.Classification{}, "")

			assert.NotEmpty(t, ans.SQL)
			if ans.Err == "" {
				assert.NotNil(t, ans.Rows)
			} else {
				assert.Nil(t, ans.Rows)
			}
		})
	}
}

func TestAnswerRetrievedContextReachesDrafter(t *testing.T) {
	store := &fakeStore{}
	drafter := &fakeDrafter{draft: "SELECT salary FROM data", draftOK: true}
	retriever := &fakeRetriever{text: "Column salary: numeric, sample values 50000, 62000"}

	o := NewOrchestrator(store, drafter, retriever, Config{})
	o.Answer(context.Background(), "show salaries", salesClassification(), "prior turn")

	assert.Equal(t, retriever.text, drafter.lastReq.Context)
	assert.Equal(t, "prior turn", drafter.lastReq.History)
}

func TestAnswerRetrieverErrorIsSwallowed(t *testing.T) {
	store := &fakeStore{}
	drafter := &fakeDrafter{draft: "SELECT salary FROM data", draftOK: true}
	retriever := &fakeRetriever{err: errors.New("collection not loaded")}

	o := NewOrchestrator(store, drafter, retriever, Config{})
	ans := o.Answer(context.Background(), "show salaries", salesClassification(), "")

	require.False(t, ans.Failed())
	assert.Empty(t, drafter.lastReq.Context)
}

func TestAnswerContextTruncated(t *testing.T) {
	store := &fakeStore{}
	drafter := &fakeDrafter{draft: "SELECT salary FROM data", draftOK: true}
	retriever := &fakeRetriever{text: strings.Repeat("x", 5000)}

	o := NewOrchestrator(store, drafter, retriever, Config{ContextMaxChars: 1400})
	o.Answer(context.Background(), "show salaries", salesClassification(), "")

	assert.Len(t, drafter.lastReq.Context, 1400)
}
