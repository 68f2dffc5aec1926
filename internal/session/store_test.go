package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdata/backend/internal/storage/models"
)

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "abc", models.Turn{Question: "q1", SQL: "SELECT 1"}))
	require.NoError(t, s.Append(ctx, "abc", models.Turn{Question: "q2", SQL: "SELECT 2"}))
	require.NoError(t, s.Append(ctx, "other", models.Turn{Question: "elsewhere"}))

	turns, err := s.History(ctx, "abc")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "q1", turns[0].Question)
	assert.Equal(t, "q2", turns[1].Question)
}

func TestMemoryStoreUnknownSessionIsEmpty(t *testing.T) {
	s := NewMemoryStore()

	turns, err := s.History(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemoryStoreHistoryIsACopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "abc", models.Turn{Question: "q1"}))

	turns, err := s.History(ctx, "abc")
	require.NoError(t, err)
	turns[0].Question = "mutated"

	again, err := s.History(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "q1", again[0].Question)
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(ctx, "shared", models.Turn{Question: "q"})
		}()
	}
	wg.Wait()

	turns, err := s.History(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, turns, 50)
}

func TestLastContextFormatsMostRecentTurn(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "abc", models.Turn{Question: "old", SQL: "SELECT 0"}))
	require.NoError(t, s.Append(ctx, "abc", models.Turn{
		Question: "average salary by department",
		SQL:      "SELECT department AS group_col, AVG(salary) AS value FROM data GROUP BY department ORDER BY value DESC",
		Columns:  []string{"group_col", "value"},
	}))

	got := LastContext(ctx, s, "abc")

	assert.Contains(t, got, "Previous question: average salary by department\n")
	assert.Contains(t, got, "Previous SQL: SELECT department AS group_col")
	assert.Contains(t, got, "Previous columns: [group_col, value]\n")
	assert.NotContains(t, got, "old")
}

func TestLastContextEmptyHistory(t *testing.T) {
	s := NewMemoryStore()

	assert.Empty(t, LastContext(context.Background(), s, "fresh"))
}
