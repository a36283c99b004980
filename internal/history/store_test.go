package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/doc-qa/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	id, err := store.Log(ctx, Entry{
		Timestamp:    ts,
		DocumentID:   "doc1",
		Query:        "Is maternity covered?",
		Answer:       "Yes, after 24 months.",
		Confidence:   0.8,
		MatchCount:   2,
		ProcessingMS: 120,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "generated id is a uuid")

	got, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ts, got.Timestamp)
	assert.Equal(t, "doc1", got.DocumentID)
	assert.Equal(t, "Yes, after 24 months.", got.Answer)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
	assert.Equal(t, 2, got.MatchCount)
	assert.Equal(t, int64(120), got.ProcessingMS)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentAndCount(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, doc := range []string{"a", "b", "a", "a"} {
		_, err := store.Log(ctx, Entry{
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			DocumentID: doc,
			Query:      "q",
		})
		require.NoError(t, err)
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	all, err := store.Recent(ctx, QueryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.True(t, all[0].Timestamp.After(all[1].Timestamp), "newest first")

	onlyA, err := store.Recent(ctx, QueryFilter{DocumentID: "a", Limit: 2})
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, base.Add(3*time.Minute), onlyA[0].Timestamp)

	since := base.Add(2 * time.Minute)
	recent, err := store.Recent(ctx, QueryFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	cleared, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cleared)
}

func TestRoutes(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id, err := store.Log(ctx, Entry{DocumentID: "a", Query: "q1"})
	require.NoError(t, err)
	_, err = store.Log(ctx, Entry{DocumentID: "b", Query: "q2"})
	require.NoError(t, err)

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queries?document_id=a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "q1", entries[0].Query)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queries/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queries/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
