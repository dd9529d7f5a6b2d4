package supabase

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/troubleshooter/internal/backend"
	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/sessionstore"
)

func TestSelect_BuildsPostgrestQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/manuals", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "*,steps(*)", q.Get("select"))
		require.Equal(t, "created_at.desc", q.Get("order"))
		require.Equal(t, "5", q.Get("limit"))
		require.Equal(t, "eq.Network", q.Get("category"))
		require.Equal(t, "Bearer "+testAnonKey, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "1"}, {"id": "2"}})
	})
	c := newTestClient(t, mux, nil)

	rows, err := c.Select(context.Background(), "manuals", backend.Query{
		Embed:   []string{"steps"},
		Filters: []backend.Filter{backend.Eq("category", "Network")},
		Order:   &backend.Order{Column: "created_at", Desc: true},
		Limit:   5,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.JSONEq(t, `{"id":"1"}`, string(rows[0]))
}

func TestSelect_UsesSessionToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer old-access", r.Header.Get("Authorization"))
		require.Equal(t, "*", r.URL.Query().Get("select"))
		writeJSON(w, http.StatusOK, []any{})
	})
	store := sessionstore.NewMemory()
	require.NoError(t, store.Save(context.Background(), storedSession(time.Now().Add(time.Hour))))
	c := newTestClient(t, mux, store)

	rows, err := c.Select(context.Background(), "profiles", backend.Query{})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestSelect_NotFoundCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/profiles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotAcceptable, map[string]any{"code": "PGRST116", "message": "JSON object requested, multiple (or no) rows returned"})
	})
	c := newTestClient(t, mux, nil)
	_, err := c.Select(context.Background(), "profiles", backend.Query{})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestInsert_ReturnsRepresentation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/steps", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "return=representation", r.Header.Get("Prefer"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		require.True(t, strings.HasPrefix(string(b), "["), "rows are sent as an array")
		writeJSON(w, http.StatusCreated, []map[string]any{{"id": "s1"}, {"id": "s2"}})
	})
	c := newTestClient(t, mux, nil)

	out, err := c.Insert(context.Background(), "steps", []backend.Row{{"title": "a"}, {"title": "b"}})
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = c.Insert(context.Background(), "steps", nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestUpdateDelete_CountRows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/manuals", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "eq.m1", r.URL.Query().Get("id"))
		switch r.Method {
		case http.MethodPatch:
			require.Equal(t, "New title", readBody(t, r)["title"])
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "m1"}})
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, []map[string]any{})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	})
	c := newTestClient(t, mux, nil)
	ctx := context.Background()

	n, err := c.Update(ctx, "manuals", backend.Row{"title": "New title"}, backend.Eq("id", "m1"))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = c.Delete(ctx, "manuals", backend.Eq("id", "m1"))
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	_, err = c.Delete(ctx, "manuals")
	require.Error(t, err, "unfiltered delete is refused")
}

func TestRequest_HonoursContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/manuals", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c := newTestClient(t, mux, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Select(ctx, "manuals", backend.Query{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
