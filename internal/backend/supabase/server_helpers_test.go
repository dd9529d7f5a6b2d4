package supabase

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/sessionstore"
)

const testAnonKey = "anon-key"

var testUserID = uuid.Must(uuid.FromString("0b7c9f2a-1d2e-4c3b-8a9f-5e6d7c8b9a02"))

func newTestClient(t *testing.T, mux *http.ServeMux, store sessionstore.Store) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	if store == nil {
		store = sessionstore.NewMemory()
	}
	c, err := New(Config{URL: srv.URL, AnonKey: testAnonKey, Store: store})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func userJSON(displayName string) map[string]any {
	return map[string]any{
		"id":            testUserID.String(),
		"email":         "alice@internal.com",
		"user_metadata": map[string]any{"display_name": displayName},
	}
}

func sessionJSON(access string, expiresIn int) map[string]any {
	m := map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"refresh_token": "refresh-" + access,
		"user":          userJSON("alice"),
	}
	if expiresIn > 0 {
		m["expires_in"] = expiresIn
	}
	return m
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   testUserID.String(),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func storedSession(expiresAt time.Time) *model.Session {
	return &model.Session{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    expiresAt,
		User:         model.User{ID: testUserID, Email: "alice@internal.com"},
	}
}

func nextEvent(t *testing.T, ch <-chan model.AuthEvent) model.AuthEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no auth event")
		return model.AuthEvent{}
	}
}
