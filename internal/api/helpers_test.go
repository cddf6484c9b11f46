package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/stock-run-tracker/internal/metrics"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

type testServer struct {
	store  *MockStore
	events *MockEvents
	cache  *MockTokenCache
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:  NewMockStore(),
		events: &MockEvents{},
		cache:  NewMockTokenCache(),
	}
	handler := NewHandler(ts.store, zerolog.Nop()).
		WithTokenCache(ts.cache).
		WithEvents(ts.events)
	ts.router = SetupRoutes(handler, RouterOptions{Metrics: metrics.New()})
	return ts
}

// createUser stores an active user and returns it with a token
func (ts *testServer) createUser(t *testing.T, email, password string) (*models.User, string) {
	t.Helper()
	u, err := models.NewUser(email, password, "Test Name")
	require.NoError(t, err)
	require.NoError(t, ts.store.CreateUser(context.Background(), u))
	token, err := ts.store.GetOrCreateToken(context.Background(), u.ID)
	require.NoError(t, err)
	return u, token.Key
}

// do sends body as JSON; a string body is sent verbatim
func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	decodeBody(t, rec, &m)
	return m
}

// fieldErrors decodes a flat {"field": ["message"]} body
func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string][]string {
	t.Helper()
	var m map[string][]string
	decodeBody(t, rec, &m)
	return m
}

func (ts *testServer) doWithHeader(t *testing.T, method, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}
