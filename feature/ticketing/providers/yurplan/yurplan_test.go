package yurplan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ticketing-sync/feature/ticketing/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConnector(t *testing.T, handler http.Handler) *Connector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(providers.Credentials{AccessKey: "user@example.org", SecretKey: "secret"}, zap.NewNop())
	c.baseURL = server.URL
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func tokenHandler(t *testing.T, calls *int, mu *sync.Mutex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "user@example.org", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))

		if mu != nil {
			mu.Lock()
			*calls++
			mu.Unlock()
		}
		writeJSON(t, w, map[string]any{"access_token": "bearer-1", "expires_in": 3600})
	}
}

// TestGetEventsSeries tests the token flow and the per-event ticket-type
// expansion.
func TestGetEventsSeries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(t, nil, nil))
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer bearer-1", r.Header.Get("Authorization"))
		writeJSON(t, w, map[string]any{
			"data": []map[string]any{
				{"id": "ev-1", "name": "Theatre premiere", "start": "2026-09-20T20:00:00Z", "end": "2026-09-20T22:30:00Z"},
			},
			"paging": map[string]any{"total": 1},
		})
	})
	mux.HandleFunc("/events/ev-1/ticket-types", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"data": []map[string]any{
				{"id": "tt-1", "name": "Orchestre", "price": 35.0, "tax_rate": 0.055, "sold_count": 40},
				{"id": "tt-2", "name": "Balcon", "price": 25.0, "tax_rate": 0.055, "sold_count": 0},
				{"id": "tt-3", "name": "Invitation", "price": 0.0, "tax_rate": 0.0, "sold_count": 10},
			},
		})
	})

	c := newTestConnector(t, mux)
	wrappers, err := c.GetEventsSeries(context.Background(), time.Now().Add(-time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, wrappers, 1)

	wrapper := wrappers[0]
	assert.Equal(t, "ev-1", wrapper.Serie.InternalTicketingSystemID)
	require.Len(t, wrapper.Events, 1)
	require.Len(t, wrapper.TicketCategories, 3)

	// Only types with sold tickets yield Sale rows.
	require.Len(t, wrapper.Sales, 2)
	assert.Equal(t, "tt-1", wrapper.Sales[0].InternalTicketCategoryTicketingSystemID)
	assert.Equal(t, 40, wrapper.Sales[0].Total)
	assert.Equal(t, "tt-3", wrapper.Sales[1].InternalTicketCategoryTicketingSystemID)
	assert.Equal(t, 10, wrapper.Sales[1].Total)

	// Free invitations do not contest the paid rate.
	require.NotNil(t, wrapper.Serie.TaxRate)
	assert.InDelta(t, 0.055, *wrapper.Serie.TaxRate, 1e-12)
}

// TestTokenReuse tests that a live token is reused across passes instead of
// being re-fetched.
func TestTokenReuse(t *testing.T) {
	var mu sync.Mutex
	tokenCalls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(t, &tokenCalls, &mu))
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"data":   []map[string]any{},
			"paging": map[string]any{"total": 0},
		})
	})

	c := newTestConnector(t, mux)
	for i := 0; i < 3; i++ {
		_, err := c.GetEventsSeries(context.Background(), time.Now(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenCalls)
}

// TestGetEventsSeries_TotalCeiling tests that an unbounded pass refuses to
// walk past the safety ceiling.
func TestGetEventsSeries_TotalCeiling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", tokenHandler(t, nil, nil))
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"data":   []map[string]any{},
			"paging": map[string]any{"total": maxTotal + 1},
		})
	})

	c := newTestConnector(t, mux)
	_, err := c.GetEventsSeries(context.Background(), time.Now(), nil)
	assert.Equal(t, providers.ErrTooMuchToRetrieve, err)
}

// TestTestConnection tests the token probe outcomes.
func TestTestConnection(t *testing.T) {
	t.Run("valid grant", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/oauth/token", tokenHandler(t, nil, nil))
		c := newTestConnector(t, mux)

		ok, err := c.TestConnection(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("invalid grant reports false", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		})
		c := newTestConnector(t, mux)

		ok, err := c.TestConnection(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("insufficient scope surfaces as typed error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"insufficient scope for this token"}`))
		})
		c := newTestConnector(t, mux)

		ok, err := c.TestConnection(context.Background())
		assert.False(t, ok)
		assert.Equal(t, providers.ErrMissingEventRights, err)
	})
}
