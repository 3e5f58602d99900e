package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"continuity.org/internal/bia"
	"continuity.org/internal/identity"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", "anon-key", WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNewRequiresURLAndKey(t *testing.T) {
	_, err := New("", "k")
	assert.Error(t, err)
	_, err = New("http://x", " ")
	assert.Error(t, err)
}

func TestSelectForwardsSessionToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/organizations", r.URL.Path)
		assert.Equal(t, "eq.org-1", r.URL.Query().Get("id"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[{"id":"org-1","name":"Acme","industry":"retail"}]`)
	})
	ctx := identity.ContextWithSession(context.Background(), &identity.Session{AccessToken: "user-token"})
	var org identity.Organization
	require.NoError(t, c.Select(ctx, "organizations", Query{Eq: map[string]string{"id": "org-1"}, Single: true}, &org))
	assert.Equal(t, "Acme", org.Name)
}

func TestSelectSingleEmptyIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	})
	var org identity.Organization
	err := c.Select(context.Background(), "organizations", Query{Single: true}, &org)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetriesThenUnavailable(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.RPC(context.Background(), "get_risk_analysis", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(4), hits.Load())
}

func TestRetryRecovers(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"score":42}`)
	})
	out, err := c.RPC(context.Background(), "get_risk_analysis", map[string]string{"org_id": "o"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":42}`, string(out))
}

func TestStatusMapping(t *testing.T) {
	cases := map[int]error{
		http.StatusUnauthorized: ErrInvalidToken,
		http.StatusConflict:     ErrConflict,
		http.StatusBadRequest:   ErrRejected,
		http.StatusNotFound:     ErrNotFound,
	}
	for status, want := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"message":"nope"}`)
		})
		_, err := c.RPC(context.Background(), "fn", nil)
		assert.ErrorIs(t, err, want, "status %d", status)
	}
}

func TestCancelledContextStopsRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.RPC(ctx, "fn", nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDeleteRequiresFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})
	assert.ErrorIs(t, c.Delete(context.Background(), "business_processes", nil), ErrRejected)
}

func TestProcessRepositoryUpsert(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Prefer"), "merge-duplicates")
		var row map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
		assert.Equal(t, "org-1", row["organization_id"])
		assert.Equal(t, "critical", row["priority"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]map[string]any{row})
	})
	repo := NewProcessRepository(c)
	in := bia.BusinessProcess{ID: "p-1", Name: "Payments", Priority: bia.PriorityCritical, RTO: 2, RPO: 0.25, MTD: 3,
		OperationalImpact: bia.ScoredImpact{Score: 40}}
	out, err := repo.UpsertProcess(context.Background(), "org-1", in)
	require.NoError(t, err)
	assert.Equal(t, "Payments", out.Name)
	assert.Equal(t, 40, out.OperationalImpact.Score)
	assert.Equal(t, 0.25, out.RPO)
}

func TestProcessRepositoryDeleteFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.p-1", r.URL.Query().Get("id"))
		assert.Equal(t, "eq.org-1", r.URL.Query().Get("organization_id"))
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, NewProcessRepository(c).DeleteProcess(context.Background(), "org-1", "p-1"))
}
