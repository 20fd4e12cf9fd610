package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonshare/flow-backend/internal/auth"
	"github.com/commonshare/flow-backend/internal/config"
	"github.com/commonshare/flow-backend/internal/events"
	"github.com/commonshare/flow-backend/internal/models"
	"github.com/commonshare/flow-backend/internal/repository/memory"
	"github.com/commonshare/flow-backend/internal/services"
	"github.com/commonshare/flow-backend/internal/worker"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	repos := memory.NewRepositories(store)
	wp := worker.NewPool(2)
	t.Cleanup(wp.Stop)
	bus := events.NewBus(wp)

	cfg := config.Config{
		Env:              "dev",
		RateRPS:          0, // disabled for tests
		JWTAccessSecret:  "test-access",
		JWTRefreshSecret: "test-refresh",
		JWTIssuer:        "test",
		AccessTTL:        time.Minute,
		RefreshTTL:       time.Hour,
		Flow:             config.DefaultFlowPolicy(),
	}
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)

	prog := services.NewProgressionService(repos.Progressions, repos.Accounts, repos.Balances, repos.AuditLogs)
	deps := Deps{
		Cfg:        cfg,
		TM:         tm,
		Accounts:   services.NewAccountService(repos.Accounts, repos.Balances, prog, cfg, tm),
		Balances:   services.NewBalanceService(repos.Balances, repos.Pools),
		Transfers:  services.NewTransferService(repos.Accounts, repos.Balances, repos.Transactions, repos.AuditLogs, prog, cfg.Flow, bus),
		Governance: services.NewGovernanceService(repos.PoolRequests, repos.Accounts, repos.AuditLogs, cfg.Flow, bus),
		Progress:   prog,
	}
	srv := httptest.NewServer(NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRouter_TransferFlow(t *testing.T) {
	srv, store := newTestServer(t)
	store.SeedAccount("alice", 1000)
	store.SeedAccount("bob", 50)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfers", "dev-alice", map[string]any{
		"recipient_account_id": "bob",
		"amount":               100,
		"description":          "veggies",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		BaseAmount       int64   `json:"base_amount"`
		FlowMultiplier   float64 `json:"flow_multiplier"`
		TotalCredited    int64   `json:"total_credited"`
		PoolContribution int64   `json:"pool_contribution"`
	}
	decode(t, resp, &out)
	assert.Equal(t, int64(100), out.BaseAmount)
	assert.Equal(t, 1.5, out.FlowMultiplier)
	assert.Equal(t, int64(150), out.TotalCredited)
	assert.Equal(t, int64(2), out.PoolContribution)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/balances/current", "dev-bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal struct {
		Credits int64 `json:"credits"`
	}
	decode(t, resp, &bal)
	assert.Equal(t, int64(200), bal.Credits)
}

func TestRouter_TransferRejectsUnknownFields(t *testing.T) {
	srv, store := newTestServer(t)
	store.SeedAccount("alice", 1000)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfers", "dev-alice", map[string]any{
		"recipient_account_id": "bob",
		"amount":               100,
		"flow_multiplier":      9.0, // client may not assert economics
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_TransferErrors(t *testing.T) {
	srv, store := newTestServer(t)
	store.SeedAccount("alice", 10)
	store.SeedAccount("bob", 0)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"insufficient funds", map[string]any{"recipient_account_id": "bob", "amount": 100}, http.StatusUnprocessableEntity},
		{"self transfer", map[string]any{"recipient_account_id": "alice", "amount": 5}, http.StatusUnprocessableEntity},
		{"zero amount", map[string]any{"recipient_account_id": "bob", "amount": 0}, http.StatusBadRequest},
		{"unknown recipient", map[string]any{"recipient_account_id": "ghost", "amount": 5}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/transfers", "dev-alice", tt.body)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/api/v1/transfers", "/api/v1/pool-requests"} {
		resp := doJSON(t, http.MethodPost, srv.URL+path, "", map[string]any{})
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestRouter_PoolGovernance(t *testing.T) {
	srv, store := newTestServer(t)
	store.SeedAccount("req", 0)
	store.SeedPool(models.PoolNeeds, 500)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/pool-requests", "dev-req", map[string]any{
		"pool_type": "NEEDS",
		"amount":    100,
		"reason":    "rent support",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, resp, &created)
	assert.Equal(t, "PENDING", created.Status)

	store.SeedAccount("v1", 0)
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/pool-requests/"+created.ID+"/vote", "dev-v1", map[string]any{"in_favor": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tally struct {
		VotesFor     int    `json:"votes_for"`
		VotesAgainst int    `json:"votes_against"`
		Status       string `json:"status"`
	}
	decode(t, resp, &tally)
	assert.Equal(t, 1, tally.VotesFor)
	assert.Equal(t, "PENDING", tally.Status)

	// Duplicate vote conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/pool-requests/"+created.ID+"/vote", "dev-v1", map[string]any{"in_favor": true})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/pools", "dev-req", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pools []models.Pool
	decode(t, resp, &pools)
	assert.Len(t, pools, 5)
}

func TestRouter_EconomyTier(t *testing.T) {
	srv, store := newTestServer(t)
	store.SeedAccount("alice", 0)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/economy/tier", "dev-alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Tier     string   `json:"tier"`
		Features []string `json:"unlocked_features"`
	}
	decode(t, resp, &out)
	assert.Equal(t, "basic", out.Tier)
	assert.Contains(t, out.Features, "eur_payment")
	assert.NotContains(t, out.Features, "credits_payment")
}

func TestRouter_AdminAdvanceRequiresRole(t *testing.T) {
	srv, store := newTestServer(t)
	store.SeedAccount("alice", 0)

	// dev tokens carry role "user"; the admin route must refuse them.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/admin/accounts/alice/advance", "dev-alice", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
