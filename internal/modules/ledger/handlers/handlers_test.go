package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tierledger/internal/core"
	testingpkg "github.com/aristath/tierledger/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()
	ledgerDB, configDB := testingpkg.NewLedgerTestDBs(t)
	svc := core.NewService(core.Config{
		LedgerDB:   ledgerDB,
		ConfigDB:   configDB,
		ClockStart: testingpkg.FixtureDate,
	}, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", NewHandler(svc, zerolog.Nop()).RegisterRoutes)
	return router
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestInvestmentFlow(t *testing.T) {
	router := setupRouter(t)

	rec, _ := do(t, router, http.MethodPost, "/api/users", map[string]interface{}{"id": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/assets", map[string]interface{}{
		"id": "solar", "kind": "project", "apy": "12", "min_investment": "100",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := do(t, router, http.MethodPost, "/api/users/alice/deposits", map[string]interface{}{"amount": "20000"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pending", data(t, body)["status"])
	eventID := data(t, body)["id"].(float64)

	rec, _ = do(t, router, http.MethodPost, "/api/transactions/"+jsonInt(eventID)+"/status", map[string]interface{}{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, router, http.MethodPost, "/api/users/alice/investments", map[string]interface{}{"asset_id": "solar", "amount": "20000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	commission := data(t, body)["commission"].(map[string]interface{})
	assert.Equal(t, "800", commission["total"])

	rec, body = do(t, router, http.MethodGet, "/api/users/alice/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", data(t, body)["deposit_balance"])
	assert.Equal(t, "800", data(t, body)["profit_balance"])

	rec, body = do(t, router, http.MethodGet, "/api/users/alice/transactions?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), data(t, body)["count"])

	rec, body = do(t, router, http.MethodGet, "/api/users/alice/bonuses?type=instant", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), data(t, body)["count"])
}

func TestErrorMapping(t *testing.T) {
	router := setupRouter(t)
	do(t, router, http.MethodPost, "/api/users", map[string]interface{}{"id": "alice"})

	rec, body := do(t, router, http.MethodPost, "/api/users/alice/withdrawals", map[string]interface{}{"amount": "5"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "insufficient")

	rec, body = do(t, router, http.MethodPost, "/api/users/alice/deposits", map[string]interface{}{"amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "amount", body["field"])

	rec, _ = do(t, router, http.MethodGet, "/api/users/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/users", map[string]interface{}{"id": "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/transactions/abc/status", map[string]interface{}{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/users/alice/upline?depth=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReferralRoutes(t *testing.T) {
	router := setupRouter(t)
	do(t, router, http.MethodPost, "/api/users", map[string]interface{}{"id": "a"})
	do(t, router, http.MethodPost, "/api/users", map[string]interface{}{"id": "b", "upline_id": "a"})
	do(t, router, http.MethodPost, "/api/users", map[string]interface{}{"id": "c", "upline_id": "b"})

	rec, body := do(t, router, http.MethodGet, "/api/users/a/downline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), data(t, body)["count"])

	rec, body = do(t, router, http.MethodGet, "/api/users/c/upline?depth=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"b"}, data(t, body)["users"])
}

func jsonInt(f float64) string {
	raw, _ := json.Marshal(int64(f))
	return string(raw)
}
