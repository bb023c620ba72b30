package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/tierledger/internal/core"
	"github.com/aristath/tierledger/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSettingsService struct {
	mock.Mock
}

func (m *mockSettingsService) AllSettings() (map[string]string, error) {
	args := m.Called()
	values, _ := args.Get(0).(map[string]string)
	return values, args.Error(1)
}

func (m *mockSettingsService) UpdateSetting(key, value string) error {
	return m.Called(key, value).Error(0)
}

func (m *mockSettingsService) RateTables() (*core.RateTables, error) {
	args := m.Called()
	rates, _ := args.Get(0).(*core.RateTables)
	return rates, args.Error(1)
}

func (m *mockSettingsService) RankLadder(ctx context.Context) ([]domain.Rank, error) {
	args := m.Called()
	ranks, _ := args.Get(0).([]domain.Rank)
	return ranks, args.Error(1)
}

func (m *mockSettingsService) UpsertRank(ctx context.Context, rank domain.Rank) error {
	return m.Called(rank).Error(0)
}

func newRouter(svc SettingsService) *chi.Mux {
	router := chi.NewRouter()
	router.Route("/api", NewHandler(svc, zerolog.Nop()).RegisterRoutes)
	return router
}

func TestHandleUpdate_MapsValidationTo400(t *testing.T) {
	svc := new(mockSettingsService)
	svc.On("UpdateSetting", "asset_growth_rate", "2").Return(domain.Invalid("asset_growth_rate", assert.AnError))

	req := httptest.NewRequest(http.MethodPut, "/api/settings/asset_growth_rate", strings.NewReader(`{"value":"2"}`))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandleGetAll_IncludesDefaults(t *testing.T) {
	svc := new(mockSettingsService)
	svc.On("AllSettings").Return(map[string]string{"instant_rate_investor": "0.05"}, nil)

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]settingView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "0.05", body.Data["instant_rate_investor"].Value)
	assert.Equal(t, "0.04", body.Data["instant_rate_investor"].Default)
}

func TestHandleUpsertRank_UsesPathLevel(t *testing.T) {
	svc := new(mockSettingsService)
	svc.On("UpsertRank", mock.MatchedBy(func(r domain.Rank) bool {
		return r.Level == 3 && r.MinAccounts == 12
	})).Return(nil)

	req := httptest.NewRequest(http.MethodPut, "/api/ranks/3", strings.NewReader(`{"level":7,"min_accounts":12,"newly_qualified":2,"fixed_bonus":"300"}`))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
