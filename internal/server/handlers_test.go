package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborfin/drift/internal/app"
	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

type fakePortfolioService struct {
	portfolios map[string]*models.Portfolio
	targets    map[string]*models.TargetAllocations
}

func (f *fakePortfolioService) UpsertPortfolio(_ context.Context, p *models.Portfolio) (*models.Portfolio, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("portfolio name is required")
	}
	f.portfolios[p.Name] = p
	return p, nil
}

func (f *fakePortfolioService) GetPortfolio(_ context.Context, name string) (*models.Portfolio, error) {
	p, ok := f.portfolios[name]
	if !ok {
		return nil, fmt.Errorf("portfolio '%s' not found", name)
	}
	return p, nil
}

func (f *fakePortfolioService) ListPortfolios(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(f.portfolios))
	for name := range f.portfolios {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakePortfolioService) SetTargets(_ context.Context, name string, targets map[string]float64) (*models.TargetAllocations, error) {
	t := &models.TargetAllocations{PortfolioName: name, Targets: targets}
	f.targets[name] = t
	return t, nil
}

func (f *fakePortfolioService) GetTargets(_ context.Context, name string) (*models.TargetAllocations, error) {
	t, ok := f.targets[name]
	if !ok {
		return nil, fmt.Errorf("targets for '%s' not found", name)
	}
	return t, nil
}

type fakePositionService struct {
	snapshot *models.PositionSnapshot
}

func (f *fakePositionService) GetSnapshot(_ context.Context, name string) (*models.PositionSnapshot, error) {
	if f.snapshot == nil {
		return nil, fmt.Errorf("portfolio '%s' not found", name)
	}
	return f.snapshot, nil
}

type fakeRiskService struct {
	stats *models.RiskStats
}

func (f *fakeRiskService) ComputeRisk(_ context.Context, name string) (*models.RiskStats, error) {
	if f.stats == nil {
		return nil, fmt.Errorf("portfolio '%s' not found", name)
	}
	return f.stats, nil
}

type fakeRebalanceService struct {
	plan    *models.RebalancePlan
	err     error
	lastOpt interfaces.RebalanceOptions
}

func (f *fakeRebalanceService) Rebalance(_ context.Context, _ string, options interfaces.RebalanceOptions) (*models.RebalancePlan, error) {
	f.lastOpt = options
	return f.plan, f.err
}

type fakeRecStore struct {
	plans []*models.RebalancePlan
}

func (f *fakeRecStore) SavePlan(_ context.Context, plan *models.RebalancePlan) error {
	f.plans = append(f.plans, plan)
	return nil
}

func (f *fakeRecStore) ListPlans(_ context.Context, _ string, limit int) ([]*models.RebalancePlan, error) {
	if limit > 0 && limit < len(f.plans) {
		return f.plans[:limit], nil
	}
	return f.plans, nil
}

type fakeStorageManager struct {
	recs *fakeRecStore
}

func (f *fakeStorageManager) PortfolioStorage() interfaces.PortfolioStorage { return nil }
func (f *fakeStorageManager) TargetStorage() interfaces.TargetStorage       { return nil }
func (f *fakeStorageManager) MarketStorage() interfaces.MarketStorage       { return nil }
func (f *fakeStorageManager) RecommendationStorage() interfaces.RecommendationStorage {
	return f.recs
}
func (f *fakeStorageManager) KeyValueStorage() interfaces.KeyValueStorage { return nil }
func (f *fakeStorageManager) Close() error                                { return nil }

var (
	_ interfaces.PortfolioService      = (*fakePortfolioService)(nil)
	_ interfaces.PositionService       = (*fakePositionService)(nil)
	_ interfaces.RiskService           = (*fakeRiskService)(nil)
	_ interfaces.RebalanceService      = (*fakeRebalanceService)(nil)
	_ interfaces.StorageManager        = (*fakeStorageManager)(nil)
	_ interfaces.RecommendationStorage = (*fakeRecStore)(nil)
)

type testEnv struct {
	handler    http.Handler
	portfolios *fakePortfolioService
	rebalance  *fakeRebalanceService
	recs       *fakeRecStore
	config     *common.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	config := common.NewDefaultConfig()
	portfolios := &fakePortfolioService{
		portfolios: map[string]*models.Portfolio{
			"growth": {Name: "growth", CashBalance: 500, Holdings: []models.Holding{
				{Ticker: "VAS", Units: 100, MarketValue: 9000},
			}},
		},
		targets: map[string]*models.TargetAllocations{},
	}
	rebalanceService := &fakeRebalanceService{
		plan: &models.RebalancePlan{
			PortfolioName: "growth",
			Sells:         []models.Action{},
			Buys:          []models.Action{},
		},
	}
	recs := &fakeRecStore{}

	a := &app.App{
		Config: config,
		Logger: common.NewSilentLogger(),
		Storage: &fakeStorageManager{
			recs: recs,
		},
		PortfolioService: portfolios,
		PositionService: &fakePositionService{snapshot: &models.PositionSnapshot{
			PortfolioName: "growth",
			TotalValue:    9500,
			Positions:     []models.Position{{Ticker: "VAS", MarketValue: 9000}},
		}},
		RiskService:      &fakeRiskService{stats: &models.RiskStats{PortfolioName: "growth", HHI: 10000}},
		RebalanceService: rebalanceService,
	}

	srv := NewServer(a)
	return &testEnv{
		handler:    srv.Handler(),
		portfolios: portfolios,
		rebalance:  rebalanceService,
		recs:       recs,
		config:     config,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleVersion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodDelete, "/api/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Allow"))
}

func TestHandlePortfolioList(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolios", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "growth")
}

func TestHandlePortfolioGet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolios/growth", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"positions"`)
}

func TestHandlePortfolioGet_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolios/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlePortfolioUpsert(t *testing.T) {
	env := newTestEnv(t)

	body := `{"holdings":[{"ticker":"BHP","units":10,"avg_cost":40}],"cash_balance":250,"currency":"AUD"}`
	rec := env.do(http.MethodPut, "/api/portfolios/income", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, env.portfolios.portfolios, "income")
}

func TestHandlePortfolioUpsert_BadJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/api/portfolios/income", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTargets_PutAndGet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/api/portfolios/growth/targets", `{"targets":{"VAS":60,"BHP":40}}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/portfolios/growth/targets", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"VAS":60`)
}

func TestHandleTargets_EmptyRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPut, "/api/portfolios/growth/targets", `{"targets":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRisk(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolios/growth/risk", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hhi"`)
}

func TestHandleChart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolios/growth/chart", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotZero(t, rec.Body.Len())
}

func TestHandleRebalance(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/portfolios/growth/rebalance", `{"investment_amount":500,"max_actions":3,"use_advisor":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 500.0, env.rebalance.lastOpt.InvestmentAmount)
	assert.Equal(t, 3, env.rebalance.lastOpt.MaxActions)
	assert.True(t, env.rebalance.lastOpt.UseAdvisor)
}

func TestHandleRebalance_EmptyBodyAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/portfolios/growth/rebalance", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.rebalance.lastOpt.MaxActions)
}

func TestHandleRebalance_NegativeInvestment(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/portfolios/growth/rebalance", `{"investment_amount":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRebalance_NonPositiveMaxActions(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/portfolios/growth/rebalance", `{"max_actions":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRebalance_UnknownPortfolio(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/portfolios/missing/rebalance", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRebalance_GetRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolios/growth/rebalance", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRecommendations(t *testing.T) {
	env := newTestEnv(t)
	env.recs.plans = []*models.RebalancePlan{
		{ID: "plan-1", PortfolioName: "growth"},
		{ID: "plan-2", PortfolioName: "growth"},
	}

	rec := env.do(http.MethodGet, "/api/portfolios/growth/recommendations?limit=1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plan-1")
	assert.NotContains(t, rec.Body.String(), "plan-2")
}

func TestHandleRecommendations_BadLimit(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolios/growth/recommendations?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/portfolios/growth/recommendations?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSubpath(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/portfolios/growth/bogus", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShutdown_ForbiddenInProduction(t *testing.T) {
	env := newTestEnv(t)
	env.config.Environment = "production"

	rec := env.do(http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBearerAuth(t *testing.T) {
	env := newTestEnv(t)
	env.config.Auth.JWTSecret = "test-secret"

	// Public paths stay open.
	rec := env.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Protected path without a token is rejected.
	rec = env.do(http.MethodGet, "/api/portfolios", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A signed token passes.
	token, err := SignToken("tester", env.config)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolios", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Garbage tokens are rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/portfolios", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodOptions, "/api/portfolios", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCorrelationIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Correlation-ID"))
}
