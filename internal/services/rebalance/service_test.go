package rebalance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

type fakePositions struct {
	snapshot *models.PositionSnapshot
	err      error
}

func (f *fakePositions) GetSnapshot(_ context.Context, _ string) (*models.PositionSnapshot, error) {
	return f.snapshot, f.err
}

type fakeAdvisor struct {
	proposal *models.AdvisorProposal
	err      error
	called   bool
}

func (f *fakeAdvisor) Available() bool { return true }

func (f *fakeAdvisor) ProposeRebalance(_ context.Context, _ *interfaces.AdvisorRequest) (*models.AdvisorProposal, error) {
	f.called = true
	return f.proposal, f.err
}

type fakeRecStore struct {
	saved []*models.RebalancePlan
}

func (f *fakeRecStore) SavePlan(_ context.Context, plan *models.RebalancePlan) error {
	f.saved = append(f.saved, plan)
	return nil
}

func (f *fakeRecStore) ListPlans(_ context.Context, _ string, _ int) ([]*models.RebalancePlan, error) {
	return f.saved, nil
}

func testRebalanceConfig() common.RebalanceConfig {
	return common.RebalanceConfig{
		NoiseThreshold:          10,
		DefaultMaxActions:       5,
		SellPercentileThreshold: 80,
		BuyPercentileThreshold:  20,
		MaxTimingTickers:        10,
		AdvisorEnabled:          true,
		AdvisorTimeout:          "5s",
	}
}

// testSnapshot is a 10k portfolio with one overweight, one underweight, and
// one on-target position.
func testSnapshot() *models.PositionSnapshot {
	return &models.PositionSnapshot{
		PortfolioName: "growth",
		TotalValue:    10000,
		Positions: []models.Position{
			{Ticker: "OVER", CurrentAllocationPct: pct(40), TargetAllocationPct: pct(25), MarketValue: 4000},
			{Ticker: "UNDER", CurrentAllocationPct: pct(10), TargetAllocationPct: pct(25), MarketValue: 1000},
			{Ticker: "FLAT", CurrentAllocationPct: pct(25), TargetAllocationPct: pct(25), MarketValue: 2500},
		},
		TakenAt: time.Now(),
	}
}

func testMarket() *flakyMarket {
	return &flakyMarket{
		snapshots: map[string]*models.MarketSnapshot{
			// OVER is historically expensive (90th percentile).
			"OVER": {Ticker: "OVER", CurrentPrice: 95, Bars: barsWithCloses(10, 20, 30, 40, 50, 60, 70, 80, 90, 100)},
			// UNDER is historically cheap (10th percentile).
			"UNDER": {Ticker: "UNDER", CurrentPrice: 10, Bars: barsWithCloses(10, 20, 30, 40, 50, 60, 70, 80, 90, 100)},
		},
	}
}

func newTestService(advisor interfaces.AdvisorClient, recs interfaces.RecommendationStorage) *Service {
	return NewService(
		&fakePositions{snapshot: testSnapshot()},
		testMarket(),
		nil,
		advisor,
		recs,
		testRebalanceConfig(),
		common.NewSilentLogger(),
	)
}

func TestRebalance_DeterministicPipeline(t *testing.T) {
	recs := &fakeRecStore{}
	service := newTestService(nil, recs)

	plan, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{})
	require.NoError(t, err)

	// OVER: 15% of 10k overweight at the 90th percentile -> sell 1500.
	require.Len(t, plan.Sells, 1)
	assert.Equal(t, "OVER", plan.Sells[0].Ticker)
	assert.Equal(t, 1500.0, plan.Sells[0].Amount)
	assert.Equal(t, models.ActionSell, plan.Sells[0].Type)

	// UNDER: 15% underweight at the 10th percentile, fully funded by the sell.
	require.Len(t, plan.Buys, 1)
	assert.Equal(t, "UNDER", plan.Buys[0].Ticker)
	assert.Equal(t, 1500.0, plan.Buys[0].Amount)

	assert.Equal(t, 1500.0, plan.TotalSellAmount)
	assert.Equal(t, 1500.0, plan.TotalBuyAmount)
	assert.Equal(t, 0.0, plan.NetCashFlow)
	assert.False(t, plan.AdvisorApplied)
	assert.NotEmpty(t, plan.ID)

	// The plan was persisted.
	require.Len(t, recs.saved, 1)
	assert.Equal(t, plan.ID, recs.saved[0].ID)
}

func TestRebalance_Deterministic_SameInputsSameActions(t *testing.T) {
	service := newTestService(nil, nil)

	first, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{})
	require.NoError(t, err)
	second, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.Sells, second.Sells)
	assert.Equal(t, first.Buys, second.Buys)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRebalance_EmptyPortfolioNeutralPlan(t *testing.T) {
	service := NewService(
		&fakePositions{snapshot: &models.PositionSnapshot{PortfolioName: "empty"}},
		testMarket(),
		nil, nil, nil,
		testRebalanceConfig(),
		common.NewSilentLogger(),
	)

	plan, err := service.Rebalance(context.Background(), "empty", interfaces.RebalanceOptions{})
	require.NoError(t, err)

	assert.NotNil(t, plan.Sells)
	assert.NotNil(t, plan.Buys)
	assert.Empty(t, plan.Sells)
	assert.Empty(t, plan.Buys)
	assert.Equal(t, 0.0, plan.TotalSellAmount)
	assert.Equal(t, 0.0, plan.TotalBuyAmount)
	assert.Equal(t, 0.0, plan.NetCashFlow)
}

func TestRebalance_InvalidOptions(t *testing.T) {
	service := newTestService(nil, nil)

	_, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{InvestmentAmount: -100})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{MaxActions: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRebalance_InvestmentAmountExpandsFunding(t *testing.T) {
	market := testMarket()
	// Make OVER's timing neutral so the sell side falls back but the buy side
	// must be funded by investment cash alone.
	market.snapshots["OVER"].CurrentPrice = 50

	service := NewService(
		&fakePositions{snapshot: testSnapshot()},
		market,
		nil, nil, nil,
		testRebalanceConfig(),
		common.NewSilentLogger(),
	)

	plan, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{InvestmentAmount: 600})
	require.NoError(t, err)

	// Funding invariant: buys never exceed sells plus cash.
	assert.LessOrEqual(t, plan.TotalBuyAmount, plan.TotalSellAmount+plan.CashAvailable+0.01)
}

func TestRebalance_AdvisorOverlayApplied(t *testing.T) {
	advisor := &fakeAdvisor{
		proposal: &models.AdvisorProposal{
			Actions: []models.ProposedAction{
				{Action: "SELL", Ticker: "OVER", Amount: 1000, Confidence: 0.9, Reason: "Trim into strength."},
				{Action: "BUY", Ticker: "UNDER", Amount: 2000, Confidence: 0.8},
			},
			Summary: "Trim OVER, add to UNDER.",
		},
	}
	service := newTestService(advisor, nil)

	plan, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{UseAdvisor: true})
	require.NoError(t, err)

	assert.True(t, advisor.called)
	assert.True(t, plan.AdvisorApplied)
	assert.Equal(t, "Trim OVER, add to UNDER.", plan.AdvisorSummary)

	require.Len(t, plan.Sells, 1)
	assert.Equal(t, 1000.0, plan.Sells[0].Amount)

	// Proposed 2000 buy capped to sell proceeds (1000) plus zero cash.
	require.Len(t, plan.Buys, 1)
	assert.Equal(t, 1000.0, plan.Buys[0].Amount)
	assert.LessOrEqual(t, plan.TotalBuyAmount, plan.TotalSellAmount+plan.CashAvailable+0.01)
}

func TestRebalance_AdvisorNotRequestedNotCalled(t *testing.T) {
	advisor := &fakeAdvisor{proposal: &models.AdvisorProposal{}}
	service := newTestService(advisor, nil)

	plan, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{})
	require.NoError(t, err)

	assert.False(t, advisor.called)
	assert.False(t, plan.AdvisorApplied)
}

func TestRebalance_AdvisorFailureKeepsDeterministicResult(t *testing.T) {
	advisor := &fakeAdvisor{err: errors.New("model overloaded")}
	service := newTestService(advisor, nil)

	plan, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{UseAdvisor: true})
	require.NoError(t, err)

	assert.True(t, advisor.called)
	assert.False(t, plan.AdvisorApplied)
	require.Len(t, plan.Sells, 1)
	assert.Equal(t, 1500.0, plan.Sells[0].Amount)
}

func TestRebalance_AdvisorGarbageProposalNotApplied(t *testing.T) {
	advisor := &fakeAdvisor{
		proposal: &models.AdvisorProposal{
			Actions: []models.ProposedAction{
				{Action: "SELL", Ticker: "NOT_IN_PORTFOLIO", Amount: 999},
				{Action: "HOLD", Ticker: "OVER", Amount: 100},
				{Action: "BUY", Ticker: "UNDER", Amount: -5},
			},
		},
	}
	service := newTestService(advisor, nil)

	plan, err := service.Rebalance(context.Background(), "growth", interfaces.RebalanceOptions{UseAdvisor: true})
	require.NoError(t, err)

	assert.False(t, plan.AdvisorApplied)
	require.Len(t, plan.Sells, 1)
	assert.Equal(t, "OVER", plan.Sells[0].Ticker)
}

func TestClampSellsToPosition(t *testing.T) {
	positions := map[string]models.Position{
		"SMALL": {Ticker: "SMALL", MarketValue: 120},
	}
	sells := []models.Candidate{
		{Ticker: "SMALL", Amount: -500},
		{Ticker: "UNKNOWN", Amount: -300},
	}

	capped := clampSellsToPosition(sells, positions)

	require.Len(t, capped, 2)
	assert.Equal(t, -120.0, capped[0].Amount)
	assert.Equal(t, -300.0, capped[1].Amount)
}

var (
	_ interfaces.PositionService       = (*fakePositions)(nil)
	_ interfaces.AdvisorClient         = (*fakeAdvisor)(nil)
	_ interfaces.RecommendationStorage = (*fakeRecStore)(nil)
)
