package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

type recommendationStorage struct {
	store  *Store
	logger *common.Logger
}

// NewRecommendationStorage creates a new RecommendationStorage backed by BadgerHold.
func NewRecommendationStorage(store *Store, logger *common.Logger) *recommendationStorage {
	return &recommendationStorage{store: store, logger: logger}
}

func (s *recommendationStorage) SavePlan(_ context.Context, plan *models.RebalancePlan) error {
	if plan.ID == "" {
		return fmt.Errorf("plan ID is required")
	}
	if err := s.store.db.Upsert(plan.ID, plan); err != nil {
		return fmt.Errorf("failed to save rebalance plan: %w", err)
	}
	s.logger.Debug().Str("plan", plan.ID).Str("portfolio", plan.PortfolioName).Msg("Rebalance plan saved")
	return nil
}

// ListPlans returns plans for a portfolio, most recent first. A limit of 0
// means no limit.
func (s *recommendationStorage) ListPlans(_ context.Context, portfolioName string, limit int) ([]*models.RebalancePlan, error) {
	var plans []models.RebalancePlan
	query := badgerhold.Where("PortfolioName").Eq(portfolioName).Index("PortfolioName")
	if err := s.store.db.Find(&plans, query); err != nil {
		return nil, fmt.Errorf("failed to list plans for '%s': %w", portfolioName, err)
	}

	sort.Slice(plans, func(i, j int) bool {
		return plans[i].GeneratedAt.After(plans[j].GeneratedAt)
	})

	if limit > 0 && len(plans) > limit {
		plans = plans[:limit]
	}

	result := make([]*models.RebalancePlan, len(plans))
	for i := range plans {
		result[i] = &plans[i]
	}
	return result, nil
}
