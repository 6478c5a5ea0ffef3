package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/models"
)

type targetStorage struct {
	store  *Store
	logger *common.Logger
}

// NewTargetStorage creates a new TargetStorage backed by BadgerHold.
func NewTargetStorage(store *Store, logger *common.Logger) *targetStorage {
	return &targetStorage{store: store, logger: logger}
}

func (s *targetStorage) SaveTargets(_ context.Context, targets *models.TargetAllocations) error {
	if targets.PortfolioName == "" {
		return fmt.Errorf("portfolio name is required")
	}
	targets.UpdatedAt = time.Now()

	if err := s.store.db.Upsert(targets.PortfolioName, targets); err != nil {
		return fmt.Errorf("failed to save targets: %w", err)
	}
	s.logger.Debug().Str("portfolio", targets.PortfolioName).Int("count", len(targets.Targets)).Msg("Targets saved")
	return nil
}

func (s *targetStorage) GetTargets(_ context.Context, portfolioName string) (*models.TargetAllocations, error) {
	var targets models.TargetAllocations
	err := s.store.db.Get(portfolioName, &targets)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("targets for '%s' not found", portfolioName)
		}
		return nil, fmt.Errorf("failed to get targets for '%s': %w", portfolioName, err)
	}
	return &targets, nil
}
