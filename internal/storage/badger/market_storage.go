package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/models"
)

type marketStorage struct {
	store  *Store
	logger *common.Logger
}

// NewMarketStorage creates a new MarketStorage backed by BadgerHold.
func NewMarketStorage(store *Store, logger *common.Logger) *marketStorage {
	return &marketStorage{store: store, logger: logger}
}

func (s *marketStorage) SaveSnapshot(_ context.Context, snapshot *models.MarketSnapshot) error {
	if snapshot.Ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	snapshot.Ticker = strings.ToUpper(snapshot.Ticker)
	snapshot.LastUpdated = time.Now()

	if err := s.store.db.Upsert(snapshot.Ticker, snapshot); err != nil {
		return fmt.Errorf("failed to save market snapshot for %s: %w", snapshot.Ticker, err)
	}
	s.logger.Debug().Str("ticker", snapshot.Ticker).Int("bars", len(snapshot.Bars)).Msg("Market snapshot saved")
	return nil
}

func (s *marketStorage) GetSnapshot(_ context.Context, ticker string) (*models.MarketSnapshot, error) {
	var snapshot models.MarketSnapshot
	err := s.store.db.Get(strings.ToUpper(ticker), &snapshot)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("market snapshot for '%s' not found", ticker)
		}
		return nil, fmt.Errorf("failed to get market snapshot for '%s': %w", ticker, err)
	}
	return &snapshot, nil
}
