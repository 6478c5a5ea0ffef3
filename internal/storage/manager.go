// Package storage provides the top-level StorageManager over a single
// BadgerHold database.
package storage

import (
	"fmt"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/storage/badger"
)

// Manager implements interfaces.StorageManager.
type Manager struct {
	store           *badger.Store
	portfolios      interfaces.PortfolioStorage
	targets         interfaces.TargetStorage
	market          interfaces.MarketStorage
	recommendations interfaces.RecommendationStorage
	kv              interfaces.KeyValueStorage
	logger          *common.Logger
}

// NewManager opens the BadgerHold database and wires the typed stores.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	logger.Info().Str("path", config.Storage.Path).Msg("Storage manager initialized")

	return &Manager{
		store:           store,
		portfolios:      badger.NewPortfolioStorage(store, logger),
		targets:         badger.NewTargetStorage(store, logger),
		market:          badger.NewMarketStorage(store, logger),
		recommendations: badger.NewRecommendationStorage(store, logger),
		kv:              badger.NewKVStorage(store, logger),
		logger:          logger,
	}, nil
}

func (m *Manager) PortfolioStorage() interfaces.PortfolioStorage {
	return m.portfolios
}

func (m *Manager) TargetStorage() interfaces.TargetStorage {
	return m.targets
}

func (m *Manager) MarketStorage() interfaces.MarketStorage {
	return m.market
}

func (m *Manager) RecommendationStorage() interfaces.RecommendationStorage {
	return m.recommendations
}

func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

func (m *Manager) Close() error {
	return m.store.Close()
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
