package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/models"
)

type fakeMarketStorage struct {
	snapshots map[string]*models.MarketSnapshot
	saves     int
}

func (f *fakeMarketStorage) SaveSnapshot(_ context.Context, s *models.MarketSnapshot) error {
	f.snapshots[s.Ticker] = s
	f.saves++
	return nil
}

func (f *fakeMarketStorage) GetSnapshot(_ context.Context, ticker string) (*models.MarketSnapshot, error) {
	s, ok := f.snapshots[ticker]
	if !ok {
		return nil, fmt.Errorf("market snapshot for '%s' not found", ticker)
	}
	return s, nil
}

type fakeClient struct {
	price    float64
	closes   []float64
	quoteErr error
	calls    int
}

func (f *fakeClient) GetQuote(_ context.Context, ticker string) (*models.Quote, error) {
	f.calls++
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &models.Quote{Ticker: ticker, Price: f.price, Timestamp: time.Now()}, nil
}

func (f *fakeClient) GetEOD(_ context.Context, ticker string, _ ...interfaces.EODOption) (*models.EODResponse, error) {
	bars := make([]models.EODBar, len(f.closes))
	for i, c := range f.closes {
		bars[i] = models.EODBar{Close: c}
	}
	return &models.EODResponse{Ticker: ticker, Data: bars}, nil
}

var (
	_ interfaces.MarketStorage    = (*fakeMarketStorage)(nil)
	_ interfaces.MarketDataClient = (*fakeClient)(nil)
)

func newFakes() (*fakeMarketStorage, *fakeClient) {
	storage := &fakeMarketStorage{snapshots: map[string]*models.MarketSnapshot{}}
	client := &fakeClient{price: 50, closes: []float64{50, 48, 52}}
	return storage, client
}

func TestGetSnapshot_FreshCacheServedWithoutFetch(t *testing.T) {
	storage, client := newFakes()
	now := time.Now()
	storage.snapshots["VAS"] = &models.MarketSnapshot{
		Ticker:       "VAS",
		CurrentPrice: 90,
		QuotedAt:     now,
		LastUpdated:  now,
	}

	service := NewService(storage, client, common.NewSilentLogger())
	snapshot, err := service.GetSnapshot(context.Background(), "VAS")
	require.NoError(t, err)

	assert.Equal(t, 90.0, snapshot.CurrentPrice)
	assert.Equal(t, 0, client.calls)
}

func TestGetSnapshot_StaleCacheRefetched(t *testing.T) {
	storage, client := newFakes()
	old := time.Now().Add(-48 * time.Hour)
	storage.snapshots["VAS"] = &models.MarketSnapshot{
		Ticker:       "VAS",
		CurrentPrice: 90,
		QuotedAt:     old,
		LastUpdated:  old,
	}

	service := NewService(storage, client, common.NewSilentLogger())
	snapshot, err := service.GetSnapshot(context.Background(), "VAS")
	require.NoError(t, err)

	assert.Equal(t, 50.0, snapshot.CurrentPrice)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, 1, storage.saves)
}

func TestGetSnapshot_ProviderFailureServesStale(t *testing.T) {
	storage, client := newFakes()
	client.quoteErr = fmt.Errorf("provider down")
	old := time.Now().Add(-48 * time.Hour)
	storage.snapshots["VAS"] = &models.MarketSnapshot{
		Ticker:       "VAS",
		CurrentPrice: 90,
		QuotedAt:     old,
		LastUpdated:  old,
	}

	service := NewService(storage, client, common.NewSilentLogger())
	snapshot, err := service.GetSnapshot(context.Background(), "VAS")
	require.NoError(t, err)

	assert.Equal(t, 90.0, snapshot.CurrentPrice)
}

func TestGetSnapshot_ProviderFailureNoCacheErrors(t *testing.T) {
	storage, client := newFakes()
	client.quoteErr = fmt.Errorf("provider down")

	service := NewService(storage, client, common.NewSilentLogger())
	_, err := service.GetSnapshot(context.Background(), "VAS")
	assert.Error(t, err)
}

func TestRefreshTickers_FailuresSkipped(t *testing.T) {
	storage, client := newFakes()

	service := NewService(storage, client, common.NewSilentLogger())
	err := service.RefreshTickers(context.Background(), []string{"VAS", "BHP"})
	require.NoError(t, err)

	assert.Equal(t, 2, storage.saves)
	assert.Contains(t, storage.snapshots, "VAS")
	assert.Contains(t, storage.snapshots, "BHP")
}
