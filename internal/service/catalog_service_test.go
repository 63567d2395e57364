package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

func TestOpenMarkets_PagesAndFilters(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	later := now.Add(6 * time.Hour)

	venue := &fakeVenue{pages: map[string]domain.MarketPage{
		"": {
			Markets: []domain.Market{
				{ID: "KXBTCD-A", StrikeType: domain.StrikeAbove, Strike: 65000, ExpiresAt: later},
				{ID: "KXBTCD-B", StrikeType: "between", Strike: 65000, ExpiresAt: later},
			},
			NextCursor: "p2",
		},
		"p2": {
			Markets: []domain.Market{
				{ID: "KXBTCD-C", StrikeType: domain.StrikeBelow, Strike: 64000, ExpiresAt: later},
				{ID: "KXBTCD-D", StrikeType: domain.StrikeAbove, Strike: 66000, ExpiresAt: now.Add(10 * time.Minute)},
				{ID: "KXBTCD-E", StrikeType: domain.StrikeAbove, ExpiresAt: later},
			},
		},
	}}

	svc := NewCatalogService(venue, CatalogConfig{
		PageLimit:   100,
		MaxPages:    10,
		MinHorizon:  30 * time.Minute,
		Underlyings: map[string]string{"KXBTCD": "BTC-USD"},
	}, noRetry(), discardLogger())
	svc.now = func() time.Time { return now }

	markets, skipped, err := svc.OpenMarkets(context.Background(), "KXBTCD")
	require.NoError(t, err)
	assert.Equal(t, 2, venue.calls)

	require.Len(t, markets, 2)
	assert.Equal(t, "KXBTCD-A", markets[0].ID)
	assert.Equal(t, "BTC-USD", markets[0].Underlying)
	assert.Equal(t, "KXBTCD-C", markets[1].ID)

	require.Len(t, skipped, 3)
	ids := []string{skipped[0].MarketID, skipped[1].MarketID, skipped[2].MarketID}
	assert.Equal(t, []string{"KXBTCD-B", "KXBTCD-D", "KXBTCD-E"}, ids)
	for _, s := range skipped {
		assert.Equal(t, "catalog", s.Stage)
	}
}

func TestOpenMarkets_StopsAtPageCap(t *testing.T) {
	later := time.Now().Add(24 * time.Hour)
	venue := &fakeVenue{pages: map[string]domain.MarketPage{
		"":   {Markets: []domain.Market{{ID: "M1", StrikeType: domain.StrikeAbove, Strike: 1, ExpiresAt: later}}, NextCursor: "p2"},
		"p2": {Markets: []domain.Market{{ID: "M2", StrikeType: domain.StrikeAbove, Strike: 1, ExpiresAt: later}}, NextCursor: "p3"},
		"p3": {Markets: []domain.Market{{ID: "M3", StrikeType: domain.StrikeAbove, Strike: 1, ExpiresAt: later}}},
	}}

	svc := NewCatalogService(venue, CatalogConfig{
		MaxPages:    2,
		Underlyings: map[string]string{"S": "BTC-USD"},
	}, noRetry(), discardLogger())

	markets, _, err := svc.OpenMarkets(context.Background(), "S")
	require.NoError(t, err)
	assert.Equal(t, 2, venue.calls)
	assert.Len(t, markets, 2)
}

func TestOpenMarkets_UnknownSeries(t *testing.T) {
	svc := NewCatalogService(&fakeVenue{}, CatalogConfig{}, noRetry(), discardLogger())
	_, _, err := svc.OpenMarkets(context.Background(), "NOPE")
	require.Error(t, err)
}

func TestOpenMarkets_VenueErrorSurfaces(t *testing.T) {
	venue := &fakeVenue{pages: map[string]domain.MarketPage{}}
	svc := NewCatalogService(venue, CatalogConfig{Underlyings: map[string]string{"S": "BTC-USD"}}, noRetry(), discardLogger())
	_, _, err := svc.OpenMarkets(context.Background(), "S")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 1")
}
