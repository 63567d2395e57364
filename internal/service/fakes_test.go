package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/alanyoungcy/strikearb/internal/domain"
	"github.com/alanyoungcy/strikearb/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 1}
}

type fakeSource struct {
	name  string
	price float64
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) SpotPrice(_ context.Context, _ string) (domain.SpotQuote, error) {
	f.calls++
	if f.err != nil {
		return domain.SpotQuote{}, f.err
	}
	return domain.SpotQuote{Price: f.price}, nil
}

type fakeVenue struct {
	pages  map[string]domain.MarketPage // cursor -> page
	quotes map[string]domain.Quote
	calls  int
}

func (f *fakeVenue) ListOpenMarkets(_ context.Context, _ string, cursor string, _ int) (domain.MarketPage, error) {
	f.calls++
	p, ok := f.pages[cursor]
	if !ok {
		return domain.MarketPage{}, errors.New("unknown cursor")
	}
	return p, nil
}

func (f *fakeVenue) GetQuote(_ context.Context, marketID string) (domain.Quote, error) {
	q, ok := f.quotes[marketID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}
