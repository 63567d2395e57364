package domain

import "context"

// Venue lists contracts and quotes them. Implementations own their wire
// format and authentication.
type Venue interface {
	ListOpenMarkets(ctx context.Context, series, cursor string, limit int) (MarketPage, error)
	GetQuote(ctx context.Context, marketID string) (Quote, error)
}

// OrderPlacer submits orders. Only live cycles use it.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// PortfolioReader is an optional venue capability used to enrich snapshots.
type PortfolioReader interface {
	Balance(ctx context.Context) (float64, error)
	Positions(ctx context.Context) ([]Position, error)
	Fills(ctx context.Context, limit int) ([]Fill, error)
}

// PriceSource reports an independent spot price for an underlying.
type PriceSource interface {
	Name() string
	SpotPrice(ctx context.Context, underlying string) (SpotQuote, error)
}
