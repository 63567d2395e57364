package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

func newTestKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestListOpenMarkets_MapsStrikes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/markets", r.URL.Path)
		assert.Equal(t, "KXBTCD", r.URL.Query().Get("series_ticker"))
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		assert.Empty(t, r.Header.Get("KALSHI-ACCESS-SIGNATURE"))

		_ = json.NewEncoder(w).Encode(KalshiMarketsResponse{
			Cursor: "next",
			Markets: []KalshiMarket{
				{Ticker: "KXBTCD-T65000", StrikeType: "greater", FloorStrike: 65000, CloseTime: "2026-10-22T21:00:00Z"},
				{Ticker: "KXBTCD-T60000", StrikeType: "less_or_equal", CapStrike: 60000, ExpirationTime: "2026-10-23T21:00:00Z"},
				{Ticker: "KXBTC-B65000", StrikeType: "between", FloorStrike: 64500, CapStrike: 65500},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/trade-api/v2", "")
	page, err := c.ListOpenMarkets(context.Background(), "KXBTCD", "abc", 50)
	require.NoError(t, err)

	assert.Equal(t, "next", page.NextCursor)
	require.Len(t, page.Markets, 3)

	assert.Equal(t, domain.StrikeAbove, page.Markets[0].StrikeType)
	assert.Equal(t, 65000.0, page.Markets[0].Strike)
	assert.Equal(t, time.Date(2026, 10, 22, 21, 0, 0, 0, time.UTC), page.Markets[0].ExpiresAt)

	assert.Equal(t, domain.StrikeBelow, page.Markets[1].StrikeType)
	assert.Equal(t, 60000.0, page.Markets[1].Strike)
	assert.Equal(t, time.Date(2026, 10, 23, 21, 0, 0, 0, time.UTC), page.Markets[1].ExpiresAt)

	assert.False(t, page.Markets[2].StrikeType.Valid())
}

func TestGetQuote_DerivesAskFromNoBids(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/KXBTCD-T65000/orderbook", r.URL.Path)
		_, _ = w.Write([]byte(`{"orderbook":{"yes":[[50,10],[53,4],[54,0]],"no":[[40,3],[45,7]]}}`))
	}))
	defer srv.Close()

	q, err := NewClient(srv.URL, "").GetQuote(context.Background(), "KXBTCD-T65000")
	require.NoError(t, err)
	assert.InDelta(t, 0.53, q.BestBid, 1e-9)
	assert.InDelta(t, 0.55, q.BestAsk, 1e-9)
	assert.True(t, q.TwoSided())
}

func TestGetQuote_OneSidedBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderbook":{"yes":[[12,5]],"no":null}}`))
	}))
	defer srv.Close()

	q, err := NewClient(srv.URL, "").GetQuote(context.Background(), "X")
	require.NoError(t, err)
	assert.InDelta(t, 0.12, q.BestBid, 1e-9)
	assert.Zero(t, q.BestAsk)
	assert.False(t, q.TwoSided())
}

func TestPlaceOrder_SignsAndSendsClientOrderID(t *testing.T) {
	key, pemBytes := newTestKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/trade-api/v2/portfolio/orders", r.URL.Path)
		assert.Equal(t, "key-id", r.Header.Get("KALSHI-ACCESS-KEY"))

		ts := r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		sig, err := base64.StdEncoding.DecodeString(r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		assert.NoError(t, err)
		digest := sha256.Sum256([]byte(ts + "POST" + "/trade-api/v2/portfolio/orders"))
		assert.NoError(t, rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig,
			&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}))

		var order KalshiOrder
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&order))
		assert.Equal(t, "idem-1", order.ClientOrderID)
		assert.Equal(t, "no", order.Side)
		assert.Equal(t, "buy", order.Action)
		assert.Equal(t, int64(10), order.Count)
		if assert.NotNil(t, order.NoPrice) {
			assert.Equal(t, int64(47), *order.NoPrice)
		}
		assert.Nil(t, order.YesPrice)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order":{"order_id":"ord-9","status":"resting","taker_fill_count":0}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/trade-api/v2", "key-id")
	require.NoError(t, c.SetRSAPrivateKey(pemBytes))
	assert.True(t, c.CanTrade())

	res, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		MarketID: "KXBTCD-T65000", Side: domain.SideNo, Size: 10, LimitPrice: 0.47, IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-9", res.OrderID)
	assert.Equal(t, "resting", res.VenueStatus)
}

func TestPlaceOrder_RequiresKey(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "")
	_, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		MarketID: "X", Side: domain.SideYes, Size: 1, LimitPrice: 0.5, IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPlaceOrder_RejectsOutOfRangePrice(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "")
	_, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		MarketID: "X", Side: domain.SideYes, Size: 1, LimitPrice: 1.0, IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestPlaceOrder_CancelledOnArrival(t *testing.T) {
	_, pemBytes := newTestKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order":{"order_id":"ord-1","status":"canceled"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-id")
	require.NoError(t, c.SetRSAPrivateKey(pemBytes))
	_, err := c.PlaceOrder(context.Background(), domain.OrderRequest{
		MarketID: "X", Side: domain.SideYes, Size: 1, LimitPrice: 0.5, IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestAPIError_Classification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":"service_unavailable","message":"try later"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").GetQuote(context.Background(), "X")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.HTTPStatus())
	assert.Equal(t, "service_unavailable", apiErr.Code)
	assert.True(t, apiErr.IsRetryable())
	assert.False(t, (&APIError{StatusCode: 400}).IsRetryable())
	assert.True(t, (&APIError{StatusCode: 429}).IsRetryable())
}

func TestPortfolio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/portfolio/balance":
			_, _ = w.Write([]byte(`{"balance":123456}`))
		case "/portfolio/positions":
			_, _ = w.Write([]byte(`{"market_positions":[{"ticker":"A","position":5,"market_exposure":275,"realized_pnl":-40},{"ticker":"B","position":0}]}`))
		case "/portfolio/fills":
			assert.Equal(t, "2", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"fills":[{"trade_id":"t1","order_id":"o1","ticker":"A","side":"no","count":5,"yes_price":45,"no_price":55,"created_time":"2026-10-15T12:00:00Z"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ctx := context.Background()

	bal, err := c.Balance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1234.56, bal, 1e-9)

	pos, err := c.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, pos, 1)
	assert.Equal(t, "A", pos[0].MarketID)
	assert.InDelta(t, 2.75, pos[0].Exposure, 1e-9)
	assert.InDelta(t, -0.40, pos[0].RealizedPnL, 1e-9)

	fills, err := c.Fills(ctx, 2)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.SideNo, fills[0].Side)
	assert.InDelta(t, 0.55, fills[0].Price, 1e-9)
}

func TestCentsConversion(t *testing.T) {
	assert.Equal(t, int64(55), dollarsToCents(0.55))
	assert.Equal(t, int64(29), dollarsToCents(0.29))
	assert.Equal(t, int64(57), dollarsToCents(0.565+1e-9))
	assert.InDelta(t, 0.07, centsToDollars(7), 1e-12)
}
