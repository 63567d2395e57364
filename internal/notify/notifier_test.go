package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

type recordSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordSender) Name() string { return r.name }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotify_FiltersEvents(t *testing.T) {
	s := &recordSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{EventAmbiguousOrder}, quiet())

	require.NoError(t, n.Notify(context.Background(), EventOrderConfirmed, "x", "y"))
	require.NoError(t, n.Notify(context.Background(), EventAmbiguousOrder, "z", "y"))
	assert.Equal(t, []string{"z"}, s.titles)
}

func TestNotify_OneFailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &recordSender{name: "bad", err: errors.New("boom")}
	good := &recordSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quiet())

	err := n.Notify(context.Background(), EventCycleError, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.titles, 1)
}

func TestCycleReport(t *testing.T) {
	s := &recordSender{name: "a"}
	n := NewNotifier([]Sender{s}, nil, quiet())

	snap := domain.PortfolioSnapshot{
		CycleID:          "c1",
		KillSwitchActive: true,
		AmbiguousOrders:  []domain.Order{{MarketID: "M", Side: domain.SideYes, Status: domain.OrderStatusAmbiguous}},
		RecentOrders: []domain.Order{
			{CycleID: "c1", MarketID: "N", Status: domain.OrderStatusConfirmed},
			{CycleID: "c0", MarketID: "O", Status: domain.OrderStatusConfirmed},
		},
	}
	require.NoError(t, n.CycleReport(context.Background(), snap))
	assert.Equal(t, []string{"Kill switch active", "Ambiguous orders", "Order confirmed"}, s.titles)
}

func TestTelegramSender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["chat_id"])
		assert.Equal(t, "*Title*\nbody", body["text"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewTelegramSender(srv.URL, "TOKEN", "42").Send(context.Background(), "Title", "body"))
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad"}`))
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
