package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitplay.app/gametime/internal/features/ledger"
)

const childID = "6e1f8a2b-3c4d-4e5f-9a0b-1c2d3e4f5a6b"

type balanceFunc func(ctx context.Context, userID string) (*ledger.Balance, error)

func (f balanceFunc) GetBalance(ctx context.Context, userID string) (*ledger.Balance, error) {
	return f(ctx, userID)
}

func TestHubPublishSkipsFullClients(t *testing.T) {
	hub := NewHub()
	c := &Client{send: make(chan []byte, 1)}
	hub.Register(childID, c)
	assert.Equal(t, 1, hub.Connections(childID))

	hub.PublishBalance(ledger.Balance{UserID: childID, EarnedMinutes: 1})
	hub.PublishBalance(ledger.Balance{UserID: childID, EarnedMinutes: 2})
	hub.PublishBalance(ledger.Balance{UserID: "someone-else"})
	require.Len(t, c.send, 1)

	var got ledger.Balance
	require.NoError(t, json.Unmarshal(<-c.send, &got))
	assert.Equal(t, int64(1), got.EarnedMinutes)

	hub.Unregister(childID, c)
	hub.Unregister(childID, c)
	assert.Equal(t, 0, hub.Connections(childID))
}

func TestServeBalance(t *testing.T) {
	hub := NewHub()
	h := NewHandler(hub, balanceFunc(func(_ context.Context, id string) (*ledger.Balance, error) {
		return &ledger.Balance{UserID: id, BalanceMinutes: decimal.NewFromInt(30)}, nil
	}), nil)

	r := chi.NewRouter()
	r.Get("/ws/children/{childID}/balance", h.ServeBalance)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/children/" + childID + "/balance"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first ledger.Balance
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "30", first.BalanceMinutes.String())

	require.Eventually(t, func() bool { return hub.Connections(childID) == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.PublishBalance(ledger.Balance{UserID: childID, BalanceMinutes: decimal.NewFromInt(25)})

	var next ledger.Balance
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "25", next.BalanceMinutes.String())
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(), nil, []string{"https://app.example.com"})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, h.upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.upgrader.CheckOrigin(req))
}
