package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/winzzers/internal/domain"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	if channel != domain.ChannelMarkets {
		return nil, io.EOF
	}
	return b.ch, nil
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestHubSendsSnapshotThenBroadcasts(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1)}
	snapshot := func() []domain.Market {
		return []domain.Market{{ID: 1, State: domain.MarketStateOpen, OutcomeNames: []string{"Yes", "No"}}}
	}
	hub := NewHub(bus, snapshot, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	env := readEnvelope(t, conn)
	var first []domain.Market
	if err := json.Unmarshal(env.Payload, &first); err != nil || env.Type != TypeMarkets || len(first) != 1 {
		t.Fatalf("initial frame = %s %s (%v)", env.Type, env.Payload, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	_ = bus.Publish(ctx, domain.ChannelMarkets, []byte(`[{"id":2}]`))
	env = readEnvelope(t, conn)
	if env.Type != TypeMarkets || string(env.Payload) != `[{"id":2}]` {
		t.Errorf("broadcast frame = %s %s", env.Type, env.Payload)
	}
}

func TestEnvelopeRejectsInvalidJSON(t *testing.T) {
	if _, err := envelope(TypeMarkets, []byte("{")); err == nil {
		t.Error("invalid payload accepted")
	}
}
