package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"grid_go/internal/domain"
	"grid_go/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// fakeMarketStream speaks the connect, auth and subscribe handshake, then sends trades.
func fakeMarketStream(t *testing.T, subscribed chan<- map[string]any, trades string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"T":"success","msg":"connected"}]`))

		var auth map[string]string
		if err := conn.ReadJSON(&auth); err != nil || auth["action"] != "auth" || auth["key"] != "key" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"T":"error","code":402,"msg":"auth failed"}]`))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"T":"success","msg":"authenticated"}]`))

		var sub map[string]any
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub

		_ = conn.WriteMessage(websocket.TextMessage, []byte(trades))

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestStream_ForwardsTrades(t *testing.T) {
	subscribed := make(chan map[string]any, 1)
	srv := fakeMarketStream(t, subscribed,
		`[{"T":"t","S":"ETH/USD","p":4210.5,"s":0.12,"t":"2025-01-02T03:04:05.123Z"},{"T":"q","S":"ETH/USD"}]`)
	defer srv.Close()

	cfg := infra.DefaultConfig()
	cfg.Broker.Alpaca.StreamURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Broker.Alpaca.KeyID = "key"
	cfg.Broker.Alpaca.SecretKey = "secret"

	tickerChan := make(chan []*domain.Ticker, 10)
	stream := NewStream(cfg, []string{"ETH/USD"}, tickerChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := stream.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer stream.Disconnect()

	select {
	case sub := <-subscribed:
		raw, _ := json.Marshal(sub["trades"])
		if sub["action"] != "subscribe" || string(raw) != `["ETH/USD"]` {
			t.Errorf("unexpected subscription %v", sub)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for subscription")
	}

	select {
	case tickers := <-tickerChan:
		if len(tickers) != 1 {
			t.Fatalf("Expected 1 ticker, got %d", len(tickers))
		}
		tk := tickers[0]
		if tk.Symbol != "ETH/USD" || !tk.Price.Equal(decimal.RequireFromString("4210.5")) {
			t.Errorf("unexpected ticker %+v", tk)
		}
		if tk.Source != tickerSource || tk.Timestamp.IsZero() {
			t.Errorf("unexpected ticker metadata %+v", tk)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for trades")
	}

	if !stream.IsConnected() {
		t.Error("stream should report connected")
	}
}

func TestStream_HandleMessage(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  int
	}{
		{"two trades one batch", `[{"T":"t","S":"ETH/USD","p":"4200","s":"1"},{"T":"t","S":"ETH/USD","p":4201}]`, 2},
		{"non-positive price dropped", `[{"T":"t","S":"ETH/USD","p":0}]`, 0},
		{"control frame", `[{"T":"subscription","trades":["ETH/USD"]}]`, 0},
		{"garbage", `{not json`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tickerChan := make(chan []*domain.Ticker, 1)
			s := &Stream{tickerChan: tickerChan}
			s.handleMessage([]byte(tt.frame))

			got := 0
			select {
			case batch := <-tickerChan:
				got = len(batch)
			default:
			}
			if got != tt.want {
				t.Errorf("Expected %d tickers, got %d", tt.want, got)
			}
		})
	}
}

func TestStream_DropsWhenChannelFull(t *testing.T) {
	tickerChan := make(chan []*domain.Ticker, 1)
	s := &Stream{tickerChan: tickerChan}

	frame := []byte(`[{"T":"t","S":"ETH/USD","p":4200}]`)
	s.handleMessage(frame)
	s.handleMessage(frame) // must not block

	if len(tickerChan) != 1 {
		t.Errorf("Expected 1 buffered batch, got %d", len(tickerChan))
	}
}
