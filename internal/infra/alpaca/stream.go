package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"grid_go/internal/domain"
	"grid_go/internal/infra"

	"github.com/gorilla/websocket"
)

const (
	maxRetries       = 10
	handshakeTimeout = 10 * time.Second
	authTimeout      = 10 * time.Second
	readTimeout      = 90 * time.Second
	tickerSource     = "ALPACA_STREAM"
)

// Stream subscribes to crypto trades on the Alpaca market data websocket
// and forwards them as tickers.
type Stream struct {
	url        string
	keyID      string
	secret     string
	symbols    []string
	tickerChan chan<- []*domain.Ticker

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewStream creates a trade stream for symbols.
func NewStream(cfg *infra.Config, symbols []string, tickerChan chan<- []*domain.Ticker) *Stream {
	return &Stream{
		url:        cfg.Broker.Alpaca.StreamURL,
		keyID:      cfg.Broker.Alpaca.KeyID,
		secret:     cfg.Broker.Alpaca.SecretKey,
		symbols:    symbols,
		tickerChan: tickerChan,
	}
}

// Connect starts the WebSocket connection with automatic reconnection
func (s *Stream) Connect(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.connectionLoop(ctx)
	return nil
}

func (s *Stream) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Alpaca stream panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Alpaca stream loop stopped")
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			slog.Warn("Alpaca stream connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		s.readLoop(ctx)
	}
}

// connect dials, authenticates and subscribes to trades.
func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	// [{"T":"success","msg":"connected"}]
	if err := s.expect(conn, "connected"); err != nil {
		s.closeConnection()
		return err
	}

	auth := map[string]string{"action": "auth", "key": s.keyID, "secret": s.secret}
	if err := s.writeJSON(auth); err != nil {
		s.closeConnection()
		return fmt.Errorf("auth failed: %w", err)
	}
	if err := s.expect(conn, "authenticated"); err != nil {
		s.closeConnection()
		return err
	}

	sub := map[string]any{"action": "subscribe", "trades": s.symbols}
	if err := s.writeJSON(sub); err != nil {
		s.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	slog.Info("Alpaca stream connected", slog.Any("symbols", s.symbols))
	return nil
}

// expect reads control frames until a success message with msg arrives.
func (s *Stream) expect(conn *websocket.Conn, msg string) error {
	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("waiting for %q: %w", msg, err)
		}
		frame, err := decodeFrame(data)
		if err != nil {
			return err
		}
		for _, m := range frame {
			switch m.Type {
			case "success":
				if m.Msg == msg {
					return nil
				}
			case "error":
				return fmt.Errorf("stream error %d: %s", m.Code, m.Msg)
			}
		}
	}
}

func (s *Stream) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Stream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Alpaca stream read error", slog.Any("error", err))
			}
			s.closeConnection()
			return
		}

		s.handleMessage(data)
	}
}

// handleMessage forwards the trades of one frame as a single batch.
func (s *Stream) handleMessage(data []byte) {
	frame, err := decodeFrame(data)
	if err != nil {
		slog.Debug("Alpaca stream parse error", slog.Any("error", err))
		return
	}

	tickers := make([]*domain.Ticker, 0, len(frame))
	for _, m := range frame {
		switch m.Type {
		case "t":
			if !m.Price.Valid || !m.Price.IsPositive() {
				continue
			}
			tickers = append(tickers, &domain.Ticker{
				Symbol:    m.Symbol,
				Price:     m.Price.Decimal,
				Size:      m.Size.orZero(),
				Source:    tickerSource,
				Timestamp: m.Timestamp,
			})
		case "error":
			slog.Warn("Alpaca stream error", slog.Int("code", m.Code), slog.String("msg", m.Msg))
		}
	}
	if len(tickers) == 0 || s.tickerChan == nil {
		return
	}

	select {
	case s.tickerChan <- tickers:
	default:
		slog.Warn("Alpaca ticker channel full, dropping data", slog.Int("count", len(tickers)))
	}
}

func (s *Stream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}

// Disconnect closes the WebSocket connection and waits for the loop to exit.
func (s *Stream) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConnection()
	s.wg.Wait()
	slog.Info("Alpaca stream disconnected")
}

// IsConnected returns connection status
func (s *Stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}
