package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"grid_go/internal/domain"

	"github.com/shopspring/decimal"
)

// PriceService caches the latest trade per symbol from a streaming feed and
// falls back to a REST price source when the cache is stale.
type PriceService struct {
	mu         sync.RWMutex
	marketData map[string]*domain.MarketData
	tickerChan chan []*domain.Ticker

	fallback domain.PriceSource
	maxAge   time.Duration
	now      func() time.Time
}

// NewPriceService creates a new PriceService instance.
// fallback may be nil, in which case a stale cache reports no price.
func NewPriceService(fallback domain.PriceSource, maxAge time.Duration) *PriceService {
	return &PriceService{
		marketData: make(map[string]*domain.MarketData),
		tickerChan: make(chan []*domain.Ticker, 1000), // 버스트 대응을 위한 충분한 버퍼
		fallback:   fallback,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// GetAllData returns all market data sorted by symbol
func (s *PriceService) GetAllData() []domain.MarketData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MarketData, 0, len(s.marketData))
	for _, data := range s.marketData {
		result = append(result, *data)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result
}

// GetData returns a copy of the market data for a symbol.
func (s *PriceService) GetData(symbol string) (domain.MarketData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.marketData[symbol]
	if !ok {
		return domain.MarketData{}, false
	}
	return *data, true
}

// GetTickerChan returns the channel for incoming ticker updates
func (s *PriceService) GetTickerChan() chan []*domain.Ticker {
	return s.tickerChan
}

// StartTickerProcessor starts a background goroutine to process tickers from the channel
func (s *PriceService) StartTickerProcessor(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tickers := <-s.tickerChan:
				s.ProcessTickers(tickers)
			}
		}
	}()
}

// ProcessTickers applies a batch of tickers. Out-of-order trades are dropped.
func (s *PriceService) ProcessTickers(tickers []*domain.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, ticker := range tickers {
		if ticker == nil || !ticker.Price.IsPositive() {
			continue
		}
		data, exists := s.marketData[ticker.Symbol]
		if !exists {
			data = &domain.MarketData{Symbol: ticker.Symbol}
			s.marketData[ticker.Symbol] = data
		}
		data.Apply(ticker, now)
	}
}

// LastPrice returns the cached trade price if it is fresh, otherwise asks
// the fallback source.
func (s *PriceService) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	data := s.marketData[symbol]
	fresh := data.IsFresh(s.now(), s.maxAge)
	var price decimal.Decimal
	if fresh {
		price = data.Last.Price
	}
	s.mu.RUnlock()

	if fresh {
		return price, true, nil
	}
	if s.fallback == nil {
		return decimal.Zero, false, nil
	}

	slog.Debug("PRICE_CACHE_STALE", slog.String("symbol", symbol))
	price, found, err := s.fallback.LastPrice(ctx, symbol)
	if err != nil || !found {
		return price, found, err
	}

	s.ProcessTickers([]*domain.Ticker{{
		Symbol:    symbol,
		Price:     price,
		Source:    "REST",
		Timestamp: s.now(),
	}})
	return price, true, nil
}

// pricedBroker overrides the broker's price lookup with another source.
type pricedBroker struct {
	domain.Broker
	prices domain.PriceSource
}

func (b *pricedBroker) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	return b.prices.LastPrice(ctx, symbol)
}

// WithPriceSource returns a broker whose LastPrice is served by prices.
func WithPriceSource(broker domain.Broker, prices domain.PriceSource) domain.Broker {
	return &pricedBroker{Broker: broker, prices: prices}
}
