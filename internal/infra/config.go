package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"grid_go/internal/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	BrokerAlpaca = "alpaca"
	BrokerPaper  = "paper"

	DefaultAlpacaBaseURL   = "https://paper-api.alpaca.markets"
	DefaultAlpacaDataURL   = "https://data.alpaca.markets"
	DefaultAlpacaStreamURL = "wss://stream.data.alpaca.markets/v1beta3/crypto/us"
)

// Config는 애플리케이션의 모든 설정을 담습니다.
// LoadConfig로 로드된 후에 환경 변수를 통해 민감 내용을 덮어씁니다.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Broker struct {
		Kind   string `yaml:"kind"` // alpaca | paper
		Alpaca struct {
			BaseURL           string `yaml:"base_url"`
			DataURL           string `yaml:"data_url"`
			StreamURL         string `yaml:"stream_url"`
			KeyID             string `yaml:"key_id"`
			SecretKey         string `yaml:"secret_key"`
			RequestTimeoutSec int    `yaml:"request_timeout_sec"`
		} `yaml:"alpaca"`
		Paper struct {
			Cash    decimal.Decimal `yaml:"cash"`
			FeeRate decimal.Decimal `yaml:"fee_rate"`
		} `yaml:"paper"`
	} `yaml:"broker"`

	Grid struct {
		Symbol            string          `yaml:"symbol"`
		Low               decimal.Decimal `yaml:"low"`
		High              decimal.Decimal `yaml:"high"`
		Step              decimal.Decimal `yaml:"step"`
		Levels            int             `yaml:"levels"`
		QtyPerLevel       decimal.Decimal `yaml:"qty_per_level"`
		PriceIncrement    decimal.Decimal `yaml:"price_increment"`
		QtyIncrement      decimal.Decimal `yaml:"qty_increment"`
		TakeProfitPct     decimal.Decimal `yaml:"take_profit_pct"`
		BreakBufferPct    decimal.Decimal `yaml:"break_buffer_pct"`
		LiquidateOnBreak  bool            `yaml:"liquidate_on_break"`
		RebuildOnStart    bool            `yaml:"rebuild_on_start"`
		MaxOpenBuys       int             `yaml:"max_open_buys"`
		BuyZone           string          `yaml:"buy_zone"`
		FillLookbackHours int             `yaml:"fill_lookback_hours"`
	} `yaml:"grid"`

	Recenter struct {
		Enabled     bool            `yaml:"enabled"`
		BufferPct   decimal.Decimal `yaml:"buffer_pct"`
		Mode        string          `yaml:"mode"` // center | edge
		CooldownSec int             `yaml:"cooldown_sec"`
	} `yaml:"recenter"`

	Loop struct {
		IntervalSec int `yaml:"interval_sec"`
	} `yaml:"loop"`

	Stream struct {
		Enabled   bool `yaml:"enabled"`
		MaxAgeSec int  `yaml:"max_age_sec"`
	} `yaml:"stream"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Metrics struct {
		Addr string `yaml:"addr"` // Empty disables the metrics server
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the configuration used when neither file nor
// environment set a value.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "gridbot"

	cfg.Broker.Kind = BrokerAlpaca
	cfg.Broker.Alpaca.BaseURL = DefaultAlpacaBaseURL
	cfg.Broker.Alpaca.DataURL = DefaultAlpacaDataURL
	cfg.Broker.Alpaca.StreamURL = DefaultAlpacaStreamURL
	cfg.Broker.Alpaca.RequestTimeoutSec = 10
	cfg.Broker.Paper.Cash = decimal.NewFromInt(10000)
	cfg.Broker.Paper.FeeRate = decimal.Zero

	cfg.Grid.Symbol = "ETH/USD"
	cfg.Grid.Low = decimal.NewFromInt(4000)
	cfg.Grid.High = decimal.NewFromInt(4400)
	cfg.Grid.Levels = 10
	cfg.Grid.QtyPerLevel = decimal.RequireFromString("0.01")
	cfg.Grid.PriceIncrement = decimal.RequireFromString("0.01")
	cfg.Grid.QtyIncrement = decimal.RequireFromString("0.000001")
	cfg.Grid.TakeProfitPct = decimal.RequireFromString("0.5")
	cfg.Grid.BreakBufferPct = decimal.NewFromInt(1)
	cfg.Grid.RebuildOnStart = true
	cfg.Grid.MaxOpenBuys = 50
	cfg.Grid.BuyZone = "below_price"
	cfg.Grid.FillLookbackHours = 168

	cfg.Recenter.BufferPct = decimal.NewFromInt(10)
	cfg.Recenter.Mode = "center"
	cfg.Recenter.CooldownSec = 900

	cfg.Loop.IntervalSec = 30
	cfg.Stream.MaxAgeSec = 15
	cfg.Storage.Path = "data/gridbot.db"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig는 설정 파일을 읽고 파싱한 뒤 유효성을 검사합니다.
// path가 비어 있으면 기본값과 환경 변수만 사용합니다.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	// 5원칙: 설정 유효성 검사
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ReadConfig는 설정 파일과 환경 변수를 읽기만 하고 검사하지 않습니다.
func ReadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", path, domain.ErrConfigNotFound)
			}
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigError{Field: path, Err: err}
		}
	}

	// 4원칙: 보안 우선 - 환경 변수 오버라이드 지원
	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnvFile은 .env 파일을 환경 변수로 읽어옵니다. 이미 설정된 값은 덮어쓰지 않습니다.
// path가 비어 있으면 현재 디렉터리의 .env를 시도하고, 없으면 무시합니다.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return &domain.ConfigError{Field: "env_file", Err: err}
	}
	return nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if err := c.validateBroker(); err != nil {
		return err
	}
	return c.ValidateGrid()
}

func (c *Config) validateBroker() error {
	switch c.Broker.Kind {
	case BrokerAlpaca:
		if c.Broker.Alpaca.KeyID == "" || c.Broker.Alpaca.SecretKey == "" {
			return &domain.ConfigError{Field: "broker.alpaca", Err: errors.New("missing API keys (APCA_API_KEY_ID / APCA_API_SECRET_KEY)")}
		}
		if !hasPrefix(c.Broker.Alpaca.BaseURL, "https://") && !hasPrefix(c.Broker.Alpaca.BaseURL, "http://") {
			return &domain.ConfigError{Field: "broker.alpaca.base_url", Err: fmt.Errorf("invalid URL: %s", c.Broker.Alpaca.BaseURL)}
		}
	case BrokerPaper:
		if c.Broker.Paper.Cash.IsNegative() {
			return &domain.ConfigError{Field: "broker.paper.cash", Err: errors.New("must not be negative")}
		}
	default:
		return &domain.ConfigError{Field: "broker.kind", Err: fmt.Errorf("unknown broker %q", c.Broker.Kind)}
	}
	if c.Broker.Alpaca.RequestTimeoutSec <= 0 {
		return &domain.ConfigError{Field: "broker.alpaca.request_timeout_sec", Err: errors.New("must be positive")}
	}
	if c.Stream.Enabled {
		url := c.Broker.Alpaca.StreamURL
		if !hasPrefix(url, "ws://") && !hasPrefix(url, "wss://") {
			return &domain.ConfigError{Field: "broker.alpaca.stream_url", Err: fmt.Errorf("invalid WS URL: %s", url)}
		}
		if c.Stream.MaxAgeSec <= 0 {
			return &domain.ConfigError{Field: "stream.max_age_sec", Err: errors.New("must be positive")}
		}
	}
	return nil
}

// ValidateGrid checks only the grid and loop settings. It needs no broker credentials.
func (c *Config) ValidateGrid() error {
	if !strings.Contains(c.Grid.Symbol, "/") {
		return &domain.ConfigError{Field: "grid.symbol", Err: fmt.Errorf("%w: crypto symbol must contain a slash, got %q", domain.ErrInvalidSymbol, c.Grid.Symbol)}
	}
	if err := c.Range().Validate(); err != nil {
		return &domain.ConfigError{Field: "grid", Err: err}
	}
	if c.Loop.IntervalSec <= 0 {
		return &domain.ConfigError{Field: "loop.interval_sec", Err: errors.New("must be positive")}
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return &domain.ConfigError{Field: "storage.path", Err: errors.New("required when storage is enabled")}
	}
	return nil
}

// Range returns the configured grid range.
func (c *Config) Range() domain.Range {
	return domain.Range{
		Low:    c.Grid.Low,
		High:   c.Grid.High,
		Step:   c.Grid.Step,
		Levels: c.Grid.Levels,
	}
}

// RequestTimeout returns the bound applied to every remote call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Broker.Alpaca.RequestTimeoutSec) * time.Second
}

// StreamMaxAge returns how long a streamed trade stays usable.
func (c *Config) StreamMaxAge() time.Duration {
	return time.Duration(c.Stream.MaxAgeSec) * time.Second
}

// FillLookback returns how far back closed orders are scanned for fills.
func (c *Config) FillLookback() time.Duration {
	return time.Duration(c.Grid.FillLookbackHours) * time.Hour
}

// RecenterCooldown returns the minimum time between two recenters.
func (c *Config) RecenterCooldown() time.Duration {
	return time.Duration(c.Recenter.CooldownSec) * time.Second
}

// LoopInterval returns the pause between rounds.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Loop.IntervalSec) * time.Second
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// envReader collects the first parse failure so every override stays one line.
type envReader struct {
	err error
}

func (r *envReader) fail(name, v string, err error) {
	if r.err == nil {
		r.err = &domain.ConfigError{Field: name, Err: fmt.Errorf("cannot parse %q: %w", v, err)}
	}
}

func (r *envReader) str(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func (r *envReader) dec(name string, dst *decimal.Decimal) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.fail(name, v, err)
		return
	}
	*dst = d
}

func (r *envReader) num(name string, dst *int) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, v, err)
		return
	}
	*dst = n
}

func (r *envReader) flag(name string, dst *bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "":
	case "1", "true", "yes", "y", "t", "on":
		*dst = true
	case "0", "false", "no", "n", "f", "off":
		*dst = false
	default:
		r.fail(name, v, errors.New("not a boolean"))
	}
}

// overrideWithEnv는 환경 변수가 존재할 경우 설정 값을 덮어씁니다.
// 파싱할 수 없는 값은 기본값으로 대체하지 않고 ConfigError를 반환합니다.
func overrideWithEnv(cfg *Config) error {
	r := &envReader{}

	r.str("BROKER_KIND", &cfg.Broker.Kind)
	r.str("APCA_API_KEY_ID", &cfg.Broker.Alpaca.KeyID)
	r.str("APCA_API_SECRET_KEY", &cfg.Broker.Alpaca.SecretKey)
	r.str("APCA_API_BASE_URL", &cfg.Broker.Alpaca.BaseURL)
	r.str("APCA_API_DATA_URL", &cfg.Broker.Alpaca.DataURL)

	r.str("SYMBOL", &cfg.Grid.Symbol)
	r.dec("GRID_LOW", &cfg.Grid.Low)
	r.dec("GRID_HIGH", &cfg.Grid.High)
	r.dec("GRID_STEP", &cfg.Grid.Step)
	r.num("GRID_LEVELS", &cfg.Grid.Levels)
	r.dec("QTY_PER_LEVEL", &cfg.Grid.QtyPerLevel)
	r.dec("TP_PCT", &cfg.Grid.TakeProfitPct)
	r.dec("BREAK_BUFFER_PCT", &cfg.Grid.BreakBufferPct)
	r.flag("LIQUIDATE_ON_BREAK", &cfg.Grid.LiquidateOnBreak)
	r.flag("REBUILD_ON_START", &cfg.Grid.RebuildOnStart)
	r.num("MAX_OPEN_BUYS", &cfg.Grid.MaxOpenBuys)
	r.str("BUY_ZONE", &cfg.Grid.BuyZone)

	r.flag("AUTO_RECENTER", &cfg.Recenter.Enabled)
	r.dec("RECENTER_BUFFER_PCT", &cfg.Recenter.BufferPct)
	r.str("RECENTER_MODE", &cfg.Recenter.Mode)
	r.num("RECENTER_COOLDOWN_SEC", &cfg.Recenter.CooldownSec)

	r.num("LOOP_INTERVAL_SEC", &cfg.Loop.IntervalSec)
	r.str("LOG_LEVEL", &cfg.Logging.Level)

	return r.err
}
