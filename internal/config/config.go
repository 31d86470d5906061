package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"goldbot/internal/domain"

	"github.com/spf13/viper"
)

// Config is the full set of process settings.
type Config struct {
	Broker   BrokerConfig
	Strategy StrategyConfig
	Risk     domain.RiskLimits
	Candles  CandleConfig
	Poll     PollConfig

	Database            DatabaseConfig
	HTTPAddr            string
	LogLevel            string
	LogFormat           string
	FirebaseCredentials string
	FirebaseCredJSON    string
	TelegramToken       string
	TelegramChatID      int64
}

// BrokerConfig holds the Capital.com session settings.
type BrokerConfig struct {
	APIKey         string
	Email          string
	Password       string
	AccountType    string // demo | live
	Instrument     string
	RequestsPerSec float64
	ConfirmRetries int
	ConfirmDelay   time.Duration
	Endpoint       string // overrides the account type endpoint when set
}

// BaseURL derives the REST endpoint from the account type.
func (b BrokerConfig) BaseURL() string {
	if b.Endpoint != "" {
		return strings.TrimRight(b.Endpoint, "/")
	}
	if b.AccountType == "live" {
		return "https://api-capital.backend-capital.com"
	}
	return "https://demo-api-capital.backend-capital.com"
}

// StrategyConfig holds indicator periods and signal thresholds. Distances are in ATR units.
type StrategyConfig struct {
	EMATrendPeriod    int
	EMAFastPeriod     int
	EMAPullbackPeriod int
	ATRPeriod         int

	PullbackATRTol     float64
	ChopEMADistATRMin  float64
	BigCandleATRMax    float64
	SLBufferATR        float64
	TP1R               float64
	PartialCloseTP1    float64
	MoveSLToBreakeven  bool
	SpreadMax          float64
	SwingEnabled       bool
	Scalp              ModeConfig
	Swing              ModeConfig
}

// ModeConfig binds a mode to its timeframe pair.
type ModeConfig struct {
	Mode        domain.Mode      `json:"mode"`
	EntryTF     domain.Timeframe `json:"entryTf"`
	TrendTF     domain.Timeframe `json:"trendTf"`
	BOSLookback int              `json:"bosLookback"`
	ExpiryBars  int              `json:"expiryBars"`
	TP2R        float64          `json:"tp2R"`
	SizeUnits   float64          `json:"sizeUnits"`
}

// Modes returns the enabled modes.
func (s StrategyConfig) Modes() []ModeConfig {
	if s.SwingEnabled {
		return []ModeConfig{s.Scalp, s.Swing}
	}
	return []ModeConfig{s.Scalp}
}

// DatabaseConfig configures the journal connection pool. An empty URL disables the journal.
type DatabaseConfig struct {
	URL               string
	RequireSSL        bool
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	JournalBuffer     int
}

// CandleConfig controls the candle stores.
type CandleConfig struct {
	HistoryBars     int
	IncrementalBars int
}

// PollConfig holds the task intervals.
type PollConfig struct {
	Tick           time.Duration
	Timeframes     map[domain.Timeframe]time.Duration
	Status         time.Duration
	SessionRefresh time.Duration
}

// Timeframes returns the timeframes the enabled modes need.
func (c Config) Timeframes() []domain.Timeframe {
	var tfs []domain.Timeframe
	seen := map[domain.Timeframe]bool{}
	for _, m := range c.Strategy.Modes() {
		for _, tf := range []domain.Timeframe{m.EntryTF, m.TrendTF} {
			if !seen[tf] {
				seen[tf] = true
				tfs = append(tfs, tf)
			}
		}
	}
	return tfs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ACCOUNT_TYPE", "demo")
	v.SetDefault("EPIC", "XAUUSD")
	v.SetDefault("BROKER_REQUESTS_PER_SEC", 4.0)
	v.SetDefault("CONFIRM_RETRIES", 6)
	v.SetDefault("CONFIRM_DELAY", "500ms")
	v.SetDefault("SWING_ENABLED", false)

	v.SetDefault("MAX_TRADES_PER_DAY", 3)
	v.SetDefault("DAILY_LOSS_LIMIT_USD", 10.0)
	v.SetDefault("MAX_CONSECUTIVE_LOSSES", 3)

	v.SetDefault("SCALP_SIZE_UNITS", 1.0)
	v.SetDefault("SWING_SIZE_UNITS", 1.0)
	v.SetDefault("SPREAD_MAX", 0.60)

	v.SetDefault("EMA_TREND_PERIOD", 200)
	v.SetDefault("EMA_FAST_PERIOD", 20)
	v.SetDefault("EMA_PULLBACK_PERIOD", 50)
	v.SetDefault("ATR_PERIOD", 14)

	v.SetDefault("BOS_LOOKBACK_SCALP", 8)
	v.SetDefault("BOS_LOOKBACK_SWING", 10)
	v.SetDefault("SETUP_EXPIRY_BARS_SCALP", 6)
	v.SetDefault("SETUP_EXPIRY_BARS_SWING", 12)

	v.SetDefault("PULLBACK_ATR_TOL", 0.40)
	v.SetDefault("CHOP_EMA_DIST_ATR_MIN", 0.12)
	v.SetDefault("BIG_CANDLE_ATR_MAX", 1.50)

	v.SetDefault("SL_BUFFER_ATR", 0.15)
	v.SetDefault("TP1_R", 1.0)
	v.SetDefault("TP2_R_SCALP", 2.0)
	v.SetDefault("TP2_R_SWING", 3.0)
	v.SetDefault("PARTIAL_CLOSE_TP1", 0.50)
	v.SetDefault("MOVE_SL_TO_BREAKEVEN_ON_TP1", false)

	v.SetDefault("HISTORY_BARS", 300)
	v.SetDefault("INCREMENTAL_BARS", 6)

	v.SetDefault("TICK_POLL", "5s")
	v.SetDefault("M5_POLL", "30s")
	v.SetDefault("M15_POLL", "60s")
	v.SetDefault("H1_POLL", "5m")
	v.SetDefault("H4_POLL", "20m")
	v.SetDefault("STATUS_POLL", "60s")
	v.SetDefault("SESSION_REFRESH", "540s")

	v.SetDefault("DB_REQUIRE_SSL", true)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "30m")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "5m")
	v.SetDefault("DB_HEALTHCHECK_PERIOD", "30s")
	v.SetDefault("JOURNAL_BUFFER", 1024)

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from v, applying defaults for unset keys.
func FromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)

	cfg := Config{
		Broker: BrokerConfig{
			APIKey:         v.GetString("CAPITAL_API_KEY"),
			Email:          v.GetString("CAPITAL_EMAIL"),
			Password:       v.GetString("CAPITAL_PASSWORD"),
			AccountType:    strings.ToLower(v.GetString("ACCOUNT_TYPE")),
			Endpoint:       v.GetString("CAPITAL_BASE_URL"),
			Instrument:     v.GetString("EPIC"),
			RequestsPerSec: v.GetFloat64("BROKER_REQUESTS_PER_SEC"),
			ConfirmRetries: v.GetInt("CONFIRM_RETRIES"),
			ConfirmDelay:   v.GetDuration("CONFIRM_DELAY"),
		},
		Strategy: StrategyConfig{
			EMATrendPeriod:    v.GetInt("EMA_TREND_PERIOD"),
			EMAFastPeriod:     v.GetInt("EMA_FAST_PERIOD"),
			EMAPullbackPeriod: v.GetInt("EMA_PULLBACK_PERIOD"),
			ATRPeriod:         v.GetInt("ATR_PERIOD"),
			PullbackATRTol:    v.GetFloat64("PULLBACK_ATR_TOL"),
			ChopEMADistATRMin: v.GetFloat64("CHOP_EMA_DIST_ATR_MIN"),
			BigCandleATRMax:   v.GetFloat64("BIG_CANDLE_ATR_MAX"),
			SLBufferATR:       v.GetFloat64("SL_BUFFER_ATR"),
			TP1R:              v.GetFloat64("TP1_R"),
			PartialCloseTP1:   v.GetFloat64("PARTIAL_CLOSE_TP1"),
			MoveSLToBreakeven: v.GetBool("MOVE_SL_TO_BREAKEVEN_ON_TP1"),
			SpreadMax:         v.GetFloat64("SPREAD_MAX"),
			SwingEnabled:      v.GetBool("SWING_ENABLED"),
			Scalp: ModeConfig{
				Mode:        domain.Scalp,
				EntryTF:     domain.M5,
				TrendTF:     domain.M15,
				BOSLookback: v.GetInt("BOS_LOOKBACK_SCALP"),
				ExpiryBars:  v.GetInt("SETUP_EXPIRY_BARS_SCALP"),
				TP2R:        v.GetFloat64("TP2_R_SCALP"),
				SizeUnits:   v.GetFloat64("SCALP_SIZE_UNITS"),
			},
			Swing: ModeConfig{
				Mode:        domain.Swing,
				EntryTF:     domain.H1,
				TrendTF:     domain.H4,
				BOSLookback: v.GetInt("BOS_LOOKBACK_SWING"),
				ExpiryBars:  v.GetInt("SETUP_EXPIRY_BARS_SWING"),
				TP2R:        v.GetFloat64("TP2_R_SWING"),
				SizeUnits:   v.GetFloat64("SWING_SIZE_UNITS"),
			},
		},
		Risk: domain.RiskLimits{
			MaxTradesPerDay:      v.GetInt("MAX_TRADES_PER_DAY"),
			DailyLossLimitUSD:    v.GetFloat64("DAILY_LOSS_LIMIT_USD"),
			MaxConsecutiveLosses: v.GetInt("MAX_CONSECUTIVE_LOSSES"),
		},
		Candles: CandleConfig{
			HistoryBars:     v.GetInt("HISTORY_BARS"),
			IncrementalBars: v.GetInt("INCREMENTAL_BARS"),
		},
		Poll: PollConfig{
			Tick: v.GetDuration("TICK_POLL"),
			Timeframes: map[domain.Timeframe]time.Duration{
				domain.M5:  v.GetDuration("M5_POLL"),
				domain.M15: v.GetDuration("M15_POLL"),
				domain.H1:  v.GetDuration("H1_POLL"),
				domain.H4:  v.GetDuration("H4_POLL"),
			},
			Status:         v.GetDuration("STATUS_POLL"),
			SessionRefresh: v.GetDuration("SESSION_REFRESH"),
		},
		Database: DatabaseConfig{
			URL:               v.GetString("DATABASE_URL"),
			RequireSSL:        v.GetBool("DB_REQUIRE_SSL"),
			MaxConns:          v.GetInt32("DB_MAX_CONNS"),
			MinConns:          v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime:   v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime:   v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
			HealthCheckPeriod: v.GetDuration("DB_HEALTHCHECK_PERIOD"),
			JournalBuffer:     v.GetInt("JOURNAL_BUFFER"),
		},
		HTTPAddr:            v.GetString("HTTP_ADDR"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFormat:           v.GetString("LOG_FORMAT"),
		FirebaseCredentials: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		FirebaseCredJSON:    v.GetString("FIREBASE_CREDENTIALS_JSON"),
		TelegramToken:       v.GetString("TELEGRAM_TOKEN"),
		TelegramChatID:      v.GetInt64("TELEGRAM_CHAT_ID"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Broker.AccountType != "demo" && c.Broker.AccountType != "live" {
		errs = append(errs, fmt.Errorf("ACCOUNT_TYPE must be demo or live, got %q", c.Broker.AccountType))
	}
	if c.Broker.Instrument == "" {
		errs = append(errs, errors.New("EPIC must not be empty"))
	}
	s := c.Strategy
	for name, p := range map[string]int{
		"EMA_TREND_PERIOD":    s.EMATrendPeriod,
		"EMA_FAST_PERIOD":     s.EMAFastPeriod,
		"EMA_PULLBACK_PERIOD": s.EMAPullbackPeriod,
		"ATR_PERIOD":          s.ATRPeriod,
		"BOS_LOOKBACK_SCALP":  s.Scalp.BOSLookback,
		"BOS_LOOKBACK_SWING":  s.Swing.BOSLookback,
	} {
		if p < 1 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, p))
		}
	}
	if s.PartialCloseTP1 <= 0 || s.PartialCloseTP1 > 1 {
		errs = append(errs, fmt.Errorf("PARTIAL_CLOSE_TP1 must be in (0,1], got %v", s.PartialCloseTP1))
	}
	if s.Scalp.SizeUnits < 1 || s.Swing.SizeUnits < 1 {
		errs = append(errs, errors.New("position size must be at least 1 unit"))
	}
	if c.Candles.HistoryBars < s.EMATrendPeriod {
		errs = append(errs, fmt.Errorf("HISTORY_BARS (%d) must cover EMA_TREND_PERIOD (%d)", c.Candles.HistoryBars, s.EMATrendPeriod))
	}
	if c.Candles.IncrementalBars < 1 {
		errs = append(errs, errors.New("INCREMENTAL_BARS must be positive"))
	}
	if c.Poll.Tick <= 0 {
		errs = append(errs, errors.New("TICK_POLL must be positive"))
	}
	for _, tf := range c.Timeframes() {
		if c.Poll.Timeframes[tf] <= 0 {
			errs = append(errs, fmt.Errorf("%s poll interval must be positive", tf))
		}
	}

	return errors.Join(errs...)
}
