package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"trade_engine/internal/market"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeRealtime Mode = "realtime"
)

// Config ...
type Config struct {
	Mode      Mode   `yaml:"mode"`
	InstID    string `yaml:"inst_id"`
	Timeframe string `yaml:"timeframe"`

	// Прогрев: сколько уже закрытых свечей скармливаем индикаторам до стрима.
	WarmupCandles int `yaml:"warmup_candles"`

	// Бэктест
	CSVPath     string        `yaml:"csv_path"`
	ReplayDelay time.Duration `yaml:"replay_delay"` // пауза между свечами реплея, 0 = без паузы

	// Индикаторы
	EMAFast           int     `yaml:"ema_fast"`
	EMASlow           int     `yaml:"ema_slow"`
	ATRPeriod         int     `yaml:"atr_period"`
	ATRHistoryMult    int     `yaml:"atr_history_mult"`
	RSIPeriod         int     `yaml:"rsi_period"`
	RSIOverbought     float64 `yaml:"rsi_overbought"`
	RSIOversold       float64 `yaml:"rsi_oversold"`
	SwingSide         int     `yaml:"swing_side"`
	SwingWindow       int     `yaml:"swing_window"`
	CrossMinGap       float64 `yaml:"cross_min_gap"`
	CrossSlopeThresh  float64 `yaml:"cross_slope_threshold"`
	CrossSlopeSamples int     `yaml:"cross_slope_samples"`

	// Стратегия: ema_cross | price_ema | rsi_cross | sweep
	Strategy string `yaml:"strategy"`

	// Риск: tp/sl как фиксированный процент или от ATR
	RiskMode string  `yaml:"risk_mode"` // pct | atr
	TPPct    float64 `yaml:"tp_pct"`    // 1.2 => 1.2%
	SLPct    float64 `yaml:"sl_pct"`
	TPMult   float64 `yaml:"tp_mult"` // tp = entry ± atr*TPMult
	SLMult   float64 `yaml:"sl_mult"`
	UnitSize float64 `yaml:"unit_size"` // размер, если баланс не трекается

	InitialBalance float64       `yaml:"initial_balance"`
	Cooldown       time.Duration `yaml:"cooldown"`

	// Коллабораторы (не ядро)
	DB       string `yaml:"db_dsn"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`
	HealthAddr string `yaml:"health_addr"`
	LogLevel   string `yaml:"log_level"`
	LogDebug   bool   `yaml:"log_debug"`
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	config := Config{
		Mode:      ModeBacktest,
		InstID:    getenvDefault("INST_ID", "BTC-USDT-SWAP"),
		Timeframe: getenvDefault("TIMEFRAME", "1m"),

		WarmupCandles: intFromEnv("WARMUP_CANDLES", 100),

		EMAFast:           intFromEnv("EMA_FAST", 9),
		EMASlow:           intFromEnv("EMA_SLOW", 21),
		ATRPeriod:         intFromEnv("ATR_PERIOD", 14),
		ATRHistoryMult:    intFromEnv("ATR_HISTORY_MULT", 4),
		RSIPeriod:         intFromEnv("RSI_PERIOD", 14),
		RSIOverbought:     floatFromEnv("RSI_OVERBOUGHT", 70),
		RSIOversold:       floatFromEnv("RSI_OVERSOLD", 30),
		SwingSide:         intFromEnv("SWING_SIDE", 2),
		SwingWindow:       intFromEnv("SWING_WINDOW", 20),
		CrossMinGap:       floatFromEnv("CROSS_MIN_GAP", 0.0),
		CrossSlopeThresh:  floatFromEnv("CROSS_SLOPE_THRESHOLD", 0.0),
		CrossSlopeSamples: intFromEnv("CROSS_SLOPE_SAMPLES", 5),

		Strategy: getenvDefault("STRATEGY", "ema_cross"),

		RiskMode: getenvDefault("RISK_MODE", "atr"),
		TPPct:    floatFromEnv("TP_PCT", 1.2),
		SLPct:    floatFromEnv("SL_PCT", 0.5),
		TPMult:   floatFromEnv("TP_MULT", 3.0),
		SLMult:   floatFromEnv("SL_MULT", 1.5),
		UnitSize: floatFromEnv("UNIT_SIZE", 1.0),

		InitialBalance: floatFromEnv("INITIAL_BALANCE", 1000),
		Cooldown:       durationFromEnv("COOLDOWN", "3m"),

		HealthAddr: getenvDefault("HEALTH_ADDR", ":8080"),
		LogLevel:   getenvDefault("LOG_LEVEL", "info"),
	}

	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}
	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Mode != ModeBacktest && c.Mode != ModeRealtime {
		return fmt.Errorf("unknown mode: %q", c.Mode)
	}
	if !market.ValidTimeframe(c.Timeframe) {
		return fmt.Errorf("unsupported timeframe: %q", c.Timeframe)
	}
	if c.EMAFast >= c.EMASlow {
		return fmt.Errorf("ema_fast must be < ema_slow")
	}
	if c.WarmupCandles <= 0 {
		return fmt.Errorf("warmup_candles must be > 0")
	}
	if c.Mode == ModeBacktest && c.CSVPath == "" {
		return fmt.Errorf("csv_path is required in backtest mode")
	}
	return nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
