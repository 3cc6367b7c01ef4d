// Package config defines all configuration for the matching engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via MATCHENGINE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Assets      []AssetConfig     `mapstructure:"assets"`
	Markets     []MarketConfig    `mapstructure:"markets"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Sink        SinkConfig        `mapstructure:"sink"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// AssetConfig is one entry of the asset registry (C3), loaded at startup.
type AssetConfig struct {
	ID        string `mapstructure:"id"`
	Symbol    string `mapstructure:"symbol"`
	Name      string `mapstructure:"name"`
	PrecStore int32  `mapstructure:"prec_store"`
	PrecShow  int32  `mapstructure:"prec_show"`
}

// MarketConfig is one tradeable market, loaded at startup or via
// reload_markets. MinAmount is a decimal literal, parsed by the caller
// (internal/engine) once internal/money is in scope — config itself stays
// string-typed at the boundary, matching the teacher's own wire-shaped
// config structs.
type MarketConfig struct {
	Name       string `mapstructure:"name"`
	Base       string `mapstructure:"base"`
	Quote      string `mapstructure:"quote"`
	AmountPrec int32  `mapstructure:"amount_prec"`
	PricePrec  int32  `mapstructure:"price_prec"`
	FeePrec    int32  `mapstructure:"fee_prec"`
	MinAmount  string `mapstructure:"min_amount"`
}

// EngineConfig tunes the controller/matching-engine behavior (§4.6–§4.8).
type EngineConfig struct {
	DisableSelfTrade   bool `mapstructure:"disable_self_trade"`
	DisableMarketOrder bool `mapstructure:"disable_market_order"`
	UserOrderNumLimit  int  `mapstructure:"user_order_num_limit"`
}

// PersistenceConfig controls the operation log, snapshots, and startup
// replay (C9, C11).
type PersistenceConfig struct {
	OpLogPath       string        `mapstructure:"op_log_path"`
	SnapshotDir     string        `mapstructure:"snapshot_dir"`
	PersistInterval time.Duration `mapstructure:"persist_interval"`
	MarketFromDB    bool          `mapstructure:"market_from_db"`
}

// SinkConfig wires the EventSink implementations the controller reports
// to (C10). An empty path/zero buffer disables that particular sink.
type SinkConfig struct {
	FilePath         string `mapstructure:"file_path"`
	MessageBusBuffer int    `mapstructure:"message_bus_buffer"`
	DBPath           string `mapstructure:"db_path"`
	DBQueueCapacity  int    `mapstructure:"db_queue_capacity"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MATCHENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("engine.user_order_num_limit", 0)
	v.SetDefault("persistence.persist_interval", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dir := os.Getenv("MATCHENGINE_SNAPSHOT_DIR"); dir != "" {
		cfg.Persistence.SnapshotDir = dir
	}
	if path := os.Getenv("MATCHENGINE_OP_LOG_PATH"); path != "" {
		cfg.Persistence.OpLogPath = path
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Assets) == 0 {
		return fmt.Errorf("assets: at least one asset is required")
	}
	seenAssets := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if a.ID == "" {
			return fmt.Errorf("assets: id is required")
		}
		seenAssets[a.ID] = true
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("markets: at least one market is required")
	}
	for _, m := range c.Markets {
		if m.Name == "" {
			return fmt.Errorf("markets: name is required")
		}
		if !seenAssets[m.Base] {
			return fmt.Errorf("market %q: base asset %q is not in assets", m.Name, m.Base)
		}
		if !seenAssets[m.Quote] {
			return fmt.Errorf("market %q: quote asset %q is not in assets", m.Name, m.Quote)
		}
	}
	if c.Engine.UserOrderNumLimit < 0 {
		return fmt.Errorf("engine.user_order_num_limit must be >= 0 (0 = unlimited)")
	}
	if c.Persistence.OpLogPath == "" {
		return fmt.Errorf("persistence.op_log_path is required")
	}
	if c.Persistence.SnapshotDir == "" {
		return fmt.Errorf("persistence.snapshot_dir is required")
	}
	if c.Persistence.PersistInterval <= 0 {
		return fmt.Errorf("persistence.persist_interval must be > 0")
	}
	return nil
}
