// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ChainID     string `mapstructure:"chain_id"`
	PostgresURL string `mapstructure:"postgres_url"`

	CreationFee           uint64 `mapstructure:"creation_fee"`
	MaxCreationFee        uint64 `mapstructure:"max_creation_fee"`
	TradingFeeBp          uint32 `mapstructure:"trading_fee_bp"`
	PlatformFeeBp         uint32 `mapstructure:"platform_fee_bp"`
	CreatorFeeBp          uint32 `mapstructure:"creator_fee_bp"`
	MaxInitialBuyBp       uint32 `mapstructure:"max_initial_buy_bp"`
	GraduationThresholdBp uint32 `mapstructure:"graduation_threshold_bp"`

	VirtualBaseReserve    uint64 `mapstructure:"virtual_base_reserve"`
	VirtualTokenReserveBp uint32 `mapstructure:"virtual_token_reserve_bp"`

	BaseDecimals  int32 `mapstructure:"base_decimals"`
	TokenDecimals int32 `mapstructure:"token_decimals"`

	RequestExpirySec    int `mapstructure:"request_expiry_sec"`
	MaxDeadlineDriftSec int `mapstructure:"max_deadline_drift_sec"`

	FeeReceiver      string `mapstructure:"fee_receiver"`
	MarginReceiver   string `mapstructure:"margin_receiver"`
	PlatformReceiver string `mapstructure:"platform_receiver"`
	FallbackReceiver string `mapstructure:"fallback_receiver"`

	EventBufferSize int  `mapstructure:"event_buffer_size"`
	DebugLogging    bool `mapstructure:"debug_logging"`
	LogFile         string `mapstructure:"log_file"`
}

const (
	DefaultTradingFeeBp          = 100
	DefaultPlatformFeeBp         = 500
	DefaultCreatorFeeBp          = 200
	DefaultMaxInitialBuyBp       = 5000
	DefaultGraduationThresholdBp = 1500
	DefaultVirtualBaseReserve    = 30_000_000_000
	DefaultVirtualTokenReserveBp = 13000
	DefaultRequestExpirySec      = 300
	DefaultMaxDeadlineDriftSec   = 3600
	DefaultEventBufferSize       = 1024
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"chain_id":                 "launchpad-dev",
		"trading_fee_bp":           DefaultTradingFeeBp,
		"platform_fee_bp":          DefaultPlatformFeeBp,
		"creator_fee_bp":           DefaultCreatorFeeBp,
		"max_initial_buy_bp":       DefaultMaxInitialBuyBp,
		"graduation_threshold_bp":  DefaultGraduationThresholdBp,
		"virtual_base_reserve":     DefaultVirtualBaseReserve,
		"virtual_token_reserve_bp": DefaultVirtualTokenReserveBp,
		"base_decimals":            9,
		"token_decimals":           6,
		"request_expiry_sec":       DefaultRequestExpirySec,
		"max_deadline_drift_sec":   DefaultMaxDeadlineDriftSec,
		"event_buffer_size":        DefaultEventBufferSize,
		"max_creation_fee":         uint64(1_000_000_000),
		"log_file":                 "launchpad.log",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.ChainID == "" {
		return errors.New("missing chain_id in configuration")
	}
	if cfg.FallbackReceiver == "" {
		return errors.New("missing fallback_receiver in configuration")
	}
	if cfg.TradingFeeBp > 200 {
		return errors.New("trading_fee_bp above hard cap")
	}
	if cfg.GraduationThresholdBp == 0 || cfg.GraduationThresholdBp >= 10000 {
		return errors.New("invalid graduation_threshold_bp")
	}
	if cfg.VirtualBaseReserve == 0 {
		return errors.New("invalid virtual_base_reserve")
	}
	if cfg.VirtualTokenReserveBp < 10000 {
		return errors.New("virtual_token_reserve_bp below sale amount")
	}
	if cfg.RequestExpirySec <= 0 || cfg.MaxDeadlineDriftSec <= 0 {
		return errors.New("invalid expiry window")
	}
	if cfg.EventBufferSize <= 0 {
		return errors.New("invalid event_buffer_size")
	}
	return nil
}

// RequestExpiry returns the signed-request expiry window as a duration.
func (c *Config) RequestExpiry() time.Duration {
	return time.Duration(c.RequestExpirySec) * time.Second
}

// MaxDeadlineDrift returns the trade-deadline drift bound as a duration.
func (c *Config) MaxDeadlineDrift() time.Duration {
	return time.Duration(c.MaxDeadlineDriftSec) * time.Second
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envChain := v.GetString("CHAIN_ID"); envChain != "" {
		cfg.ChainID = envChain
	}
	if envPostgres := v.GetString("POSTGRES_URL"); envPostgres != "" {
		cfg.PostgresURL = envPostgres
	}
	if envFallback := v.GetString("FALLBACK_RECEIVER"); envFallback != "" {
		cfg.FallbackReceiver = envFallback
	}
}
