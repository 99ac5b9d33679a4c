package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ClaimsConfig carries the engine tunables that operators may change at runtime.
type ClaimsConfig struct {
	PollInterval      time.Duration `mapstructure:"pollInterval"`
	PollTick          time.Duration `mapstructure:"pollTick"`
	ErrorMaxLength    int           `mapstructure:"errorMaxLength"`
	HistoryDepth      int           `mapstructure:"historyDepth"`
	RenderFormat      string        `mapstructure:"renderFormat"`
	PaymentMaxRetries int           `mapstructure:"paymentMaxRetries"`
	SubmitLockTTL     time.Duration `mapstructure:"submitLockTTL"`
	CacheTTL          time.Duration `mapstructure:"cacheTTL"`
	CacheMaxEntries   int           `mapstructure:"cacheMaxEntries"`
}

const MimeTypePDF = "application/pdf"

func DefaultClaimsConfig() ClaimsConfig {
	return ClaimsConfig{
		PollInterval:      4 * time.Second,
		PollTick:          250 * time.Millisecond,
		ErrorMaxLength:    255,
		HistoryDepth:      3,
		RenderFormat:      MimeTypePDF,
		PaymentMaxRetries: 5,
		SubmitLockTTL:     30 * time.Second,
		CacheTTL:          5 * time.Minute,
		CacheMaxEntries:   256,
	}
}

// WithDefaults fills zero values from DefaultClaimsConfig.
func (c ClaimsConfig) WithDefaults() ClaimsConfig {
	d := DefaultClaimsConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.PollTick <= 0 {
		c.PollTick = d.PollTick
	}
	if c.ErrorMaxLength <= 0 {
		c.ErrorMaxLength = d.ErrorMaxLength
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = d.HistoryDepth
	}
	if strings.TrimSpace(c.RenderFormat) == "" {
		c.RenderFormat = d.RenderFormat
	}
	if c.PaymentMaxRetries <= 0 {
		c.PaymentMaxRetries = d.PaymentMaxRetries
	}
	if c.SubmitLockTTL <= 0 {
		c.SubmitLockTTL = d.SubmitLockTTL
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = d.CacheMaxEntries
	}
	return c
}

type ClaimsConfigHolder struct {
	current atomic.Value // holds ClaimsConfig
}

// NewStaticClaimsConfigHolder returns a holder that never reloads.
func NewStaticClaimsConfigHolder(cfg ClaimsConfig) *ClaimsConfigHolder {
	holder := &ClaimsConfigHolder{}
	holder.current.Store(cfg.WithDefaults())
	return holder
}

// NewClaimsConfigHolder reads claims.yml and watches it for changes.
func NewClaimsConfigHolder(log *zap.Logger) (*ClaimsConfigHolder, error) {
	log = log.Named("claims.config")
	v := viper.New()

	v.SetConfigName("claims")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/claimflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLAIMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultClaimsConfig()
	v.SetDefault("claims.pollInterval", defaults.PollInterval)
	v.SetDefault("claims.pollTick", defaults.PollTick)
	v.SetDefault("claims.errorMaxLength", defaults.ErrorMaxLength)
	v.SetDefault("claims.historyDepth", defaults.HistoryDepth)
	v.SetDefault("claims.renderFormat", defaults.RenderFormat)
	v.SetDefault("claims.paymentMaxRetries", defaults.PaymentMaxRetries)
	v.SetDefault("claims.submitLockTTL", defaults.SubmitLockTTL)
	v.SetDefault("claims.cacheTTL", defaults.CacheTTL)
	v.SetDefault("claims.cacheMaxEntries", defaults.CacheMaxEntries)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg ClaimsConfig
	if err := v.UnmarshalKey("claims", &cfg); err != nil {
		return nil, err
	}
	if err := validateClaimsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ClaimsConfigHolder{}
	holder.current.Store(cfg.WithDefaults())

	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ClaimsConfig
		if err := v.UnmarshalKey("claims", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateClaimsConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated.WithDefaults())
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ClaimsConfigHolder) Get() ClaimsConfig {
	return h.current.Load().(ClaimsConfig)
}

func validateClaimsConfig(cfg ClaimsConfig) error {
	if cfg.PollTick > 0 && cfg.PollInterval > 0 && cfg.PollTick > cfg.PollInterval {
		return errors.New("claims.pollTick must not exceed claims.pollInterval")
	}
	if cfg.ErrorMaxLength < 0 {
		return errors.New("claims.errorMaxLength cannot be negative")
	}
	if cfg.HistoryDepth < 0 {
		return errors.New("claims.historyDepth cannot be negative")
	}
	return nil
}
