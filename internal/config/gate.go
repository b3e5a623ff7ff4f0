package config

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GateConfig holds the session-gate tunables. They live in gate.yml rather
// than the environment because operators adjust them at runtime (cookie
// budgets, retry bounds) without restarting every portal backend.
type GateConfig struct {
	// CookieChunkSize is the per-cookie byte budget for chunked session
	// credentials. Kept well below the 4096-byte cookie ceiling so the
	// attribute overhead (Domain, Path, flags) always fits.
	CookieChunkSize int `mapstructure:"cookieChunkSize"`

	// Session re-validation retry bounds. Right after a cross-subdomain
	// login redirect the cookie may not be visible to the first request,
	// so absence is re-checked a bounded number of times.
	SessionRetryAttempts int           `mapstructure:"sessionRetryAttempts"`
	SessionRetryInitial  time.Duration `mapstructure:"sessionRetryInitial"`
	SessionRetryMax      time.Duration `mapstructure:"sessionRetryMax"`

	// BootstrapTimeout bounds a full tenant+session+profile resolution
	// pass. When it fires the loading flag is forced off.
	BootstrapTimeout time.Duration `mapstructure:"bootstrapTimeout"`

	// EnforceTenantMatch requires a profile's tenant_id to match the
	// host-resolved tenant before any module is granted. Off by default.
	EnforceTenantMatch bool `mapstructure:"enforceTenantMatch"`
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		CookieChunkSize:      3180,
		SessionRetryAttempts: 4,
		SessionRetryInitial:  80 * time.Millisecond,
		SessionRetryMax:      500 * time.Millisecond,
		BootstrapTimeout:     10 * time.Second,
		EnforceTenantMatch:   false,
	}
}

// GateConfigHolder exposes the current GateConfig and hot-reloads it when
// gate.yml changes on disk.
type GateConfigHolder struct {
	current atomic.Value // holds GateConfig
}

func NewGateConfigHolder(log *zap.Logger) (*GateConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("gate")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/stackdesk/config")
	v.AddConfigPath("/etc/stackdesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STACKDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	holder := &GateConfigHolder{}
	holder.store(readGateConfig(v, log))

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg := readGateConfig(v, log)
		holder.store(cfg)
		if log != nil {
			log.Info("gate config reloaded", zap.String("file", e.Name))
		}
	})
	v.WatchConfig()

	return holder, nil
}

// StaticGateConfigHolder pins a holder to cfg without watching the
// filesystem, for tests and one-shot tooling.
func StaticGateConfigHolder(cfg GateConfig) *GateConfigHolder {
	holder := &GateConfigHolder{}
	holder.store(sanitizeGateConfig(cfg))
	return holder
}

// Current returns the live GateConfig snapshot.
func (h *GateConfigHolder) Current() GateConfig {
	if v, ok := h.current.Load().(GateConfig); ok {
		return v
	}
	return DefaultGateConfig()
}

func (h *GateConfigHolder) store(cfg GateConfig) {
	h.current.Store(cfg)
}

func readGateConfig(v *viper.Viper, log *zap.Logger) GateConfig {
	cfg := DefaultGateConfig()
	if err := v.UnmarshalKey("gate", &cfg); err != nil {
		if log != nil {
			log.Warn("invalid gate config, keeping defaults", zap.Error(err))
		}
		return DefaultGateConfig()
	}
	return sanitizeGateConfig(cfg)
}

func sanitizeGateConfig(cfg GateConfig) GateConfig {
	def := DefaultGateConfig()
	if cfg.CookieChunkSize <= 0 || cfg.CookieChunkSize > 4000 {
		cfg.CookieChunkSize = def.CookieChunkSize
	}
	if cfg.SessionRetryAttempts <= 0 {
		cfg.SessionRetryAttempts = def.SessionRetryAttempts
	}
	if cfg.SessionRetryInitial <= 0 {
		cfg.SessionRetryInitial = def.SessionRetryInitial
	}
	if cfg.SessionRetryMax < cfg.SessionRetryInitial {
		cfg.SessionRetryMax = def.SessionRetryMax
	}
	if cfg.BootstrapTimeout <= 0 {
		cfg.BootstrapTimeout = def.BootstrapTimeout
	}
	return cfg
}
