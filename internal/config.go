package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	StepUp        StepUpConfig        `mapstructure:"step_up"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Reconcile     ReconcileConfig     `mapstructure:"reconcile"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// GatewayConfig describes the external card gateway. ConfirmTimeout is the
// per-call deadline for the authorization-confirmation and final-confirmation
// steps; gateway SLAs vary by environment, so it is a deployment-time
// parameter rather than a compile-time constant.
type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	APIKey         string        `mapstructure:"api_key"`
	MerchantID     string        `mapstructure:"merchant_id" validate:"required"`
	TerminalID     string        `mapstructure:"terminal_id"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

// DefaultConfirmTimeout matches the gateway's contractual response window.
const DefaultConfirmTimeout = 90 * time.Second

type StepUpConfig struct {
	ReturnURL   string        `mapstructure:"return_url" validate:"required,url"`
	TokenSecret string        `mapstructure:"token_secret" validate:"required,min=32"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ReconcileConfig struct {
	Schedule   string        `mapstructure:"schedule"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
	BatchSize  int           `mapstructure:"batch_size"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.StepUp.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("step-up config: %v", err))
	}

	if err := c.Reconcile.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("reconcile config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *GatewayConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if c.MerchantID == "" {
		return errors.New("merchant_id is required")
	}
	if c.ConfirmTimeout < 0 {
		return errors.New("confirm_timeout cannot be negative")
	}
	return nil
}

// EffectiveConfirmTimeout falls back to the contractual 90-second window when
// the deployment does not override it.
func (c *GatewayConfig) EffectiveConfirmTimeout() time.Duration {
	if c.ConfirmTimeout > 0 {
		return c.ConfirmTimeout
	}
	return DefaultConfirmTimeout
}

func (c *StepUpConfig) Validate() error {
	if c.ReturnURL == "" {
		return errors.New("return_url is required")
	}
	if _, err := url.Parse(c.ReturnURL); err != nil {
		return fmt.Errorf("invalid return_url: %w", err)
	}
	if len(c.TokenSecret) < 32 {
		return errors.New("token_secret must be at least 32 characters")
	}
	return nil
}

func (c *StepUpConfig) EffectiveTokenTTL() time.Duration {
	if c.TokenTTL > 0 {
		return c.TokenTTL
	}
	// the browser round trip has no hard in-process deadline, but the resume
	// token should not live forever
	return 30 * time.Minute
}

func (c *ReconcileConfig) Validate() error {
	if c.StaleAfter < 0 {
		return errors.New("stale_after cannot be negative")
	}
	if c.BatchSize < 0 {
		return errors.New("batch_size cannot be negative")
	}
	return nil
}

func (c *ReconcileConfig) EffectiveSchedule() string {
	if c.Schedule != "" {
		return c.Schedule
	}
	return "*/15 * * * *"
}

func (c *ReconcileConfig) EffectiveStaleAfter() time.Duration {
	if c.StaleAfter > 0 {
		return c.StaleAfter
	}
	return 30 * time.Minute
}

func (c *ReconcileConfig) EffectiveBatchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return 100
}
