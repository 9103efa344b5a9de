package esiclient

import (
	"net/http"
	"time"

	"github.com/evesi/esiclient/pkg/backoff"
	"github.com/evesi/esiclient/pkg/transport"
	"github.com/rs/zerolog"
)

// DefaultStripHeaders is removed from every response before it reaches the
// caller, per spec §6.
var DefaultStripHeaders = []string{
	"access-control-allow-credentials",
	"access-control-allow-headers",
	"access-control-allow-methods",
	"access-control-allow-origin",
	"access-control-expose-headers",
	"access-control-max-age",
	"strict-transport-security",
}

// Config is the facade's constructor configuration, spec §6.
type Config struct {
	// Connection, if set, is used verbatim instead of building one from
	// ConnectionSettings/PoolSize.
	Connection http.RoundTripper

	ConnectionSettings transport.Settings

	// PoolSize selects a transport.Pool over a single transport.Connection
	// when greater than 1.
	PoolSize int

	DefaultHeaders map[string]string
	DefaultQuery   map[string]string

	MaxTime time.Duration

	// MaxRetries is additional attempts beyond the first; zero means
	// exactly one attempt. Use DefaultConfig for the spec default of 3.
	MaxRetries int

	RetryDelayLow  backoff.Factory
	RetryDelayHigh backoff.Factory
	PageSplitDelay backoff.PageSplitDelay

	StripHeaders []string

	Logger zerolog.Logger

	// DisableTracing skips wrapping the transport with OpenTelemetry's
	// otelhttp instrumentation.
	DisableTracing bool
}

// DefaultConfig returns the spec's default configuration, talking to the
// production ESI host.
func DefaultConfig() Config {
	return Config{
		ConnectionSettings: transport.DefaultSettings(),
		PoolSize:           1,
		MaxTime:            10 * time.Second,
		MaxRetries:         3,
		RetryDelayLow:      backoff.DefaultRetryDelayLow(),
		RetryDelayHigh:     backoff.DefaultRetryDelayHigh(),
		PageSplitDelay:     backoff.DefaultPageSplitDelay,
		StripHeaders:       append([]string(nil), DefaultStripHeaders...),
		Logger:             zerolog.Nop(),
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxTime <= 0 {
		c.MaxTime = d.MaxTime
	}
	if c.RetryDelayLow == nil {
		c.RetryDelayLow = d.RetryDelayLow
	}
	if c.RetryDelayHigh == nil {
		c.RetryDelayHigh = d.RetryDelayHigh
	}
	if c.PageSplitDelay == nil {
		c.PageSplitDelay = d.PageSplitDelay
	}
	if c.StripHeaders == nil {
		c.StripHeaders = d.StripHeaders
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 1
	}
	if c.ConnectionSettings.BaseURL == "" {
		c.ConnectionSettings = transport.DefaultSettings()
	}
}
