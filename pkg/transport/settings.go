package transport

import (
	"net"
	"net/url"
	"time"

	"github.com/evesi/esiclient/pkg/backoff"
	"golang.org/x/net/http2"
)

// HTTP2Options exposes the subset of golang.org/x/net/http2.Transport
// tuning knobs callers are likely to want to override.
type HTTP2Options struct {
	MaxReadFrameSize           uint32
	StrictMaxConcurrentStreams bool
	ReadIdleTimeout            time.Duration
	PingTimeout                time.Duration
}

// Settings configures a Connection.
type Settings struct {
	// BaseURL is the API origin, e.g. "https://esi.evetech.net".
	BaseURL string

	HTTP2Options HTTP2Options

	// ReconnectDelay produces the backoff sequence used between failed
	// dial attempts. Re-instantiated fresh each time the reconnect loop
	// is (re-)entered.
	ReconnectDelay backoff.Factory

	// MaxPendingTime bounds how long a queued request may wait for the
	// session to become ready before it is rejected.
	MaxPendingTime time.Duration

	// InsecureSkipVerify disables TLS certificate verification; for tests
	// dialing a local mock server only.
	InsecureSkipVerify bool
}

// DefaultSettings returns the spec's default ConnectionSettings, pointed
// at production ESI.
func DefaultSettings() Settings {
	return Settings{
		BaseURL: "https://esi.evetech.net",
		HTTP2Options: HTTP2Options{
			MaxReadFrameSize: 1 << 20,
			ReadIdleTimeout:  30 * time.Second,
			PingTimeout:      15 * time.Second,
		},
		ReconnectDelay: backoff.DefaultReconnectDelay(),
		MaxPendingTime: 10 * time.Second,
	}
}

// dialAddress returns the host:port to dial for BaseURL, defaulting to
// :443 when BaseURL carries no explicit port.
func (s Settings) dialAddress() (string, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", err
	}
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}
	return host, nil
}

func (s Settings) http2Transport() *http2.Transport {
	return &http2.Transport{
		MaxReadFrameSize:           s.HTTP2Options.MaxReadFrameSize,
		StrictMaxConcurrentStreams: s.HTTP2Options.StrictMaxConcurrentStreams,
		ReadIdleTimeout:            s.HTTP2Options.ReadIdleTimeout,
		PingTimeout:                s.HTTP2Options.PingTimeout,
	}
}
