// Package transport maintains the HTTP/2 session(s) the esiclient pipeline
// sends requests over: dialing, reconnect-with-backoff, and queueing
// requests made while no session is ready. A Connection implements
// http.RoundTripper so the layers above it never need to know whether a
// given call had to wait for a reconnect.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/evesi/esiclient/pkg/backoff"
	"github.com/evesi/esiclient/pkg/esimodel"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

type connState int32

const (
	stateAbsent connState = iota
	stateConnecting
	stateReady
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAbsent:
		return "absent"
	case stateConnecting:
		return "connecting"
	case stateReady:
		return "ready"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// pendingRequest is a request queued while the session is not ready.
type pendingRequest struct {
	enqueuedAt time.Time
	result     chan pendingResult
}

type pendingResult struct {
	conn *http2.ClientConn
	err  error
}

// Connection presents a single request(headers) -> stream operation over
// one multiplexed HTTP/2 session, per spec §4.1.
type Connection struct {
	id       string
	settings Settings
	t        *http2.Transport
	logger   zerolog.Logger

	mu     sync.Mutex
	state  connState
	conn   *http2.ClientConn
	queue  []*pendingRequest
	closed bool
	done   chan struct{}
}

// New creates a Connection and immediately begins connecting, per spec
// §3 ("immediately attempts to connect").
func New(id string, settings Settings, logger zerolog.Logger) *Connection {
	if settings.ReconnectDelay == nil {
		settings.ReconnectDelay = backoff.DefaultReconnectDelay()
	}
	if settings.MaxPendingTime <= 0 {
		settings.MaxPendingTime = DefaultSettings().MaxPendingTime
	}
	c := &Connection{
		id:       id,
		settings: settings,
		t:        settings.http2Transport(),
		logger:   logger.With().Str("component", "transport").Str("connection", id).Logger(),
		done:     make(chan struct{}),
	}
	go c.reconnectLoop()
	return c
}

// RoundTrip implements http.RoundTripper. It blocks until a stream is
// available (acquiring the session, queueing if necessary) and then issues
// the request on it.
func (c *Connection) RoundTrip(req *http.Request) (*http.Response, error) {
	cc, err := c.acquire(req.Context())
	if err != nil {
		return nil, err
	}
	resp, err := cc.RoundTrip(req)
	if err != nil && isSessionFatal(err) {
		c.markBroken(cc)
	}
	return resp, err
}

// acquire returns a usable *http2.ClientConn, queueing the caller if the
// session is not currently READY.
func (c *Connection) acquire(ctx context.Context) (*http2.ClientConn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("esi: connection closed")
	}
	if c.ready() {
		cc := c.conn
		c.mu.Unlock()
		return cc, nil
	}
	pr := &pendingRequest{enqueuedAt: time.Now(), result: make(chan pendingResult, 1)}
	c.queue = append(c.queue, pr)
	PendingQueueDepth.WithLabelValues(c.id).Set(float64(len(c.queue)))
	c.mu.Unlock()

	select {
	case res := <-pr.result:
		return res.conn, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ready reports the spec's READY predicate: session exists, not
// connecting, not closed, not destroyed. Must be called with mu held.
func (c *Connection) ready() bool {
	return c.state == stateReady && c.conn != nil
}

// reconnectLoop is entered at construction and re-entered whenever the
// session is observed to have gone bad, per spec §4.1.
func (c *Connection) reconnectLoop() {
	gen := c.settings.ReconnectDelay()
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.state = stateConnecting
		c.mu.Unlock()
		ConnectionState.WithLabelValues(c.id).Set(float64(stateConnecting))

		cc, err := c.dial()
		if err != nil {
			ReconnectAttemptsTotal.WithLabelValues(c.id, "failure").Inc()
			c.logger.Warn().Err(err).Msg("session dial failed")

			c.mu.Lock()
			c.rejectOld()
			c.mu.Unlock()

			delay := gen.Next()
			select {
			case <-time.After(delay):
				continue
			case <-c.done:
				return
			}
		}

		ReconnectAttemptsTotal.WithLabelValues(c.id, "success").Inc()
		c.logger.Info().Msg("session established")

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			cc.Close()
			return
		}
		c.conn = cc
		c.state = stateReady
		pending := c.queue
		c.queue = nil
		c.mu.Unlock()
		ConnectionState.WithLabelValues(c.id).Set(float64(stateReady))
		PendingQueueDepth.WithLabelValues(c.id).Set(0)

		for _, pr := range pending {
			pr.result <- pendingResult{conn: cc}
		}
		return
	}
}

// rejectOld evicts the contiguous prefix of the queue older than
// max_pending_time, preserving FIFO order of the survivors. Must be
// called with mu held.
func (c *Connection) rejectOld() {
	now := time.Now()
	splitAt := len(c.queue)
	for i, pr := range c.queue {
		if now.Sub(pr.enqueuedAt) < c.settings.MaxPendingTime {
			splitAt = i
			break
		}
	}
	rejected := c.queue[:splitAt]
	c.queue = c.queue[splitAt:]
	PendingQueueDepth.WithLabelValues(c.id).Set(float64(len(c.queue)))
	if len(rejected) > 0 {
		QueueRejectionsTotal.WithLabelValues(c.id).Add(float64(len(rejected)))
	}
	for _, pr := range rejected {
		waited := now.Sub(pr.enqueuedAt)
		pr.result <- pendingResult{err: &esimodel.ConnectionTimeoutError{Waited: waited}}
	}
}

// markBroken drops the current session and starts a fresh reconnect loop,
// if cc is still the connection in use. Stream-level errors from cc.RoundTrip
// surface directly to the caller; only the session transition is handled
// here (spec §4.1's "session errors are swallowed at the listener level").
func (c *Connection) markBroken(cc *http2.ClientConn) {
	c.mu.Lock()
	if c.closed || c.conn != cc {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = stateAbsent
	c.mu.Unlock()
	ConnectionState.WithLabelValues(c.id).Set(float64(stateAbsent))
	go c.reconnectLoop()
}

// Close tears down the session and rejects every currently queued request.
// Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = stateClosed
	cc := c.conn
	c.conn = nil
	pending := c.queue
	c.queue = nil
	close(c.done)
	c.mu.Unlock()

	ConnectionState.WithLabelValues(c.id).Set(float64(stateClosed))
	PendingQueueDepth.WithLabelValues(c.id).Set(0)

	for _, pr := range pending {
		pr.result <- pendingResult{err: errors.New("esi: connection closed")}
	}
	if cc != nil {
		return cc.Close()
	}
	return nil
}

func (c *Connection) dial() (*http2.ClientConn, error) {
	addr, err := c.settings.dialAddress()
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", c.settings.BaseURL, err)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	dialer := &tls.Dialer{Config: &tls.Config{
		ServerName:         host,
		NextProtos:         []string{"h2"},
		InsecureSkipVerify: c.settings.InsecureSkipVerify,
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	cc, err := c.t.NewClientConn(rawConn)
	if err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("establish http2 session: %w", err)
	}
	return cc, nil
}

func isSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, http2.ErrClientConnClosing) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
