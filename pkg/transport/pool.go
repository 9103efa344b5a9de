package transport

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Pool round-robins requests across N Connections constructed with
// identical settings, to exceed a single session's concurrent-stream
// limit. No health-aware dispatch, by design: spec §4.2.
type Pool struct {
	conns []*Connection
	next  atomic.Uint64
}

// NewPool builds a Pool of size connections, each dialing independently
// and immediately.
func NewPool(size int, settings Settings, logger zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{conns: make([]*Connection, size)}
	for i := range p.conns {
		p.conns[i] = New(fmt.Sprintf("pool-%d", i), settings, logger)
	}
	return p
}

// RoundTrip implements http.RoundTripper by atomically advancing the
// dispatch index and delegating to sessions[index mod N].
func (p *Pool) RoundTrip(req *http.Request) (*http.Response, error) {
	i := p.next.Add(1) - 1
	conn := p.conns[i%uint64(len(p.conns))]
	return conn.RoundTrip(req)
}

// Close closes every Connection in the pool.
func (p *Pool) Close() error {
	var firstErr error
	for _, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
