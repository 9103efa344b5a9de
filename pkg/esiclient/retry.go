package esiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/evesi/esiclient/pkg/backoff"
	"github.com/evesi/esiclient/pkg/esimodel"
)

func statusLabel(status int) string { return strconv.Itoa(status) }

// isTransientStatus reports whether status is one of the upstream statuses
// treated as retryable, per spec §4.4.
func isTransientStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryLoop drives singleExchange against path/opts, retrying transient
// upstream failures with backoff until it succeeds, exhausts max_retries,
// or exceeds max_time. Spec §4.4.
func (c *Client) retryLoop(ctx context.Context, path string, opts esimodel.RequestOptions) (*esimodel.Response, error) {
	attempts := c.maxRetries + 1
	deadline := time.Now().Add(c.maxTime)

	low := c.retryDelayLow()
	high := c.retryDelayHigh()

	start := time.Now()
	var last *esimodel.Response
	var lastErr error

	attempt := 1
	for ; attempt <= attempts; attempt++ {
		resp, err := c.singleExchange(ctx, path, opts)
		if err != nil {
			// Non-HTTP failures (dial, decode, config) are not classified
			// by status and do not participate in the retry-after dance;
			// surface them immediately.
			esiRequestsTotal.WithLabelValues("error").Inc()
			esiRequestDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return nil, err
		}
		last = resp

		if resp.Status >= 200 && resp.Status < 300 {
			esiRequestsTotal.WithLabelValues("success").Inc()
			esiRequestDurationSeconds.WithLabelValues("success").Observe(time.Since(start).Seconds())
			return resp, nil
		}
		if resp.Status == http.StatusNotModified {
			esiRequestsTotal.WithLabelValues("not_modified").Inc()
			esiRequestDurationSeconds.WithLabelValues("not_modified").Observe(time.Since(start).Seconds())
			return resp, nil
		}

		if !isTransientStatus(resp.Status) {
			esiRequestsTotal.WithLabelValues("http_error").Inc()
			esiRequestDurationSeconds.WithLabelValues("http_error").Observe(time.Since(start).Seconds())
			return nil, &esimodel.HTTPError{
				Response: resp,
				Status:   resp.Status,
				Message:  errorMessage(resp),
			}
		}

		esiRetriesTotal.WithLabelValues(statusLabel(resp.Status)).Inc()

		now := time.Now()
		delay := c.computeRetryDelay(resp, now, low, high)
		remaining := deadline.Sub(now)
		if delay > remaining || attempt == attempts {
			lastErr = fmt.Errorf("status %d", resp.Status)
			break
		}

		source := "low"
		if _, ok := resp.Header("x-esi-error-limit-reset"); ok {
			source = "high"
		}
		if _, ok := resp.Header("retry-after"); ok {
			source = "retry-after"
		}
		esiRetryBackoffSeconds.WithLabelValues(source).Observe(delay.Seconds())

		c.logger.Debug().Int("status", resp.Status).Dur("delay", delay).Int("attempt", attempt).
			Msg("retrying transient failure")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("status %d", last.Status)
	}
	esiRetryExhaustedTotal.WithLabelValues(statusLabel(last.Status)).Inc()
	esiRequestsTotal.WithLabelValues("retry_exhausted").Inc()
	esiRequestDurationSeconds.WithLabelValues("retry_exhausted").Observe(time.Since(start).Seconds())
	return nil, &esimodel.RetryLimitError{
		Response: last,
		Attempts: attempt,
		Err:      lastErr,
	}
}

// computeRetryDelay implements the retry-after-then-backoff selection rule
// from spec §4.4.
func (c *Client) computeRetryDelay(resp *esimodel.Response, now time.Time, low, high backoff.Sequence) time.Duration {
	if retryAfter, ok := resp.Header("retry-after"); ok && retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if at, err := http.ParseTime(retryAfter); err == nil {
			base := now
			if dateHdr, ok := resp.Header("date"); ok {
				if d, err := http.ParseTime(dateHdr); err == nil {
					base = d
				}
			}
			return at.Sub(base) + 1000*time.Millisecond
		}
	}
	if _, ok := resp.Header("x-esi-error-limit-reset"); ok {
		return high.Next()
	}
	return low.Next()
}

func (c *Client) retryDelayLow() backoff.Sequence  { return c.retryDelayLowFactory() }
func (c *Client) retryDelayHigh() backoff.Sequence { return c.retryDelayHighFactory() }

// errorMessage derives the message for a non-retryable failure: data.error
// when present, else "Response code N".
func errorMessage(resp *esimodel.Response) string {
	if m, ok := resp.Data.(map[string]any); ok {
		if e, ok := m["error"].(string); ok && e != "" {
			return e
		}
	}
	return fmt.Sprintf("Response code %d", resp.Status)
}
