package esiclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/evesi/esiclient/pkg/backoff"
	"github.com/evesi/esiclient/pkg/esimodel"
)

func TestComputeRetryDelayUsesIntegerRetryAfter(t *testing.T) {
	c := &Client{}
	resp := &esimodel.Response{Headers: map[string]string{"retry-after": "5"}}

	got := c.computeRetryDelay(resp, time.Now(), constSeq(0), constSeq(0))
	if got != 5*time.Second {
		t.Fatalf("computeRetryDelay() = %v, want 5s", got)
	}
}

func TestComputeRetryDelayUsesHTTPDateRetryAfter(t *testing.T) {
	c := &Client{}
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	retryAt := date.Add(10 * time.Second)

	resp := &esimodel.Response{Headers: map[string]string{
		"retry-after": retryAt.Format(http.TimeFormat),
		"date":        date.Format(http.TimeFormat),
	}}

	got := c.computeRetryDelay(resp, time.Now(), constSeq(0), constSeq(0))
	want := 10*time.Second + 1000*time.Millisecond
	if got != want {
		t.Fatalf("computeRetryDelay() = %v, want %v", got, want)
	}
}

func TestComputeRetryDelaySelectsHighSequenceOnErrorBudget(t *testing.T) {
	c := &Client{}
	resp := &esimodel.Response{Headers: map[string]string{"x-esi-error-limit-reset": "60"}}

	got := c.computeRetryDelay(resp, time.Now(), constSeq(1*time.Second), constSeq(9*time.Second))
	if got != 9*time.Second {
		t.Fatalf("computeRetryDelay() = %v, want the high sequence's 9s", got)
	}
}

func TestComputeRetryDelayDefaultsToLowSequence(t *testing.T) {
	c := &Client{}
	resp := &esimodel.Response{Headers: map[string]string{}}

	got := c.computeRetryDelay(resp, time.Now(), constSeq(1*time.Second), constSeq(9*time.Second))
	if got != 1*time.Second {
		t.Fatalf("computeRetryDelay() = %v, want the low sequence's 1s", got)
	}
}

func TestErrorMessageUsesDataError(t *testing.T) {
	resp := &esimodel.Response{Status: 420, Data: map[string]any{"error": "error limited"}}
	if got := errorMessage(resp); got != "error limited" {
		t.Fatalf("errorMessage() = %q", got)
	}
}

func TestErrorMessageFallsBackToStatus(t *testing.T) {
	resp := &esimodel.Response{Status: 404}
	if got := errorMessage(resp); got != "Response code 404" {
		t.Fatalf("errorMessage() = %q", got)
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, s := range []int{502, 503, 504} {
		if !isTransientStatus(s) {
			t.Fatalf("expected %d to be transient", s)
		}
	}
	for _, s := range []int{200, 400, 404, 500} {
		if isTransientStatus(s) {
			t.Fatalf("expected %d to not be transient", s)
		}
	}
}

type constSeq time.Duration

func (c constSeq) Next() time.Duration { return time.Duration(c) }

var _ backoff.Sequence = constSeq(0)
