package esimodel

import (
	"errors"
	"testing"
)

func TestConnectionTimeoutErrorUnwrapsToSentinel(t *testing.T) {
	err := &ConnectionTimeoutError{}
	if !errors.Is(err, ErrConnTimeout) {
		t.Fatal("expected errors.Is to match ErrConnTimeout")
	}
}

func TestRetryLimitErrorUnwrapsToSentinel(t *testing.T) {
	err := &RetryLimitError{Attempts: 3, Err: errors.New("status 503")}
	if !errors.Is(err, ErrRetryLimit) {
		t.Fatal("expected errors.Is to match ErrRetryLimit")
	}
}

func TestPageSplitErrorCarriesResponses(t *testing.T) {
	pages := []*Response{{Status: 200}, {Status: 200}}
	err := &PageSplitError{Pages: pages}

	if !errors.Is(err, ErrPageSplit) {
		t.Fatal("expected errors.Is to match ErrPageSplit")
	}
	var pr PartialResponses = err
	if len(pr.Responses()) != 2 {
		t.Fatalf("Responses() returned %d entries, want 2", len(pr.Responses()))
	}
}

func TestPartialPagesErrorImplementsPartialResponses(t *testing.T) {
	pages := []*Response{{Status: 200}}
	err := &PartialPagesError{Err: errors.New("chunk 2: boom"), Pages: pages}

	var pr PartialResponses = err
	if len(pr.Responses()) != 1 {
		t.Fatalf("Responses() returned %d entries, want 1", len(pr.Responses()))
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty Error()")
	}
}

func TestConfigurationErrorPrefersErrOverMessage(t *testing.T) {
	err := &ConfigurationError{Message: "ignored", Err: errors.New("missing path parameter")}
	if got := err.Error(); got != "esi: configuration error: missing path parameter" {
		t.Fatalf("Error() = %q", got)
	}
}
