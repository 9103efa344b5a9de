package main

import "testing"

func TestRootCmdRequiresExactlyOneArg(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{})
	if err := cmd.Args(cmd, []string{}); err == nil {
		t.Fatal("expected an error when no path argument is given")
	}
	if err := cmd.Args(cmd, []string{"/v1/status/"}); err != nil {
		t.Fatalf("expected a single path argument to be accepted: %v", err)
	}
}

func TestRootCmdDefaultFlags(t *testing.T) {
	cmd := newRootCmd()

	baseURL, err := cmd.Flags().GetString("base-url")
	if err != nil || baseURL != "https://esi.evetech.net" {
		t.Fatalf("base-url default = %q, err=%v", baseURL, err)
	}

	maxRetries, err := cmd.Flags().GetInt("max-retries")
	if err != nil || maxRetries != 3 {
		t.Fatalf("max-retries default = %d, err=%v", maxRetries, err)
	}
}
