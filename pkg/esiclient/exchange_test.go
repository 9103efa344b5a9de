package esiclient

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"testing"

	"github.com/evesi/esiclient/pkg/esimodel"
)

func TestRenderPathSubstitutesPlaceholders(t *testing.T) {
	got, err := renderPath("/v1/characters/{character_id}/assets/", map[string]string{"character_id": "12345"})
	if err != nil {
		t.Fatalf("renderPath returned error: %v", err)
	}
	if got != "/v1/characters/12345/assets/" {
		t.Fatalf("renderPath() = %q", got)
	}
}

func TestRenderPathFailsOnMissingParameter(t *testing.T) {
	_, err := renderPath("/v1/characters/{character_id}/assets/", nil)
	if err == nil {
		t.Fatal("expected a ConfigurationError for a missing path parameter")
	}
	cfgErr, ok := err.(*esimodel.ConfigurationError)
	if !ok {
		t.Fatalf("expected *esimodel.ConfigurationError, got %T", err)
	}
	if cfgErr.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestStripHeadersRemovesConfiguredNames(t *testing.T) {
	h := http.Header{}
	h.Set("ETag", `"abc"`)
	h.Set("Access-Control-Allow-Origin", "*")

	out := stripHeaders(h, []string{"access-control-allow-origin"})

	if _, ok := out["access-control-allow-origin"]; ok {
		t.Fatal("expected stripped header to be absent")
	}
	if out["etag"] != `"abc"` {
		t.Fatalf("expected surviving header to be lowercased, got %#v", out)
	}
}

func TestApplyHeadersPerCallOverridesDefaultRegardlessOfCase(t *testing.T) {
	c := &Client{
		defaultHeaders: map[string]string{"user-agent": "default-agent/1.0"},
	}
	httpReq, err := http.NewRequest(http.MethodGet, "https://esi.evetech.net/v1/status/", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	opts := esimodel.RequestOptions{Headers: map[string]string{"User-Agent": "call-site-agent/2.0"}}
	if err := c.applyHeaders(httpReq, opts, "req-1"); err != nil {
		t.Fatalf("applyHeaders returned error: %v", err)
	}

	if got := httpReq.Header.Get("User-Agent"); got != "call-site-agent/2.0" {
		t.Fatalf("User-Agent = %q, want the call-site value to win over the differently-cased default", got)
	}
}

func TestDecompressBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(`{"ok":true}`))
	gz.Close()

	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"gzip"}},
		Body:   &readCloser{bytes.NewReader(buf.Bytes())},
	}

	body, err := decompressBody(resp)
	if err != nil {
		t.Fatalf("decompressBody returned error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("decompressBody() = %q", body)
	}
}

type readCloser struct{ *bytes.Reader }

func (r *readCloser) Close() error { return nil }
