package esiclient

import (
	"bytes"
	"compress/flate"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"dario.cat/mergo"
	"github.com/andybalholm/brotli"
	"github.com/evesi/esiclient/pkg/esimodel"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/evesi/esiclient")

// singleExchange performs exactly one request/response cycle: it builds the
// *http.Request from opts, merges in the facade's defaults, issues it over
// transport, and decodes the result per the five-row table in spec §4.3. It
// never retries or paginates; that is retryLoop's and the paginator's job.
func (c *Client) singleExchange(ctx context.Context, path string, opts esimodel.RequestOptions) (*esimodel.Response, error) {
	reqURL, err := c.buildURL(path, opts)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, &esimodel.ConfigurationError{Err: fmt.Errorf("encode request body: %w", err)}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	method := string(opts.Method)
	if method == "" {
		method = string(esimodel.MethodGET)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, &esimodel.ConfigurationError{Err: err}
	}

	requestID := uuid.New().String()
	if err := c.applyHeaders(httpReq, opts, requestID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "esi.exchange",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("esi.path", path),
			attribute.String("esi.request_id", requestID),
		),
	)
	defer span.End()
	httpReq = httpReq.WithContext(ctx)

	logger := c.logger.With().Str("request_id", requestID).Str("path", path).Logger()
	logger.Debug().Str("method", method).Msg("exchange start")

	httpResp, err := c.transport.RoundTrip(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer httpResp.Body.Close()

	resp, err := c.decodeResponse(httpResp, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.Status))
	logger.Debug().Int("status", resp.Status).Msg("exchange done")
	return resp, nil
}

// buildURL templates {name} placeholders in path from opts.Parameters and
// appends the merged default+per-request query string.
func (c *Client) buildURL(path string, opts esimodel.RequestOptions) (string, error) {
	rendered, err := renderPath(path, opts.Parameters)
	if err != nil {
		return "", err
	}

	base := strings.TrimRight(c.baseURL, "/")
	u, err := url.Parse(base + rendered)
	if err != nil {
		return "", &esimodel.ConfigurationError{Err: fmt.Errorf("build url: %w", err)}
	}

	query := make(map[string]string, len(c.defaultQuery)+len(opts.Query))
	if err := mergo.Merge(&query, c.defaultQuery); err != nil {
		return "", &esimodel.ConfigurationError{Err: err}
	}
	if err := mergo.Merge(&query, opts.Query, mergo.WithOverride); err != nil {
		return "", &esimodel.ConfigurationError{Err: err}
	}

	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

// renderPath substitutes "{name}" placeholders with params["name"],
// returning a ConfigurationError for any placeholder left unresolved.
func renderPath(path string, params map[string]string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(path) {
		open := strings.IndexByte(path[i:], '{')
		if open < 0 {
			b.WriteString(path[i:])
			break
		}
		open += i
		b.WriteString(path[i:open])
		closeIdx := strings.IndexByte(path[open:], '}')
		if closeIdx < 0 {
			return "", &esimodel.ConfigurationError{Err: fmt.Errorf("unterminated path parameter in %q", path)}
		}
		closeIdx += open
		name := path[open+1 : closeIdx]
		value, ok := params[name]
		if !ok {
			return "", &esimodel.ConfigurationError{Err: fmt.Errorf("missing path parameter %q for %q", name, path)}
		}
		b.WriteString(url.PathEscape(value))
		i = closeIdx + 1
	}
	return b.String(), nil
}

// applyHeaders merges default and per-request headers onto httpReq, then
// layers on the headers the spec mandates regardless of caller input:
// accept-encoding, authorization (from the token provider), if-none-match
// (from PreviousResponse), and the request-id correlator.
func (c *Client) applyHeaders(httpReq *http.Request, opts esimodel.RequestOptions, requestID string) error {
	headers := make(map[string]string, len(c.defaultHeaders)+len(opts.Headers))
	if err := mergo.Merge(&headers, lowercaseKeys(c.defaultHeaders)); err != nil {
		return &esimodel.ConfigurationError{Err: err}
	}
	if err := mergo.Merge(&headers, lowercaseKeys(opts.Headers), mergo.WithOverride); err != nil {
		return &esimodel.ConfigurationError{Err: err}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpReq.Header.Set("accept-encoding", "gzip, deflate, br")
	httpReq.Header.Set("x-esi-request-id", requestID)

	if opts.Token != nil {
		token, err := opts.Token.ResolveToken(httpReq.Context())
		if err != nil {
			return &esimodel.ConfigurationError{Err: fmt.Errorf("resolve token: %w", err)}
		}
		if token != "" {
			httpReq.Header.Set("authorization", "Bearer "+token)
		}
	}

	if opts.PreviousResponse != nil {
		if etag, ok := opts.PreviousResponse.Header("etag"); ok && etag != "" {
			httpReq.Header.Set("if-none-match", etag)
		}
	}
	return nil
}

// decodeResponse implements the five-row decoding table from spec §4.3.
func (c *Client) decodeResponse(httpResp *http.Response, opts esimodel.RequestOptions) (*esimodel.Response, error) {
	body, err := decompressBody(httpResp)
	if err != nil {
		return nil, &esimodel.ResponseFormatError{Err: err}
	}

	headers := stripHeaders(httpResp.Header, c.stripHeaders)

	if len(body) == 0 && httpResp.StatusCode == http.StatusNotModified && opts.PreviousResponse != nil {
		prev := opts.PreviousResponse
		return &esimodel.Response{
			Status:  prev.Status,
			Headers: headers,
			Data:    prev.Data,
		}, nil
	}

	resp := &esimodel.Response{
		Status:  httpResp.StatusCode,
		Headers: headers,
	}

	if len(body) == 0 {
		return resp, nil
	}

	contentType := httpResp.Header.Get("content-type")
	if strings.Contains(contentType, "json") {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, &esimodel.ResponseFormatError{
				Err:      fmt.Errorf("decode json body: %w", err),
				Response: &esimodel.Response{Status: httpResp.StatusCode, Headers: headers, Body: string(body)},
			}
		}
		resp.Data = data
		return resp, nil
	}

	resp.Body = string(body)
	return resp, nil
}

func decompressBody(httpResp *http.Response) ([]byte, error) {
	var reader io.Reader = httpResp.Body
	switch strings.ToLower(httpResp.Header.Get("content-encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(httpResp.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		reader = flate.NewReader(httpResp.Body)
	case "br":
		reader = brotli.NewReader(httpResp.Body)
	}
	return io.ReadAll(reader)
}

// lowercaseKeys normalizes a header map's keys before merging, matching
// esimodel.RequestOptions.Headers' documented "case-insensitive; keys are
// lowercased on use" invariant. Without it, differently-cased keys for
// the same logical header (default "user-agent" vs. call-site
// "User-Agent") survive as distinct map entries instead of one
// overriding the other.
func lowercaseKeys(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = v
	}
	return out
}

func stripHeaders(h http.Header, strip []string) map[string]string {
	stripSet := make(map[string]struct{}, len(strip))
	for _, name := range strip {
		stripSet[strings.ToLower(name)] = struct{}{}
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, skip := stripSet[strings.ToLower(k)]; skip {
			continue
		}
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}
