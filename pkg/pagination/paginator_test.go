package pagination

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/evesi/esiclient/pkg/esimodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFetch(byPage map[string]*esimodel.Response) FetchFunc {
	return func(ctx context.Context, path string, opts esimodel.RequestOptions) (*esimodel.Response, error) {
		page := opts.Query["page"]
		if page == "" {
			page = "1"
		}
		resp, ok := byPage[page]
		if !ok {
			return nil, errNotFound(page)
		}
		return resp, nil
	}
}

type errNotFound string

func (e errNotFound) Error() string { return "no fixture for page " + string(e) }

func commonPageHeaders() map[string]string {
	return map[string]string{
		"expires": "Wed, 01 Jan 2025 00:10:00 GMT",
		"date":    "Wed, 01 Jan 2025 00:00:00 GMT",
	}
}

func TestPaginateGETSinglePage(t *testing.T) {
	p := &Paginator{Fetch: fakeFetch(map[string]*esimodel.Response{
		"1": {Status: 200, Headers: map[string]string{}, Data: []any{"a", "b"}},
	})}

	resp, err := p.PaginateGET(context.Background(), "/v1/things/", esimodel.RequestOptions{})
	require.NoError(t, err)
	assert.Empty(t, resp.Responses, "expected no sub-responses for a single page")

	data, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestPaginateGETMergesPagesInOrder(t *testing.T) {
	headers := commonPageHeaders()
	headers["x-pages"] = "3"

	p := &Paginator{Fetch: fakeFetch(map[string]*esimodel.Response{
		"1": {Status: 200, Headers: headers, Data: []any{"a"}},
		"2": {Status: 200, Headers: commonPageHeaders(), Data: []any{"b"}},
		"3": {Status: 200, Headers: commonPageHeaders(), Data: []any{"c"}},
	})}

	resp, err := p.PaginateGET(context.Background(), "/v1/things/", esimodel.RequestOptions{})
	require.NoError(t, err)

	data, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b", "c"}, data, "pages must be merged in order")
	assert.Len(t, resp.Responses, 3)
	assert.Contains(t, resp.Headers, "expires", "expires must survive the common-headers intersection")
}

func TestPaginateGETDetectsPageSplit(t *testing.T) {
	headers := commonPageHeaders()
	headers["x-pages"] = "2"

	page2Headers := map[string]string{"date": "Wed, 01 Jan 2025 00:00:00 GMT"} // no "expires": regenerated

	p := &Paginator{Fetch: fakeFetch(map[string]*esimodel.Response{
		"1": {Status: 200, Headers: headers, Data: []any{"a"}},
		"2": {Status: 200, Headers: page2Headers, Data: []any{"b"}},
	})}

	_, err := p.PaginateGET(context.Background(), "/v1/things/", esimodel.RequestOptions{})
	require.Error(t, err)
	assert.IsType(t, &esimodel.PageSplitError{}, err)
}

func TestPaginatePOSTChunksByBodyPageSize(t *testing.T) {
	items := make([]any, 2500)
	for i := range items {
		items[i] = i
	}

	var calls []int
	fetch := func(ctx context.Context, path string, opts esimodel.RequestOptions) (*esimodel.Response, error) {
		chunk, _ := opts.Body.([]any)
		calls = append(calls, len(chunk))
		// Bulk POST endpoints like /v3/universe/names/ aren't
		// GET-cacheable resources, so real responses carry no "expires".
		return &esimodel.Response{Status: 200, Headers: map[string]string{}, Data: chunk}, nil
	}

	p := &Paginator{Fetch: fetch}
	opts := esimodel.RequestOptions{Method: esimodel.MethodPOST, Body: items, BodyPageSize: 1000}

	resp, err := p.PaginatePOST(context.Background(), "/v1/things/names/", opts, items)
	require.NoError(t, err)

	data, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, data, 2500)
	assert.Len(t, calls, 3, "expected 3 chunk requests")
}

func TestPrevAtReturnsNilOutOfRange(t *testing.T) {
	assert.Nil(t, prevAt(nil, 0))

	prevPages := []*esimodel.Response{{Status: 200}}
	assert.Nil(t, prevAt(prevPages, 5))
}

func TestAntiSplitDelayTriggersWhenExpiryIsSoon(t *testing.T) {
	p := &Paginator{}
	now := time.Now().UTC()
	first := &esimodel.Response{Headers: map[string]string{
		"date":    now.Format(http.TimeFormat),
		"expires": now.Add(1 * time.Second).Format(http.TimeFormat),
	}}

	delay, triggered := p.antiSplitDelay(first, 50)
	require.True(t, triggered, "expected the anti-split delay to trigger for a near-expiry page 1")
	assert.Positive(t, delay)
}
