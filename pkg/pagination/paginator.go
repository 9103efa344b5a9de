// Package pagination implements the GET cursor-style and POST bulk-array
// pagination strategies described in spec §4.5, fanning out concurrent
// page/chunk fetches with golang.org/x/sync/errgroup.
package pagination

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/evesi/esiclient/pkg/backoff"
	"github.com/evesi/esiclient/pkg/esimodel"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// FetchFunc issues one logical request through the retry loop. It is the
// seam between this package and esiclient, avoiding an import cycle.
type FetchFunc func(ctx context.Context, path string, opts esimodel.RequestOptions) (*esimodel.Response, error)

// Paginator drives GET and POST pagination over a Fetch function.
type Paginator struct {
	Fetch          FetchFunc
	PageSplitDelay backoff.PageSplitDelay
	Logger         zerolog.Logger
}

// PaginateGET implements spec §4.5's GET pagination.
func (p *Paginator) PaginateGET(ctx context.Context, path string, opts esimodel.RequestOptions) (*esimodel.Response, error) {
	prevPages := previousResponsesOf(opts.PreviousResponse)

	page1Opts := opts.Clone()
	page1Opts.PreviousResponse = prevAt(prevPages, 0)
	first, err := p.Fetch(ctx, path, page1Opts)
	if err != nil {
		return nil, err
	}

	pages := pageCount(first)
	if pages > 1 {
		if delay, ok := p.antiSplitDelay(first, pages); ok {
			p.Logger.Debug().Dur("delay", delay).Int("pages", pages).Msg("anti-split delay")
			AntiSplitDelaySeconds.Observe(delay.Seconds())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			first, err = p.Fetch(ctx, path, page1Opts)
			if err != nil {
				return nil, err
			}
			pages = pageCount(first)
		}
	}

	if pages <= 1 {
		return first, nil
	}

	sub := make([]*esimodel.Response, pages)
	sub[0] = first
	PagesFetchedTotal.WithLabelValues("get").Inc()

	g, gctx := errgroup.WithContext(ctx)
	for pageNum := 2; pageNum <= pages; pageNum++ {
		pageNum := pageNum
		g.Go(func() error {
			pageOpts := opts.Clone()
			pageOpts.PreviousResponse = prevAt(prevPages, pageNum-1)
			if pageOpts.Query == nil {
				pageOpts.Query = map[string]string{}
			}
			pageOpts.Query["page"] = strconv.Itoa(pageNum)
			resp, err := p.Fetch(gctx, path, pageOpts)
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNum, err)
			}
			PagesFetchedTotal.WithLabelValues("get").Inc()
			sub[pageNum-1] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &esimodel.PartialPagesError{Err: err, Pages: successfulOf(sub)}
	}

	resp, err := mergeResponses(sub, true)
	if err != nil {
		if _, ok := err.(*esimodel.PageSplitError); ok {
			PageSplitsTotal.Inc()
		}
	}
	return resp, err
}

// PaginatePOST implements spec §4.5's POST chunking. items has already
// been confirmed to be an array by the caller.
func (p *Paginator) PaginatePOST(ctx context.Context, path string, opts esimodel.RequestOptions, items []any) (*esimodel.Response, error) {
	pageSize := opts.BodyPageSize
	if pageSize <= 0 {
		pageSize = len(items)
	}
	prevPages := previousResponsesOf(opts.PreviousResponse)

	var chunks [][]any
	for i := 0; i < len(items); i += pageSize {
		end := i + pageSize
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	if len(chunks) == 0 {
		chunks = [][]any{{}}
	}

	sub := make([]*esimodel.Response, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			chunkOpts := opts.Clone()
			chunkOpts.Body = chunk
			chunkOpts.BodyPageSize = 0
			chunkOpts.PreviousResponse = prevAt(prevPages, i)
			resp, err := p.Fetch(gctx, path, chunkOpts)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i+1, err)
			}
			PagesFetchedTotal.WithLabelValues("post_chunk").Inc()
			sub[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &esimodel.PartialPagesError{Err: err, Pages: successfulOf(sub)}
	}

	return mergeResponses(sub, false)
}

func pageCount(resp *esimodel.Response) int {
	v, ok := resp.Header("x-pages")
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// antiSplitDelay computes the proactive wait from spec §4.5 step 3: if the
// cache entry backing page 1 will expire before we can plausibly fetch all
// pages, wait for it to regenerate first so pages 1..N come from the same
// generation.
func (p *Paginator) antiSplitDelay(first *esimodel.Response, pages int) (time.Duration, bool) {
	expiresHdr, ok := first.Header("expires")
	if !ok {
		return 0, false
	}
	dateHdr, ok := first.Header("date")
	if !ok {
		return 0, false
	}
	expires, err := http.ParseTime(expiresHdr)
	if err != nil {
		return 0, false
	}
	date, err := http.ParseTime(dateHdr)
	if err != nil {
		return 0, false
	}
	expiresIn := expires.Sub(date) + 1000*time.Millisecond

	budgetFn := p.PageSplitDelay
	if budgetFn == nil {
		budgetFn = backoff.DefaultPageSplitDelay
	}
	budget := budgetFn(pages)

	if expiresIn < budget {
		return expiresIn, true
	}
	return 0, false
}

// mergeResponses implements spec §4.5 step 5-6: intersect headers across
// all sub-responses and concatenate data in page order. requireExpires
// gates the GET-only cache-consistency check: a merged GET whose common
// headers lost "expires" means a page was regenerated mid-fetch, tied to
// the x-pages/anti-split-delay dance. Bulk POST endpoints aren't
// GET-cacheable and routinely lack "expires" entirely, so PaginatePOST
// passes requireExpires=false.
func mergeResponses(sub []*esimodel.Response, requireExpires bool) (*esimodel.Response, error) {
	common := commonHeaders(sub)
	if requireExpires && len(sub) > 1 {
		if _, ok := common["expires"]; !ok {
			return nil, &esimodel.PageSplitError{Pages: sub}
		}
	}

	data, err := concatData(sub)
	if err != nil {
		return nil, &esimodel.ResponseFormatError{Err: err}
	}

	return &esimodel.Response{
		Status:    sub[0].Status,
		Headers:   common,
		Data:      data,
		Responses: sub,
	}, nil
}

// commonHeaders returns the (name,value) pairs present identically across
// every response's headers.
func commonHeaders(responses []*esimodel.Response) map[string]string {
	if len(responses) == 0 {
		return nil
	}
	common := make(map[string]string, len(responses[0].Headers))
	for k, v := range responses[0].Headers {
		common[k] = v
	}
	for _, r := range responses[1:] {
		for k, v := range common {
			if rv, ok := r.Headers[k]; !ok || rv != v {
				delete(common, k)
			}
		}
	}
	return common
}

// concatData concatenates each sub-response's Data, which must each be
// arrays, in page order.
func concatData(responses []*esimodel.Response) ([]any, error) {
	var out []any
	for i, r := range responses {
		items, ok := r.Data.([]any)
		if !ok {
			return nil, fmt.Errorf("page %d: data is not an array", i+1)
		}
		out = append(out, items...)
	}
	return out, nil
}

// previousResponsesOf resolves the two accepted shapes of a collaborating
// previous_response per spec §4.5: a single prior Response (treated as
// page 1's previous) or a merged Response supplying per-page previous
// responses positionally.
func previousResponsesOf(prev *esimodel.Response) []*esimodel.Response {
	if prev == nil {
		return nil
	}
	if len(prev.Responses) > 0 {
		return prev.Responses
	}
	return []*esimodel.Response{prev}
}

// prevAt returns prevPages[i] if present, else nil — spec §9 open
// question (b): a page count mismatch since the previous call degrades to
// an absent previous_response for the unmatched pages.
func prevAt(prevPages []*esimodel.Response, i int) *esimodel.Response {
	if i < 0 || i >= len(prevPages) {
		return nil
	}
	return prevPages[i]
}

func successfulOf(sub []*esimodel.Response) []*esimodel.Response {
	var out []*esimodel.Response
	for _, r := range sub {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

