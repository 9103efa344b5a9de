package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PageSplitsTotal counts merges that failed the common-headers
	// "expires" check.
	PageSplitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "esi_page_splits_total",
		Help: "Total number of paginated merges that detected a page split",
	})

	// AntiSplitDelaySeconds observes the proactive wait before re-fetching
	// page 1 to align the fetch to a single cache generation.
	AntiSplitDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "esi_anti_split_delay_seconds",
		Help:    "Duration of the anti-page-split delay, when triggered",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	// PagesFetchedTotal counts individual page/chunk fetches by kind.
	PagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_pages_fetched_total",
		Help: "Total number of page or chunk fetches issued by the paginator",
	}, []string{"kind"})
)
