package utils

import (
	"strconv"
	"time"
)

// BuildMetricsHistoryCacheKey builds the cache.Cache key for the
// GET /metrics/history endpoint, adapted from the teacher's
// BuildEventsListCacheKey (same limit/from/to shape, no city filter — the
// engine's history entries aren't partitioned).
func BuildMetricsHistoryCacheKey(limit int, from, to *time.Time) string {
	f := ""
	if from != nil {
		f = from.UTC().Format(time.RFC3339Nano)
	}
	t := ""
	if to != nil {
		t = to.UTC().Format(time.RFC3339Nano)
	}

	return "metrics:history:v1:limit=" + strconv.Itoa(limit) +
		":from=" + f +
		":to=" + t
}
