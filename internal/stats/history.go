// Package stats summarizes test history and formats the exit summary.
package stats

import (
	"math"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/scenario-launcher/internal/store"
)

// digestCompression bounds the digest to ~100 centroids regardless of how
// long the history grows.
const digestCompression = 100

// HistorySummary describes the score distribution of recorded tests.
type HistorySummary struct {
	Count int

	Mean  float64
	P50   float64
	P90   float64
	Best  int
	Worst int

	// TotalRight and TotalWrong sum answers across all tests.
	TotalRight int
	TotalWrong int

	// Latest is the date of the most recent record.
	Latest string
}

// SummarizeHistory computes the score distribution of records. It returns
// a zero summary for an empty history.
func SummarizeHistory(records []store.HistoryRecord) HistorySummary {
	var h HistorySummary
	if len(records) == 0 {
		return h
	}

	td := tdigest.NewWithCompression(digestCompression)
	var sum float64

	h.Best = math.MinInt
	h.Worst = math.MaxInt
	for _, r := range records {
		td.Add(float64(r.Score), 1)
		sum += float64(r.Score)

		h.Best = max(h.Best, r.Score)
		h.Worst = min(h.Worst, r.Score)
		h.TotalRight += r.Right
		h.TotalWrong += r.Wrong

		// Dates are YYYY-MM-DD so string order is date order
		if r.Date > h.Latest {
			h.Latest = r.Date
		}
	}

	h.Count = len(records)
	h.Mean = sum / float64(h.Count)
	h.P50 = td.Quantile(0.50)
	h.P90 = td.Quantile(0.90)
	return h
}

// UserSummaries groups records by user id and summarizes each group.
// Records without a user id are grouped under their name.
func UserSummaries(records []store.HistoryRecord) map[string]HistorySummary {
	groups := make(map[string][]store.HistoryRecord)
	for _, r := range records {
		key := r.UserID
		if key == "" {
			key = r.Name
		}
		groups[key] = append(groups[key], r)
	}

	out := make(map[string]HistorySummary, len(groups))
	for k, g := range groups {
		out[k] = SummarizeHistory(g)
	}
	return out
}
