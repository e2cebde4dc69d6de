// Package analytics aggregates the rolling intake counters into snapshots
// for the metrics endpoint and the status command.
package analytics

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dreamseed2025/formation-intake/internal/model"
	"github.com/dreamseed2025/formation-intake/internal/store"
)

// StageSummary aggregates one stage's counters over the lookback window.
type StageSummary struct {
	Stage         int     `json:"stage"`
	Calls         int     `json:"calls"`
	Completed     int     `json:"completed"`
	CompletionPct float64 `json:"completion_pct"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgSentiment  float64 `json:"avg_sentiment"`
}

// Snapshot is a point-in-time view of intake throughput.
type Snapshot struct {
	TotalCalls     int                  `json:"total_calls"`
	TotalCompleted int                  `json:"total_completed"`
	Stages         []StageSummary       `json:"stages"`
	Daily          []model.DailyMetrics `json:"daily,omitempty"`
	LookbackDays   int                  `json:"lookback_days"`
	CollectedAt    time.Time            `json:"collected_at"`
}

// MetricsLister is the store surface the collector needs.
type MetricsLister interface {
	ListDailyMetrics(ctx context.Context, since time.Time) ([]model.DailyMetrics, error)
}

// Collector rolls daily counters up into per-stage summaries.
type Collector struct {
	store MetricsLister
}

// NewCollector creates a metrics collector over the given store.
func NewCollector(st MetricsLister) *Collector {
	return &Collector{store: st}
}

var _ MetricsLister = (store.Store)(nil)

// Collect aggregates daily metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackDays int) (*Snapshot, error) {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -lookbackDays)

	daily, err := c.store.ListDailyMetrics(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: list daily metrics")
	}

	byStage := map[int]*StageSummary{}
	sums := map[int]struct{ conf, sent float64 }{}
	for _, d := range daily {
		s, ok := byStage[d.Stage]
		if !ok {
			s = &StageSummary{Stage: d.Stage}
			byStage[d.Stage] = s
		}
		s.Calls += d.Calls
		s.Completed += d.Completed
		acc := sums[d.Stage]
		acc.conf += d.SumConfidence
		acc.sent += d.SumSentiment
		sums[d.Stage] = acc
	}

	snap := &Snapshot{
		Daily:        daily,
		LookbackDays: lookbackDays,
		CollectedAt:  time.Now().UTC(),
	}
	for stage := 1; stage <= model.StageCount; stage++ {
		s, ok := byStage[stage]
		if !ok {
			continue
		}
		if s.Calls > 0 {
			s.CompletionPct = float64(s.Completed) / float64(s.Calls) * 100
			s.AvgConfidence = sums[stage].conf / float64(s.Calls)
			s.AvgSentiment = sums[stage].sent / float64(s.Calls)
		}
		snap.TotalCalls += s.Calls
		snap.TotalCompleted += s.Completed
		snap.Stages = append(snap.Stages, *s)
	}
	return snap, nil
}
