package model

import "time"

// MetricsDelta is one webhook's contribution to the rolling daily counters.
type MetricsDelta struct {
	Calls      int
	Completed  int
	Confidence float64
	Sentiment  float64
}

// DailyMetrics is the rolling per-day/per-stage analytics row, upserted by
// key (day, stage).
type DailyMetrics struct {
	Day           time.Time `json:"day"`
	Stage         int       `json:"stage"`
	Calls         int       `json:"calls"`
	Completed     int       `json:"completed"`
	SumConfidence float64   `json:"sum_confidence"`
	SumSentiment  float64   `json:"sum_sentiment"`
}

// AvgConfidence returns the mean confidence for the day, 0 when empty.
func (m DailyMetrics) AvgConfidence() float64 {
	if m.Calls == 0 {
		return 0
	}
	return m.SumConfidence / float64(m.Calls)
}

// AvgSentiment returns the mean sentiment for the day, 0 when empty.
func (m DailyMetrics) AvgSentiment() float64 {
	if m.Calls == 0 {
		return 0
	}
	return m.SumSentiment / float64(m.Calls)
}
