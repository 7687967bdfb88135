package energy

import (
	"sort"
)

// HistoricalLog is the immutable, date-ascending consumption history.
type HistoricalLog struct {
	records []HistoricalRecord
}

// HistorySummary aggregates the whole log.
type HistorySummary struct {
	Days              int     `json:"days"`
	TotalConsumption  float64 `json:"total_consumption"`
	TotalCost         float64 `json:"total_cost"`
	TotalCarbon       float64 `json:"total_carbon_footprint"`
	AverageEfficiency float64 `json:"average_efficiency"`
}

// NewHistoricalLog copies records and sorts them by date. Records with the
// same date keep their input order.
func NewHistoricalLog(records []HistoricalRecord) *HistoricalLog {
	sorted := make([]HistoricalRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})
	return &HistoricalLog{records: sorted}
}

// Records returns a copy of the log.
func (l *HistoricalLog) Records() []HistoricalRecord {
	out := make([]HistoricalRecord, len(l.records))
	copy(out, l.records)
	return out
}

func (l *HistoricalLog) Len() int {
	return len(l.records)
}

// Summary totals consumption, cost and carbon, and averages efficiency.
func (l *HistoricalLog) Summary() HistorySummary {
	s := HistorySummary{Days: len(l.records)}
	if s.Days == 0 {
		return s
	}
	var eff int
	for _, r := range l.records {
		s.TotalConsumption += r.Consumption
		s.TotalCost += r.Cost
		s.TotalCarbon += r.CarbonFootprint
		eff += r.EfficiencyScore
	}
	s.TotalConsumption = Round2(s.TotalConsumption)
	s.TotalCost = Round2(s.TotalCost)
	s.TotalCarbon = Round2(s.TotalCarbon)
	s.AverageEfficiency = Round2(float64(eff) / float64(s.Days))
	return s
}
