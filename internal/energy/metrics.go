package energy

import (
	"github.com/shopspring/decimal"
)

// DefaultTariff is the electricity price in currency units per kWh.
const DefaultTariff = 0.12

// Efficiency bounds for the real-time snapshot.
const (
	MinEfficiency = 50
	MaxEfficiency = 100
)

// TypePower is the combined draw of the active appliances of one type.
type TypePower struct {
	Type  ApplianceType `json:"type"`
	Watts float64       `json:"watts"`
}

// ApplianceSummary is the headline count and load for a set of appliances.
type ApplianceSummary struct {
	Total           int     `json:"total"`
	Active          int     `json:"active"`
	TotalPowerWatts float64 `json:"total_power_watts"`
	TotalPowerKW    float64 `json:"total_power_kw"`
}

// ActiveAppliances returns the appliances that are on, in input order.
func ActiveAppliances(list []Appliance) []Appliance {
	active := make([]Appliance, 0, len(list))
	for _, a := range list {
		if a.On() {
			active = append(active, a)
		}
	}
	return active
}

// TotalPowerWatts sums the power rating of every appliance that is on.
func TotalPowerWatts(list []Appliance) float64 {
	var total float64
	for _, a := range list {
		if a.On() {
			total += a.PowerRating
		}
	}
	return total
}

// DailyCostEstimate projects a constant draw of watts over 24 hours at the
// given tariff, rounded half away from zero to 2 decimal places.
func DailyCostEstimate(watts, tariff float64) float64 {
	kwh := decimal.NewFromFloat(watts).Mul(decimal.NewFromInt(24)).Div(decimal.NewFromInt(1000))
	f, _ := kwh.Mul(decimal.NewFromFloat(tariff)).Round(2).Float64()
	return f
}

// Round2 rounds v half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// PowerByType maps each type with at least one active appliance to its
// combined draw.
func PowerByType(list []Appliance) map[ApplianceType]float64 {
	out := make(map[ApplianceType]float64)
	for _, a := range list {
		if a.On() {
			out[a.Type] += a.PowerRating
		}
	}
	return out
}

// PowerBreakdown is PowerByType ordered by the first appearance of each
// type among the active appliances.
func PowerBreakdown(list []Appliance) []TypePower {
	var out []TypePower
	index := make(map[ApplianceType]int)
	for _, a := range list {
		if !a.On() {
			continue
		}
		i, ok := index[a.Type]
		if !ok {
			i = len(out)
			index[a.Type] = i
			out = append(out, TypePower{Type: a.Type})
		}
		out[i].Watts += a.PowerRating
	}
	return out
}

// FilterByType returns the appliances of type t. An empty type or "all"
// returns every appliance.
func FilterByType(list []Appliance, t ApplianceType) []Appliance {
	out := make([]Appliance, 0, len(list))
	for _, a := range list {
		if t == "" || t == "all" || a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// Summarize counts appliances and their active load.
func Summarize(list []Appliance) ApplianceSummary {
	watts := TotalPowerWatts(list)
	kw, _ := decimal.NewFromFloat(watts).Div(decimal.NewFromInt(1000)).Round(1).Float64()
	return ApplianceSummary{
		Total:           len(list),
		Active:          len(ActiveAppliances(list)),
		TotalPowerWatts: watts,
		TotalPowerKW:    kw,
	}
}

// ClampEfficiency bounds v to [MinEfficiency, MaxEfficiency].
func ClampEfficiency(v int) int {
	if v < MinEfficiency {
		return MinEfficiency
	}
	if v > MaxEfficiency {
		return MaxEfficiency
	}
	return v
}
