// Package energy holds the home-energy domain model: appliances, the
// historical log, the real-time snapshot and the pure metric functions
// derived from them.
package energy

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the power state of an appliance.
type Status string

const (
	StatusOn  Status = "on"
	StatusOff Status = "off"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	return s == StatusOn || s == StatusOff
}

// Flip returns the opposite state.
func (s Status) Flip() Status {
	if s == StatusOn {
		return StatusOff
	}
	return StatusOn
}

// ApplianceType categorizes appliances for the per-type breakdown.
type ApplianceType string

const (
	TypeHVAC          ApplianceType = "HVAC"
	TypeLighting      ApplianceType = "Lighting"
	TypeKitchen       ApplianceType = "Kitchen"
	TypeEntertainment ApplianceType = "Entertainment"
	TypeAppliance     ApplianceType = "Appliance"
	TypeUtility       ApplianceType = "Utility"
	TypeElectronics   ApplianceType = "Electronics"
)

// Appliance is one device in the household inventory.
// PowerRating is in watts.
type Appliance struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Type        ApplianceType `json:"type"`
	PowerRating float64       `json:"power_rating"`
	Status      Status        `json:"status"`
}

// On reports whether the appliance is switched on.
func (a Appliance) On() bool {
	return a.Status == StatusOn
}

// DateLayout is the wire format of Date.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// HistoricalRecord is one day of recorded consumption.
type HistoricalRecord struct {
	Date            Date    `json:"date"`
	Consumption     float64 `json:"consumption"`
	Cost            float64 `json:"cost"`
	CarbonFootprint float64 `json:"carbon_footprint"`
	PeakHoursUsage  float64 `json:"peak_hours_usage"`
	EfficiencyScore int     `json:"efficiency_score"`
}

// Weather is carried through unchanged from the seed.
type Weather struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Condition   string  `json:"condition"`
}

// RealTime is the live snapshot of household consumption.
// It is a value type; copies are safe to hand out.
type RealTime struct {
	Timestamp          time.Time `json:"timestamp"`
	TotalPower         float64   `json:"total_power"`
	ActiveAppliances   int       `json:"active_appliances"`
	EstimatedDailyCost float64   `json:"estimated_daily_cost"`
	CurrentEfficiency  int       `json:"current_efficiency"`
	Weather            Weather   `json:"weather"`
}

// EfficiencyImprovement is a per-appliance recommendation.
type EfficiencyImprovement struct {
	Appliance         string  `json:"appliance"`
	CurrentEfficiency int     `json:"current_efficiency"`
	RecommendedAction string  `json:"recommended_action"`
	PotentialSavings  float64 `json:"potential_savings"`
}

// Predictions is read-only forecast data.
type Predictions struct {
	NextDayConsumption     float64                 `json:"next_day_consumption"`
	NextWeekAverage        float64                 `json:"next_week_average"`
	MonthlyProjection      float64                 `json:"monthly_projection"`
	CostSavingsPotential   float64                 `json:"cost_savings_potential"`
	EfficiencyImprovements []EfficiencyImprovement `json:"efficiency_improvements"`
}

// Badge is an earned gamification badge.
type Badge struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Challenge is an in-progress gamification challenge.
// Progress is a percentage; Reward is in points.
type Challenge struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Progress    int    `json:"progress"`
	Reward      int    `json:"reward"`
}

// Gamification is read-only engagement data.
type Gamification struct {
	UserLevel           int         `json:"user_level"`
	PointsEarned        int         `json:"points_earned"`
	Badges              []Badge     `json:"badges"`
	Challenges          []Challenge `json:"challenges"`
	LeaderboardPosition int         `json:"leaderboard_position"`
	TotalUsers          int         `json:"total_users"`
}

// XPProgress is the percentage of the way to the next level.
// Levels are 1000 points apart.
func (g Gamification) XPProgress() float64 {
	return float64(g.PointsEarned%1000) / 10
}

// Anomaly is a flagged consumption irregularity.
type Anomaly struct {
	Timestamp   string `json:"timestamp"`
	Appliance   string `json:"appliance"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Dataset is the complete dashboard state as loaded from a seed and as
// dumped by the JSON export.
type Dataset struct {
	Appliances     []Appliance        `json:"appliances"`
	HistoricalData []HistoricalRecord `json:"historical_data"`
	RealTime       RealTime           `json:"real_time"`
	Predictions    Predictions        `json:"predictions"`
	Gamification   Gamification       `json:"gamification"`
	Anomalies      []Anomaly          `json:"anomalies,omitempty"`
}

// timestampLayouts are accepted when decoding a snapshot timestamp. Seed
// files written by older tooling omit the zone; those are read as UTC.
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05"}

func (rt *RealTime) UnmarshalJSON(b []byte) error {
	type plain RealTime
	var aux struct {
		plain
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*rt = RealTime(aux.plain)
	if aux.Timestamp == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, aux.Timestamp); err == nil {
			rt.Timestamp = t
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", aux.Timestamp)
}
