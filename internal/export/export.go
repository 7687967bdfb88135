// Package export renders dashboard data for download.
package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/energy-dashboard/internal/energy"
)

// Download file names and content types.
const (
	CSVFilename     = "energy_data.csv"
	CSVContentType  = "text/csv"
	JSONFilename    = "energy_data.json"
	JSONContentType = "application/json"
)

// CSVHeader is the first line of the CSV export.
var CSVHeader = []string{
	"Date",
	"Consumption (kWh)",
	"Cost ($)",
	"Carbon Footprint (kg)",
	"Efficiency Score (%)",
}

// CSV renders the historical log as comma-separated text: the header, then
// one line per record. Values are not quoted and there is no trailing
// newline.
func CSV(records []energy.HistoricalRecord) []byte {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(CSVHeader, ","))
	for _, r := range records {
		lines = append(lines, strings.Join([]string{
			r.Date.String(),
			formatFloat(r.Consumption),
			formatFloat(r.Cost),
			formatFloat(r.CarbonFootprint),
			strconv.Itoa(r.EfficiencyScore),
		}, ","))
	}
	return []byte(strings.Join(lines, "\n"))
}

// JSON renders the full dataset with two-space indentation.
func JSON(ds energy.Dataset) ([]byte, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	return data, nil
}

// formatFloat uses the shortest representation that round-trips.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
