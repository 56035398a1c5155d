package domain

// ChartType selects the rendering variant on the client.
type ChartType string

const (
	ChartPie      ChartType = "pie"
	ChartLine     ChartType = "line"
	ChartBar      ChartType = "bar"
	ChartDoughnut ChartType = "doughnut"
	ChartRadar    ChartType = "radar"
	ChartPolar    ChartType = "polarArea"
)

// Chart is pure view configuration: which transactions feed the chart
// (Steps) and what is measured over them (Metrics). No derived data is
// persisted with the chart.
type Chart struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Type    ChartType     `json:"type"`
	Steps   []ChartStep   `json:"steps"`
	Metrics []ChartMetric `json:"metrics"`
}

// ChartStep is one stage of a chart's data builder. Kind is either "filter"
// or "sort". Steps run left to right, each consuming the previous output,
// so the caller-chosen ordering matters: a sort placed before a filter
// reorders the yet-unfiltered set.
type ChartStep struct {
	Kind   string `json:"kind"`
	Field  string `json:"field,omitempty"`
	Op     string `json:"op,omitempty"`
	Value  string `json:"value,omitempty"`
	Invert bool   `json:"invert,omitempty"`
	Order  string `json:"order,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ChartMetric measures one field over the filtered transaction set.
// Agg is one of sum, avg, count, min, max. Cumulative turns the point
// series into a running total.
type ChartMetric struct {
	Field      string `json:"field"`
	Agg        string `json:"agg"`
	Cumulative bool   `json:"cumulative"`
}

// Clone returns a deep copy of the chart.
func (c Chart) Clone() Chart {
	cp := c
	cp.Steps = append([]ChartStep(nil), c.Steps...)
	cp.Metrics = append([]ChartMetric(nil), c.Metrics...)
	return cp
}
