package filter

import (
	"github.com/shopspring/decimal"

	"github.com/coinkeep/coinkeep/internal/domain"
)

// Point is one chart data point.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is the evaluated result of one chart metric.
type Series struct {
	Metric    domain.ChartMetric `json:"metric"`
	Points    []Point            `json:"points"`
	Aggregate float64            `json:"aggregate"`
}

// BuildSeries runs the chart's steps over the transactions and evaluates
// each metric on the result. Points carry one value per transaction,
// turned into a running total when the metric is cumulative; Aggregate
// reduces the values with the metric's aggregation function.
func BuildSeries(steps []domain.ChartStep, metrics []domain.ChartMetric, txns []domain.Transaction) []Series {
	filtered := Apply(steps, txns)

	out := make([]Series, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, buildOne(m, filtered))
	}
	return out
}

func buildOne(m domain.ChartMetric, txns []domain.Transaction) Series {
	s := Series{Metric: m, Points: make([]Point, 0, len(txns))}

	running := decimal.Zero
	values := make([]decimal.Decimal, 0, len(txns))
	for _, t := range txns {
		v := metricValue(m.Field, t)
		values = append(values, v)

		point := v
		if m.Cumulative {
			running = running.Add(v)
			point = running
		}
		s.Points = append(s.Points, Point{Label: t.Name, Value: point.Round(2).InexactFloat64()})
	}

	s.Aggregate = aggregate(m.Agg, values).Round(2).InexactFloat64()
	return s
}

func metricValue(field string, t domain.Transaction) decimal.Decimal {
	switch field {
	case "amount":
		return decimal.NewFromFloat(t.Amount)
	default:
		// Non-numeric fields contribute 1 per transaction so count-style
		// metrics still work.
		return decimal.NewFromInt(1)
	}
}

func aggregate(agg string, values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	switch agg {
	case "avg":
		return decimal.Avg(values[0], values[1:]...)
	case "count":
		return decimal.NewFromInt(int64(len(values)))
	case "min":
		return decimal.Min(values[0], values[1:]...)
	case "max":
		return decimal.Max(values[0], values[1:]...)
	default: // sum
		return decimal.Sum(values[0], values[1:]...)
	}
}
