package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinkeep/coinkeep/internal/domain"
)

func sampleTxns() []domain.Transaction {
	return []domain.Transaction{
		{ID: "t1", Name: "Coffee", Amount: -5, Tag: "g1", Date: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "t2", Name: "Salary", Amount: 2000, Date: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func names(txns []domain.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.Name
	}
	return out
}

func TestQueryPredicates(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"@amount>0", []string{"Salary"}},
		{"@amount>0!", []string{"Coffee"}},
		{"@amount<0", []string{"Coffee"}},
		{"@amount=2000", []string{"Salary"}},
		{"@amount=2000!", []string{"Coffee"}},
		{"@name:coffee", []string{}}, // case-sensitive
		{"@name:Coffee", []string{"Coffee"}},
		{"@name:Coffee!", []string{"Salary"}},
		{"@name!:Coffee", []string{"Salary"}}, // invert marker on the field name
		{"Sal", []string{"Salary"}},           // bare token is name-contains
		{"@tag=g1", []string{"Coffee"}},
		{"@date>2026-08-01", []string{"Coffee"}},
		{"@amount>0 @name:Sal", []string{"Salary"}}, // implicit AND
		{"@amount>0 @name:Coffee", []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got := Apply(Parse(tc.query), sampleTxns())
			assert.Equal(t, tc.want, names(got))
		})
	}
}

func TestSortStep(t *testing.T) {
	txns := []domain.Transaction{
		{Name: "b", Amount: 10},
		{Name: "a", Amount: -3},
		{Name: "c", Amount: 5},
	}

	asc := Apply([]domain.ChartStep{{Kind: KindSort, Field: "amount", Order: "asc"}}, txns)
	assert.Equal(t, []string{"a", "c", "b"}, names(asc))

	desc := Apply([]domain.ChartStep{{Kind: KindSort, Field: "amount", Order: "desc"}}, txns)
	assert.Equal(t, []string{"b", "c", "a"}, names(desc))

	limited := Apply([]domain.ChartStep{{Kind: KindSort, Field: "amount", Order: "desc", Limit: 2}}, txns)
	assert.Equal(t, []string{"b", "c"}, names(limited))
}

func TestSortByTagIsDeterministic(t *testing.T) {
	txns := []domain.Transaction{
		{Name: "x", Tag: "g2"},
		{Name: "y", Tag: "g1"},
		{Name: "z", Tag: "g3"},
	}

	got := Apply([]domain.ChartStep{{Kind: KindSort, Field: "tag", Order: "asc"}}, txns)
	assert.Equal(t, []string{"y", "x", "z"}, names(got))
}

func TestStepOrderMatters(t *testing.T) {
	txns := []domain.Transaction{
		{Name: "a", Amount: -1},
		{Name: "b", Amount: -2},
		{Name: "c", Amount: 3},
	}

	// Sort then limit before filtering keeps a different set than
	// filtering first.
	sortFirst := Apply([]domain.ChartStep{
		{Kind: KindSort, Field: "amount", Order: "asc", Limit: 1},
		{Kind: KindFilter, Field: "amount", Op: ">", Value: "-10"},
	}, txns)
	assert.Equal(t, []string{"b"}, names(sortFirst))

	filterFirst := Apply([]domain.ChartStep{
		{Kind: KindFilter, Field: "amount", Op: ">", Value: "0"},
		{Kind: KindSort, Field: "amount", Order: "asc", Limit: 1},
	}, txns)
	assert.Equal(t, []string{"c"}, names(filterFirst))
}

func TestBuildSeries(t *testing.T) {
	txns := []domain.Transaction{
		{Name: "a", Amount: -5},
		{Name: "b", Amount: -15},
		{Name: "c", Amount: 100},
	}

	steps := []domain.ChartStep{{Kind: KindFilter, Field: "amount", Op: "<", Value: "0"}}
	metrics := []domain.ChartMetric{
		{Field: "amount", Agg: "sum"},
		{Field: "amount", Agg: "sum", Cumulative: true},
		{Field: "amount", Agg: "avg"},
		{Field: "amount", Agg: "count"},
		{Field: "amount", Agg: "min"},
		{Field: "amount", Agg: "max"},
	}

	series := BuildSeries(steps, metrics, txns)
	require.Len(t, series, 6)

	assert.Equal(t, -20.0, series[0].Aggregate)
	assert.Equal(t, []Point{{Label: "a", Value: -5}, {Label: "b", Value: -15}}, series[0].Points)

	assert.Equal(t, []Point{{Label: "a", Value: -5}, {Label: "b", Value: -20}}, series[1].Points)

	assert.Equal(t, -10.0, series[2].Aggregate)
	assert.Equal(t, 2.0, series[3].Aggregate)
	assert.Equal(t, -15.0, series[4].Aggregate)
	assert.Equal(t, -5.0, series[5].Aggregate)
}

func TestBuildSeriesEmptyResult(t *testing.T) {
	series := BuildSeries(
		[]domain.ChartStep{{Kind: KindFilter, Field: "amount", Op: ">", Value: "1000"}},
		[]domain.ChartMetric{{Field: "amount", Agg: "sum"}},
		sampleTxns(),
	)
	require.Len(t, series, 1)
	assert.Zero(t, series[0].Aggregate)
	assert.Empty(t, series[0].Points)
}
