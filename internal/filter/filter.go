// Package filter implements the compact transaction query language and
// the structured filter/sort steps charts are built from. A query is a
// space-delimited list of tokens combined with implicit AND:
//
//	@field:value   field contains value
//	@field=value   field equals value
//	@field>value   field greater than value
//	@field<value   field less than value
//	token          shorthand for @name:token
//
// A trailing ! inverts the operator: = becomes not-equals, : becomes
// not-contains, and > and < swap. String comparison is case-sensitive.
package filter

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coinkeep/coinkeep/internal/domain"
)

const (
	// KindFilter and KindSort discriminate chart steps.
	KindFilter = "filter"
	KindSort   = "sort"
)

const opChars = ":=<>"

// Parse translates a query string into filter steps. Tokens without a
// recognizable operator degrade to a name-contains match.
func Parse(query string) []domain.ChartStep {
	var steps []domain.ChartStep
	for _, token := range strings.Fields(query) {
		steps = append(steps, parseToken(token))
	}
	return steps
}

func parseToken(token string) domain.ChartStep {
	if !strings.HasPrefix(token, "@") {
		return domain.ChartStep{Kind: KindFilter, Field: "name", Op: ":", Value: token}
	}

	rest := token[1:]
	opIdx := strings.IndexAny(rest, opChars)
	if opIdx < 0 {
		return domain.ChartStep{Kind: KindFilter, Field: "name", Op: ":", Value: token}
	}

	field := rest[:opIdx]
	op := string(rest[opIdx])
	value := rest[opIdx+1:]

	invert := false
	if strings.HasSuffix(field, "!") {
		field = strings.TrimSuffix(field, "!")
		invert = true
	} else if strings.HasSuffix(value, "!") {
		value = strings.TrimSuffix(value, "!")
		invert = true
	}

	return domain.ChartStep{Kind: KindFilter, Field: field, Op: op, Value: value, Invert: invert}
}

// Apply runs the steps left to right, each consuming the previous
// output. Step order is caller-controlled and significant: a sort after
// a filter narrows then reorders, a sort before a filter reorders the
// yet-unfiltered set.
func Apply(steps []domain.ChartStep, txns []domain.Transaction) []domain.Transaction {
	out := append([]domain.Transaction(nil), txns...)
	for _, step := range steps {
		switch step.Kind {
		case KindSort:
			out = applySort(step, out)
		default:
			out = applyFilter(step, out)
		}
	}
	return out
}

func applyFilter(step domain.ChartStep, txns []domain.Transaction) []domain.Transaction {
	kept := txns[:0:0]
	for _, t := range txns {
		if matches(step, t) {
			kept = append(kept, t)
		}
	}
	return kept
}

func matches(step domain.ChartStep, t domain.Transaction) bool {
	op := step.Op
	negate := false
	if step.Invert {
		switch op {
		case "=", ":":
			negate = true
		case ">":
			op = "<"
		case "<":
			op = ">"
		}
	}

	var ok bool
	switch step.Field {
	case "amount":
		want, err := strconv.ParseFloat(step.Value, 64)
		if err != nil {
			return false
		}
		ok = compareFloat(op, t.Amount, want)
	case "date":
		want, err := parseDate(step.Value)
		if err != nil {
			return false
		}
		ok = compareDate(op, t.Date, want)
	default:
		ok = compareString(op, fieldString(step.Field, t), step.Value)
	}

	if negate {
		return !ok
	}
	return ok
}

func fieldString(field string, t domain.Transaction) string {
	switch field {
	case "description":
		return t.Description
	case "tag":
		return t.Tag
	default:
		return t.Name
	}
}

func compareString(op, got, want string) bool {
	switch op {
	case ":":
		return strings.Contains(got, want)
	case "=":
		return got == want
	case ">":
		return got > want
	case "<":
		return got < want
	}
	return false
}

func compareFloat(op string, got, want float64) bool {
	switch op {
	case "=", ":":
		return got == want
	case ">":
		return got > want
	case "<":
		return got < want
	}
	return false
}

func compareDate(op string, got, want time.Time) bool {
	switch op {
	case "=", ":":
		return got.Equal(want)
	case ">":
		return got.After(want)
	case "<":
		return got.Before(want)
	}
	return false
}

func parseDate(value string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

// applySort stably orders by the step's field and truncates to Limit
// when set. Sorting by tag orders by the tag id.
func applySort(step domain.ChartStep, txns []domain.Transaction) []domain.Transaction {
	less := lessFunc(step.Field)
	sort.SliceStable(txns, func(i, j int) bool {
		if step.Order == "desc" {
			return less(txns[j], txns[i])
		}
		return less(txns[i], txns[j])
	})
	if step.Limit > 0 && step.Limit < len(txns) {
		txns = txns[:step.Limit]
	}
	return txns
}

func lessFunc(field string) func(a, b domain.Transaction) bool {
	switch field {
	case "amount":
		return func(a, b domain.Transaction) bool { return a.Amount < b.Amount }
	case "date":
		return func(a, b domain.Transaction) bool { return a.Date.Before(b.Date) }
	case "created_at":
		return func(a, b domain.Transaction) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "description":
		return func(a, b domain.Transaction) bool { return a.Description < b.Description }
	case "tag":
		return func(a, b domain.Transaction) bool { return a.Tag < b.Tag }
	default:
		return func(a, b domain.Transaction) bool { return a.Name < b.Name }
	}
}
