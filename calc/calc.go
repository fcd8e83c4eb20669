// Package calc holds the decimal helpers shared by process computations:
// banded and stepped lookups, weighted percentages and rounding.
package calc

import (
	"fmt"

	"github.com/goliatone/go-processes/core"
	"github.com/shopspring/decimal"
)

type BandPosition int

const (
	Below BandPosition = iota
	Between
	Above
)

func (p BandPosition) String() string {
	switch p {
	case Below:
		return "below"
	case Between:
		return "between"
	default:
		return "above"
	}
}

// Band splits the number line at Lower and Upper. Both limits belong to
// Between.
type Band struct {
	Lower decimal.Decimal
	Upper decimal.Decimal
}

func NewBand(lower decimal.Decimal, upper decimal.Decimal) (Band, error) {
	if lower.GreaterThan(upper) {
		return Band{}, core.ValidationFailed("band", fmt.Sprintf("lower limit %s exceeds upper limit %s", lower, upper))
	}
	return Band{Lower: lower, Upper: upper}, nil
}

func (b Band) Position(value decimal.Decimal) BandPosition {
	switch {
	case value.LessThan(b.Lower):
		return Below
	case value.GreaterThan(b.Upper):
		return Above
	default:
		return Between
	}
}

// ThreeWay maps each band position to a value.
type ThreeWay[T any] struct {
	Below   T
	Between T
	Above   T
}

func (t ThreeWay[T]) Select(band Band, value decimal.Decimal) T {
	switch band.Position(value) {
	case Below:
		return t.Below
	case Between:
		return t.Between
	default:
		return t.Above
	}
}

// StepSchedule maps a value to one of len(Breakpoints)+1 values. A value in
// [Breakpoints[i], Breakpoints[i+1]) selects Values[i+1]; anything below the
// first breakpoint selects Values[0] and the last value covers everything
// from the last breakpoint up.
type StepSchedule[T any] struct {
	breakpoints []decimal.Decimal
	values      []T
}

func NewStepSchedule[T any](breakpoints []decimal.Decimal, values []T) (StepSchedule[T], error) {
	if len(values) != len(breakpoints)+1 {
		return StepSchedule[T]{}, core.ValidationFailed("values",
			fmt.Sprintf("step schedule needs %d values for %d breakpoints, got %d", len(breakpoints)+1, len(breakpoints), len(values)))
	}
	for i := 1; i < len(breakpoints); i++ {
		if !breakpoints[i].GreaterThan(breakpoints[i-1]) {
			return StepSchedule[T]{}, core.ValidationFailed("breakpoints", "step schedule breakpoints must be strictly increasing")
		}
	}
	out := StepSchedule[T]{
		breakpoints: append([]decimal.Decimal(nil), breakpoints...),
		values:      append([]T(nil), values...),
	}
	return out, nil
}

func (s StepSchedule[T]) Lookup(value decimal.Decimal) T {
	idx := 0
	for _, breakpoint := range s.breakpoints {
		if value.LessThan(breakpoint) {
			break
		}
		idx++
	}
	return s.values[idx]
}

func (s StepSchedule[T]) Len() int {
	return len(s.values)
}

// RoundHalfAwayFromZero rounds to places decimals; 12.5 becomes 13 and
// -12.5 becomes -13.
func RoundHalfAwayFromZero(value decimal.Decimal, places int32) decimal.Decimal {
	return value.Round(places)
}

// Weighted is one contribution to a weighted percentage.
type Weighted struct {
	Weight     decimal.Decimal
	Percentage decimal.Decimal
}

// WeightedPercentage returns sum(weight*percentage)/sum(weight). A zero total
// weight yields zero.
func WeightedPercentage(items []Weighted) decimal.Decimal {
	total := decimal.Zero
	weighted := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Weight)
		weighted = weighted.Add(item.Weight.Mul(item.Percentage))
	}
	if total.IsZero() {
		return decimal.Zero
	}
	return weighted.Div(total)
}

func SumPercentages(values ...decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, values...)
}

// Money rounds an amount to cents.
func Money(value decimal.Decimal) decimal.Decimal {
	return RoundHalfAwayFromZero(value, 2)
}
