package calc

import (
	"testing"

	"github.com/goliatone/go-processes/core"
	"github.com/shopspring/decimal"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestBand_LimitsAreInclusiveOfBetween(t *testing.T) {
	band, err := NewBand(d("40"), d("60"))
	if err != nil {
		t.Fatalf("new band: %v", err)
	}
	rates := ThreeWay[string]{Below: "low", Between: "mid", Above: "high"}
	cases := []struct {
		value string
		want  string
	}{
		{value: "39.99", want: "low"},
		{value: "40", want: "mid"},
		{value: "50", want: "mid"},
		{value: "60", want: "mid"},
		{value: "60.01", want: "high"},
	}
	for _, tc := range cases {
		if got := rates.Select(band, d(tc.value)); got != tc.want {
			t.Fatalf("value %s: expected %s, got %s", tc.value, tc.want, got)
		}
	}
	if band.Position(d("10")).String() != "below" {
		t.Fatalf("unexpected position name")
	}
}

func TestNewBand_RejectsInvertedLimits(t *testing.T) {
	if _, err := NewBand(d("5"), d("1")); !core.IsValidationFailed(err) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if _, err := NewBand(d("5"), d("5")); err != nil {
		t.Fatalf("expected equal limits to be allowed, got %v", err)
	}
}

func TestStepSchedule_Lookup(t *testing.T) {
	schedule, err := NewStepSchedule([]decimal.Decimal{d("7"), d("14"), d("30")}, []int{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	cases := map[string]int{
		"-3":   1,
		"6.99": 1,
		"7":    2,
		"13":   2,
		"14":   3,
		"30":   4,
		"365":  4,
	}
	for value, want := range cases {
		if got := schedule.Lookup(d(value)); got != want {
			t.Fatalf("value %s: expected %d, got %d", value, want, got)
		}
	}
	if schedule.Len() != 4 {
		t.Fatalf("expected 4 values, got %d", schedule.Len())
	}
}

func TestNewStepSchedule_Validates(t *testing.T) {
	if _, err := NewStepSchedule([]decimal.Decimal{d("1")}, []int{1}); !core.IsValidationFailed(err) {
		t.Fatalf("expected arity validation failure, got %v", err)
	}
	if _, err := NewStepSchedule([]decimal.Decimal{d("5"), d("5")}, []int{1, 2, 3}); !core.IsValidationFailed(err) {
		t.Fatalf("expected ordering validation failure, got %v", err)
	}
	single, err := NewStepSchedule[string](nil, []string{"only"})
	if err != nil || single.Lookup(d("100")) != "only" {
		t.Fatalf("expected single-value schedule, got %v", err)
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		value  string
		places int32
		want   string
	}{
		{value: "12.5", places: 0, want: "13"},
		{value: "-12.5", places: 0, want: "-13"},
		{value: "12.4", places: 0, want: "12"},
		{value: "2.345", places: 2, want: "2.35"},
		{value: "-2.345", places: 2, want: "-2.35"},
	}
	for _, tc := range cases {
		if got := RoundHalfAwayFromZero(d(tc.value), tc.places); !got.Equal(d(tc.want)) {
			t.Fatalf("round %s to %d: expected %s, got %s", tc.value, tc.places, tc.want, got)
		}
	}
}

func TestWeightedPercentage(t *testing.T) {
	got := WeightedPercentage([]Weighted{
		{Weight: d("30"), Percentage: d("50")},
		{Weight: d("10"), Percentage: d("90")},
	})
	if !got.Equal(d("60")) {
		t.Fatalf("expected 60, got %s", got)
	}
	if !WeightedPercentage(nil).IsZero() {
		t.Fatalf("expected zero for empty input")
	}
	if !WeightedPercentage([]Weighted{{Weight: d("0"), Percentage: d("80")}}).IsZero() {
		t.Fatalf("expected zero for zero weight")
	}
}

func TestSumPercentagesAndMoney(t *testing.T) {
	if got := SumPercentages(d("12.25"), d("0.25"), d("-2.5")); !got.Equal(d("10")) {
		t.Fatalf("expected 10, got %s", got)
	}
	if !SumPercentages().IsZero() {
		t.Fatalf("expected zero sum")
	}
	if got := Money(d("1234.565")); got.String() != "1234.57" {
		t.Fatalf("expected 1234.57, got %s", got)
	}
}
