package ingestion

import (
	"errors"
	"testing"
	"time"

	"b3-genetic-lab/internal/domain"
)

func date(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestSortPrices(t *testing.T) {
	// Intentionally unordered points
	points := []*domain.PricePoint{
		{Date: date(3), Symbol: "PETR4"},
		{Date: date(2), Symbol: "VALE3"},
		{Date: date(2), Symbol: "PETR4"},
		{Date: date(5), Symbol: "ABEV3"},
	}

	SortPrices(points)

	expected := []struct {
		day    int
		symbol string
	}{
		{2, "PETR4"},
		{2, "VALE3"},
		{3, "PETR4"},
		{5, "ABEV3"},
	}

	for i, exp := range expected {
		if !points[i].Date.Equal(date(exp.day)) || points[i].Symbol != exp.symbol {
			t.Errorf("Index %d: got (%s, %s), want (%s, %s)",
				i, points[i].Date.Format(domain.DateLayout), points[i].Symbol,
				date(exp.day).Format(domain.DateLayout), exp.symbol)
		}
	}
}

func TestSortPrices_Empty(t *testing.T) {
	var points []*domain.PricePoint
	SortPrices(points) // Should not panic
}

func TestValidatePriceOrdering(t *testing.T) {
	ordered := []*domain.PricePoint{
		{Date: date(1), Symbol: "A0001"},
		{Date: date(1), Symbol: "B0001"},
		{Date: date(2), Symbol: "A0001"},
	}
	if err := ValidatePriceOrdering(ordered); err != nil {
		t.Errorf("expected ordered input to validate, got %v", err)
	}

	unordered := []*domain.PricePoint{
		{Date: date(2), Symbol: "A0001"},
		{Date: date(1), Symbol: "A0001"},
	}
	if err := ValidatePriceOrdering(unordered); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering, got %v", err)
	}

	duplicate := []*domain.PricePoint{
		{Date: date(1), Symbol: "A0001"},
		{Date: date(1), Symbol: "A0001"},
	}
	if err := ValidatePriceOrdering(duplicate); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering for duplicate key, got %v", err)
	}
}

func TestDedupeLatest(t *testing.T) {
	first, second := 10.0, 11.0
	points := []*domain.PricePoint{
		{Date: date(1), Symbol: "PETR4", Close: &first},
		{Date: date(1), Symbol: "PETR4", Close: &second},
		{Date: date(1), Symbol: "VALE3"},
	}

	SortPrices(points)
	got, dropped := DedupeLatest(points)

	if dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", dropped)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if *got[0].Close != 11.0 {
		t.Errorf("expected later record to win, got %v", *got[0].Close)
	}
}
