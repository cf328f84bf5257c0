// Package ladder implements the bid-ladder lookup: a pure, table-driven
// function mapping a current price to the minimum permissible increment.
package ladder

import "sort"

// Band is one row of the ladder: for prices ≥ LowerBound, the minimum
// increment is IncrementCents, until the next band's LowerBound is reached.
type Band struct {
	LowerBoundCents int64
	IncrementCents  int64
}

// Table is a sorted, non-overlapping, contiguous partition of [0, ∞). The
// last band (by LowerBoundCents) extends to infinity.
type Table struct {
	bands []Band
}

// NewTable builds a Table from bands, sorting them by LowerBoundCents. It
// panics if bands is empty or does not start at 0 — callers build tables
// once at startup from configuration, so a malformed table is a programmer
// error, not a runtime condition.
func NewTable(bands []Band) *Table {
	if len(bands) == 0 {
		panic("ladder: table must have at least one band")
	}
	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LowerBoundCents < sorted[j].LowerBoundCents
	})
	if sorted[0].LowerBoundCents != 0 {
		panic("ladder: table must have a band starting at 0")
	}
	return &Table{bands: sorted}
}

// DefaultTable is the production bid ladder.
func DefaultTable() *Table {
	return NewTable([]Band{
		{0, 5},
		{100, 25},
		{500, 50},
		{1_000, 100},
		{2_500, 250},
		{5_000, 500},
		{10_000, 1_000},
		{25_000, 2_500},
		{50_000, 5_000},
		{100_000, 10_000},
		{250_000, 25_000},
		{500_000, 50_000},
	})
}

// Increment returns the minimum increment for the given current price.
func (t *Table) Increment(currentPriceCents int64) int64 {
	inc := t.bands[0].IncrementCents
	for _, b := range t.bands {
		if currentPriceCents < b.LowerBoundCents {
			break
		}
		inc = b.IncrementCents
	}
	return inc
}

// MinNextBid returns the smallest visible price a new bid must reach to
// supersede currentPriceCents.
func (t *Table) MinNextBid(currentPriceCents int64) int64 {
	return currentPriceCents + t.Increment(currentPriceCents)
}
