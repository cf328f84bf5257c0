package ladder

import "testing"

func TestIncrementDefaultTable(t *testing.T) {
	table := DefaultTable()

	cases := []struct {
		price int64
		want  int64
	}{
		{0, 5},
		{99, 5},
		{100, 25},
		{499, 25},
		{500, 50},
		{999, 50},
		{1_000, 100},
		{2_499, 100},
		{2_500, 250},
		{10_000, 1_000},
		{500_000, 50_000},
		{10_000_000, 50_000},
	}

	for _, c := range cases {
		got := table.Increment(c.price)
		if got != c.want {
			t.Errorf("Increment(%d) = %d, want %d", c.price, got, c.want)
		}
	}
}

func TestMinNextBid(t *testing.T) {
	table := DefaultTable()
	if got := table.MinNextBid(10_000); got != 11_000 {
		t.Errorf("MinNextBid(10000) = %d, want 11000", got)
	}
}

func TestCustomTableParameterized(t *testing.T) {
	custom := NewTable([]Band{
		{0, 1},
		{1_000, 10},
	})

	cases := []struct {
		price int64
		want  int64
	}{
		{0, 1},
		{999, 1},
		{1_000, 10},
		{50_000, 10},
	}

	for _, c := range cases {
		if got := custom.Increment(c.price); got != c.want {
			t.Errorf("Increment(%d) = %d, want %d", c.price, got, c.want)
		}
	}
}

func TestNewTablePanicsOnMissingZeroBand(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for table not starting at 0")
		}
	}()
	NewTable([]Band{{100, 5}})
}

func TestNewTablePanicsOnEmptyTable(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for empty table")
		}
	}()
	NewTable(nil)
}
