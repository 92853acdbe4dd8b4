package decimal

import "testing"

func TestPriceQuantityRoundTrip(t *testing.T) {
	cases := []struct {
		price Price
		qty   Quantity
	}{
		{NewPrice(100, 50_000_000), Quantity(3 * Scale)},
		{NewPrice(1, 0), Quantity(1)},
		{NewPrice(99999, 99_000_000), Quantity(7 * Scale)},
	}

	for _, c := range cases {
		if c.qty == 0 {
			continue
		}
		vol := c.price.Mul(c.qty)
		got := vol.DivQuantity(c.qty)
		if got != c.price {
			t.Errorf("Price(%d)*Quantity(%d)/Quantity(%d) = %d, want %d",
				c.price, c.qty, c.qty, got, c.price)
		}
	}
}

func TestMulDivOverflowSafe(t *testing.T) {
	// A price and quantity whose naive int64 product would overflow before
	// descaling by Scale; the 128-bit intermediate must still recover the
	// right answer.
	p := Price(1_000_000 * Scale)
	q := Quantity(1_000_000 * Scale)
	vol := p.Mul(q)
	got := vol.DivPrice(p)
	if got != q {
		t.Fatalf("got %d, want %d", got, q)
	}
}

func TestTickRoundHalfAwayFromZero(t *testing.T) {
	tick := Price(Scale / 100) // 0.01
	cases := []struct {
		in, want Price
	}{
		{NewPrice(100, 0), NewPrice(100, 0)},
		{NewPrice(100, 4_000_000), NewPrice(100, 0)},    // 100.04 -> 100.00
		{NewPrice(100, 6_000_000), NewPrice(100, 1_000_000)}, // 100.06 -> 100.01
		{NewPrice(100, 5_000_000), NewPrice(100, 1_000_000)}, // 100.05 -> 100.01 (away from zero)
		{-NewPrice(100, 6_000_000), -NewPrice(100, 1_000_000)},
	}
	for _, c := range cases {
		got := TickRound(c.in, tick)
		if got != c.want {
			t.Errorf("TickRound(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTicksRoundTrip(t *testing.T) {
	tick := Price(Scale / 100)
	p := NewPrice(123, 45_000_000)
	ticks := Ticks(p, tick)
	back := FromTicks(ticks, tick)
	if back != p {
		t.Fatalf("Ticks/FromTicks round trip: got %d, want %d", back, p)
	}
}
