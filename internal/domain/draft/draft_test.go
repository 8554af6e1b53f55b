package draft

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func sequentialIDs() func() LineID {
	n := 0
	return func() LineID {
		n++
		return LineID(fmt.Sprintf("line-%d", n))
	}
}

type recorder struct {
	snaps []Snapshot
}

func (r *recorder) DraftChanged(s Snapshot) { r.snaps = append(r.snaps, s) }

func (r *recorder) last() Snapshot { return r.snaps[len(r.snaps)-1] }

func assertTotals(t *testing.T, got Totals, subtotal, tax, total string) {
	t.Helper()
	assert.True(t, dec(subtotal).Equal(got.Subtotal), "subtotal: got %s want %s", got.Subtotal, subtotal)
	assert.True(t, dec(tax).Equal(got.Tax), "tax: got %s want %s", got.Tax, tax)
	assert.True(t, dec(total).Equal(got.Total), "total: got %s want %s", got.Total, total)
}

// --- Tests ---

func TestDraft_SoapAndToothpaste(t *testing.T) {
	rec := &recorder{}
	d := New(WithObserver(rec), WithLineIDs(sequentialIDs()))

	_, err := d.Add(LineInput{ProductID: "p-soap", DisplayName: "Soap", Quantity: 2, UnitPrice: price("10.00")})
	require.NoError(t, err)
	assertTotals(t, d.Totals(), "20.00", "3.60", "23.60")

	_, err = d.Add(LineInput{ProductID: "p-paste", DisplayName: "Toothpaste", Quantity: 1, UnitPrice: price("15.00")})
	require.NoError(t, err)
	assertTotals(t, d.Totals(), "35.00", "6.30", "41.30")

	require.NoError(t, d.RemoveAt(0))
	assertTotals(t, d.Totals(), "15.00", "2.70", "17.70")

	lines := d.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "Toothpaste", lines[0].DisplayName)

	require.Len(t, rec.snaps, 3)
	assertTotals(t, rec.snaps[0].Totals, "20.00", "3.60", "23.60")
	assertTotals(t, rec.snaps[2].Totals, "15.00", "2.70", "17.70")
	assert.Equal(t, StateBuilding, rec.last().State)
}

func TestDraft_AddWithoutProduct(t *testing.T) {
	rec := &recorder{}
	d := New(WithObserver(rec))
	_, err := d.Add(LineInput{ProductID: "p-soap", Quantity: 2, UnitPrice: price("10.00")})
	require.NoError(t, err)
	before := d.Snapshot()

	for _, id := range []string{"", "   "} {
		_, err = d.Add(LineInput{ProductID: id, Quantity: 1, UnitPrice: price("5.00")})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		require.ErrorIs(t, err, ErrNoProduct)
	}

	assert.Equal(t, before, d.Snapshot())
	assert.Len(t, rec.snaps, 1, "failed adds are not published")
}

func TestDraft_AddDefaults(t *testing.T) {
	d := New()

	line, err := d.Add(LineInput{ProductID: "p1", Quantity: -3, CatalogPrice: dec("4.50")})
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)
	assert.True(t, dec("4.50").Equal(line.UnitPrice))
	assert.NotEmpty(t, line.ID)

	line, err = d.Add(LineInput{ProductID: "p1", Quantity: 2, UnitPrice: price("0"), CatalogPrice: dec("4.50")})
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(line.UnitPrice), "override wins even when zero")

	_, err = d.Add(LineInput{ProductID: "p1", UnitPrice: price("-1")})
	require.ErrorIs(t, err, ErrInvalidPrice)
	_, err = d.Add(LineInput{ProductID: "p1", UnitPrice: price("10.005")})
	require.ErrorIs(t, err, ErrInvalidPrice)
	assert.Equal(t, 2, d.Len())
}

func TestDraft_DuplicatesNotMerged(t *testing.T) {
	d := New()
	first, err := d.Add(LineInput{ProductID: "p-soap", Quantity: 1, UnitPrice: price("10.00")})
	require.NoError(t, err)
	second, err := d.Add(LineInput{ProductID: "p-soap", Quantity: 1, UnitPrice: price("10.00")})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, d.Len())
	assertTotals(t, d.Totals(), "20.00", "3.60", "23.60")
}

func TestDraft_RemoveByID(t *testing.T) {
	d := New(WithLineIDs(sequentialIDs()))
	a, _ := d.Add(LineInput{ProductID: "a", Quantity: 1, UnitPrice: price("1.00")})
	b, _ := d.Add(LineInput{ProductID: "b", Quantity: 1, UnitPrice: price("2.00")})
	c, _ := d.Add(LineInput{ProductID: "c", Quantity: 1, UnitPrice: price("4.00")})

	require.NoError(t, d.Remove(a.ID))
	// c's ID still refers to c after a removal shifted positions.
	require.NoError(t, d.Remove(c.ID))

	lines := d.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, b.ID, lines[0].ID)

	require.ErrorIs(t, d.Remove(a.ID), ErrLineNotFound)
}

func TestDraft_RemoveAtOutOfRange(t *testing.T) {
	d := New()
	_, _ = d.Add(LineInput{ProductID: "a", Quantity: 1, UnitPrice: price("1.00")})

	for _, i := range []int{-1, 1, 10} {
		require.ErrorIs(t, d.RemoveAt(i), ErrIndexOutOfRange)
	}
	assert.Equal(t, 1, d.Len())
}

func TestDraft_Reset(t *testing.T) {
	rec := &recorder{}
	d := New(WithObserver(rec))
	_, _ = d.Add(LineInput{ProductID: "a", Quantity: 3, UnitPrice: price("7.25")})

	require.NoError(t, d.Reset())

	assert.Zero(t, d.Len())
	assertTotals(t, d.Totals(), "0", "0", "0")
	assert.True(t, rec.last().Empty())
	assert.Equal(t, StateEmpty, rec.last().State)
}

func TestDraft_TaxRateOption(t *testing.T) {
	d := New(WithTaxRate(dec("0.10")))
	_, _ = d.Add(LineInput{ProductID: "a", Quantity: 2, UnitPrice: price("10.00")})

	assertTotals(t, d.Totals(), "20.00", "2.00", "22.00")
}

func TestDraft_TotalsMatchLines(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	d := New()

	for step := 0; step < 500; step++ {
		if d.Len() > 0 && rng.IntN(3) == 0 {
			require.NoError(t, d.RemoveAt(rng.IntN(d.Len())))
		} else {
			cents := rng.IntN(100000)
			_, err := d.Add(LineInput{
				ProductID: fmt.Sprintf("p%d", rng.IntN(5)),
				Quantity:  1 + rng.IntN(20),
				UnitPrice: decimal.NewNullDecimal(decimal.New(int64(cents), -2)),
			})
			require.NoError(t, err)
		}

		snap := d.Snapshot()
		sum := decimal.Zero
		for _, l := range snap.Lines {
			sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		require.True(t, sum.Equal(snap.Totals.Subtotal), "step %d", step)
		require.True(t, sum.Mul(DefaultTaxRate).Round(2).Equal(snap.Totals.Tax), "step %d", step)
		require.True(t, snap.Totals.Subtotal.Add(snap.Totals.Tax).Equal(snap.Totals.Total), "step %d", step)
	}
}

func TestComputeTotals_Empty(t *testing.T) {
	assertTotals(t, ComputeTotals(nil, DefaultTaxRate), "0", "0", "0")
}

func TestLine_Total(t *testing.T) {
	l := Line{Quantity: 3, UnitPrice: dec("2.50")}
	assert.True(t, dec("7.50").Equal(l.Total()))
}
