package oddsmath_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/social-wager-platform/pkg/oddsmath"
)

func TestPayout(t *testing.T) {
	tests := []struct {
		name     string
		american int
		stake    string
		want     string
	}{
		{"Underdog +150", 150, "100", "250"},
		{"Favorite -150", -150, "150", "250"},
		{"Even +100", 100, "100", "200"},
		{"Favorite -110", -110, "110", "210"},
		{"Rounds to cents", -110, "10", "19.09"},
		{"Wager scenario +150", 150, "200", "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.Payout(tt.american, decimal.RequireFromString(tt.stake))
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestPayout_ZeroOdds(t *testing.T) {
	_, err := oddsmath.Payout(0, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, oddsmath.ErrZeroOdds)
}

func TestAmericanToDecimal(t *testing.T) {
	tests := []struct {
		american int
		want     float64
	}{
		{100, 2.0},
		{150, 2.5},
		{200, 3.0},
		{-110, 1.909090909},
		{-150, 1.666666667},
		{-200, 1.5},
	}

	for _, tt := range tests {
		got, err := oddsmath.AmericanToDecimal(tt.american)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 0.0001, "AmericanToDecimal(%d)", tt.american)
	}

	_, err := oddsmath.AmericanToDecimal(0)
	assert.ErrorIs(t, err, oddsmath.ErrZeroOdds)
}

func TestImpliedProbability(t *testing.T) {
	tests := []struct {
		american int
		want     float64
	}{
		{100, 0.5},
		{-100, 0.5},
		{300, 0.25},
		{-300, 0.75},
		{150, 0.4},
	}

	for _, tt := range tests {
		got, err := oddsmath.ImpliedProbability(tt.american)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "ImpliedProbability(%d)", tt.american)
	}
}

func TestCombinedDecimal(t *testing.T) {
	got, err := oddsmath.CombinedDecimal([]int{100, 100})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got, 1e-9)

	american, err := oddsmath.DecimalToAmerican(got)
	require.NoError(t, err)
	assert.Equal(t, 300, american)

	got, err = oddsmath.CombinedDecimal([]int{150, -200, 100})
	require.NoError(t, err)
	assert.InDelta(t, 2.5*1.5*2.0, got, 1e-9)

	_, err = oddsmath.CombinedDecimal(nil)
	assert.ErrorIs(t, err, oddsmath.ErrEmptyOdds)

	_, err = oddsmath.CombinedDecimal([]int{100, 0})
	assert.ErrorIs(t, err, oddsmath.ErrZeroOdds)
}

func TestDecimalToAmerican(t *testing.T) {
	tests := []struct {
		decimal float64
		want    int
	}{
		{2.0, 100},
		{2.5, 150},
		{4.0, 300},
		{1.909, -110},
		{1.667, -150},
		{1.5, -200},
	}

	for _, tt := range tests {
		got, err := oddsmath.DecimalToAmerican(tt.decimal)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "DecimalToAmerican(%f)", tt.decimal)
	}

	for _, bad := range []float64{1.0, 0.5, -2} {
		_, err := oddsmath.DecimalToAmerican(bad)
		assert.ErrorIs(t, err, oddsmath.ErrDecimalRange)
	}
}

func TestRoundTrip(t *testing.T) {
	for o := 100; o <= 1000; o += 7 {
		for _, american := range []int{o, -o} {
			d, err := oddsmath.AmericanToDecimal(american)
			require.NoError(t, err)
			back, err := oddsmath.DecimalToAmerican(d)
			require.NoError(t, err)
			diff := back - american
			// -100 e +100 são a mesma odd decimal (2.0)
			if american == -100 {
				diff = back - 100
			}
			assert.LessOrEqual(t, diff*diff, 1, "round trip %d -> %f -> %d", american, d, back)
		}
	}
}

func TestValid(t *testing.T) {
	for _, ok := range []int{100, -100, 150, -10000, oddsmath.MaxMagnitude, -oddsmath.MaxMagnitude} {
		assert.True(t, oddsmath.Valid(ok), "%d should be valid", ok)
	}
	for _, bad := range []int{0, 99, -99, 1, -1, 50, oddsmath.MaxMagnitude + 1, -oddsmath.MaxMagnitude - 1, 1 << 40} {
		assert.False(t, oddsmath.Valid(bad), "%d should be invalid", bad)
	}
}

func TestParlayPayout(t *testing.T) {
	got := oddsmath.ParlayPayout(decimal.NewFromInt(50), 4.0)
	assert.True(t, got.Equal(decimal.NewFromInt(200)))

	combined, err := oddsmath.CombinedDecimal([]int{-110, -110})
	require.NoError(t, err)
	got = oddsmath.ParlayPayout(decimal.NewFromInt(100), combined)
	assert.Equal(t, "364.46", got.StringFixed(2))
}

func TestDecimalToAmerican_OutOfRange(t *testing.T) {
	combined, err := oddsmath.CombinedDecimal([]int{1 << 60, 1 << 60})
	require.NoError(t, err)

	_, err = oddsmath.DecimalToAmerican(combined)
	assert.ErrorIs(t, err, oddsmath.ErrOddsRange)

	// ~9e18 ainda cabe em int64; 1e17 já não
	got, err := oddsmath.DecimalToAmerican(9e16)
	require.NoError(t, err)
	assert.Greater(t, got, int(8.9e18))

	_, err = oddsmath.DecimalToAmerican(1e17)
	assert.ErrorIs(t, err, oddsmath.ErrOddsRange)
}

func TestCheckAmount(t *testing.T) {
	assert.NoError(t, oddsmath.CheckAmount(oddsmath.MaxAmount))
	assert.NoError(t, oddsmath.CheckAmount(decimal.RequireFromString("250.00")))
	assert.ErrorIs(t, oddsmath.CheckAmount(oddsmath.MaxAmount.Add(decimal.RequireFromString("0.01"))), oddsmath.ErrAmountRange)

	// dez pernas no teto de magnitude estouram a coluna de payout
	legs := make([]int, 10)
	for i := range legs {
		legs[i] = oddsmath.MaxMagnitude
	}
	combined, err := oddsmath.CombinedDecimal(legs)
	require.NoError(t, err)
	payout := oddsmath.ParlayPayout(decimal.NewFromInt(1), combined)
	assert.ErrorIs(t, oddsmath.CheckAmount(payout), oddsmath.ErrAmountRange)
}
