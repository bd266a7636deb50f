// Package oddsmath converte odds americanas em odds decimais, probabilidade
// implícita e retorno total de um stake. Todas as funções são puras.
package oddsmath

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Limites de magnitude aceitos para odds americanas de uma opção
const (
	MinMagnitude = 100
	MaxMagnitude = 100000
)

var (
	ErrZeroOdds     = errors.New("invalid American odds: cannot be 0")
	ErrEmptyOdds    = errors.New("odds list must not be empty")
	ErrDecimalRange = errors.New("invalid decimal odds: must be > 1.0")
	ErrOddsRange    = errors.New("odds out of representable range")
	ErrAmountRange  = errors.New("amount exceeds the maximum storable value")
)

// MaxAmount é o maior valor monetário gravável (NUMERIC(14,2))
var MaxAmount = decimal.RequireFromString("999999999999.99")

var hundred = decimal.NewFromInt(100)

// Valid informa se o valor pode ser usado como odd de uma opção:
// magnitude entre MinMagnitude e MaxMagnitude
func Valid(american int) bool {
	if american < 0 {
		american = -american
	}
	return american >= MinMagnitude && american <= MaxMagnitude
}

// CheckAmount falha quando o valor não cabe na coluna monetária
func CheckAmount(amount decimal.Decimal) error {
	if amount.Abs().GreaterThan(MaxAmount) {
		return ErrAmountRange
	}
	return nil
}

// Payout retorna o retorno total (stake + lucro) arredondado em 2 casas
// +150, 100 → 250
// -150, 150 → 250
func Payout(american int, stake decimal.Decimal) (decimal.Decimal, error) {
	if american == 0 {
		return decimal.Zero, ErrZeroOdds
	}

	var profit decimal.Decimal
	if american > 0 {
		profit = stake.Mul(decimal.NewFromInt(int64(american))).Div(hundred)
	} else {
		profit = stake.Mul(hundred).Div(decimal.NewFromInt(int64(-american)))
	}
	return stake.Add(profit).Round(2), nil
}

// AmericanToDecimal converte odds americanas em decimais
// +150 → 2.50
// -150 → 1.67
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, ErrZeroOdds
	}
	if american > 0 {
		return float64(american)/100.0 + 1.0, nil
	}
	return 100.0/float64(-american) + 1.0, nil
}

// ImpliedProbability converte odds americanas na probabilidade implícita
// +100 → 0.50
// -300 → 0.75
func ImpliedProbability(american int) (float64, error) {
	if american == 0 {
		return 0, ErrZeroOdds
	}
	if american > 0 {
		return 100.0 / (float64(american) + 100.0), nil
	}
	abs := float64(-american)
	return abs / (abs + 100.0), nil
}

// CombinedDecimal multiplica as odds decimais de cada perna de um parlay
func CombinedDecimal(odds []int) (float64, error) {
	if len(odds) == 0 {
		return 0, ErrEmptyOdds
	}
	combined := 1.0
	for i, o := range odds {
		d, err := AmericanToDecimal(o)
		if err != nil {
			return 0, fmt.Errorf("leg %d: %w", i, err)
		}
		combined *= d
	}
	return combined, nil
}

// DecimalToAmerican converte odds decimais de volta para americanas
// 4.0 → +300
// 1.5 → -200
func DecimalToAmerican(d float64) (int, error) {
	if d <= 1.0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, ErrDecimalRange
	}
	var v float64
	if d >= 2.0 {
		v = math.Round((d - 1.0) * 100.0)
	} else {
		v = math.Round(-100.0 / (d - 1.0))
	}
	// float64(math.MaxInt64) arredonda para 2^63, que já não cabe em int64
	if v >= math.MaxInt64 || v < math.MinInt64 || math.IsInf(v, 0) {
		return 0, ErrOddsRange
	}
	return int(v), nil
}

// ParlayPayout aplica a odd decimal combinada ao stake, em 2 casas
func ParlayPayout(stake decimal.Decimal, combined float64) decimal.Decimal {
	return stake.Mul(decimal.NewFromFloat(combined)).Round(2)
}
