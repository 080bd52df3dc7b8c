package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round3 rounds grams to 3 fractional digits, half away from zero.
func Round3(x decimal.Decimal) decimal.Decimal {
	return x.Round(3)
}

// Round2 rounds currency amounts to 2 fractional digits.
func Round2(x decimal.Decimal) decimal.Decimal {
	return x.Round(2)
}

// PurchaseCost is round3(totalGramPurchase * sriBillPercent / 100).
func PurchaseCost(totalGramPurchase, sriBillPercent decimal.Decimal) decimal.Decimal {
	return Round3(totalGramPurchase.Mul(sriBillPercent).Div(hundred))
}

// GrossBalanceDelta returns the new gross balance after a dealer stock-in:
// round3(current - userPurchaseCost + dealerPurchaseCost).
func GrossBalanceDelta(currentBalance, userPurchaseCost, dealerPurchaseCost decimal.Decimal) decimal.Decimal {
	return Round3(currentBalance.Sub(userPurchaseCost).Add(dealerPurchaseCost))
}

// SettlementValue is the gram value of returned line-stock units.
func SettlementValue(returnedQty int, grossWeightPerUnit decimal.Decimal) decimal.Decimal {
	return Round3(decimal.NewFromInt(int64(returnedQty)).Mul(grossWeightPerUnit))
}

// ItemValue is the gram value of qty units of the given per-unit weight.
func ItemValue(grossWeightPerUnit decimal.Decimal, qty int) decimal.Decimal {
	return SettlementValue(qty, grossWeightPerUnit)
}

// Inputs are bounded before any arithmetic: decimal keeps the exponent
// apart from the digits, so "1e99999999" parses cheaply but rescaling it
// does not.
const (
	maxInputLen = 40
	minExponent = -20
	maxExponent = 17
)

var maxMagnitude = decimal.New(1, 17) // above decimal(20,3)

var (
	errMalformed  = errors.New("malformed number")
	errOutOfRange = errors.New("number out of range")
)

// ParseDecimalOrZero parses s, returning zero for empty, malformed or
// out-of-range input.
func ParseDecimalOrZero(s string) decimal.Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseDecimal parses s and rejects values that cannot fit a decimal(20,3)
// column.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errMalformed
	}
	if len(s) > maxInputLen {
		return decimal.Zero, errOutOfRange
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errMalformed
	}
	if e := d.Exponent(); e < minExponent || e > maxExponent {
		return decimal.Zero, errOutOfRange
	}
	if d.Abs().Cmp(maxMagnitude) >= 0 {
		return decimal.Zero, errOutOfRange
	}
	return d, nil
}

func (p NumberPolicy) parse(field string, raw string) (decimal.Decimal, error) {
	d, err := ParseDecimal(raw)
	switch {
	case err == nil:
		return d, nil
	case p != Strict:
		return decimal.Zero, nil
	case errors.Is(err, errOutOfRange):
		return decimal.Zero, Validationf("%s is out of range", field)
	default:
		return decimal.Zero, Validationf("%s must be a number", field)
	}
}

func FormatGrams(x decimal.Decimal) string {
	return Round3(x).StringFixed(3)
}

func FormatMoney(x decimal.Decimal) string {
	return Round2(x).StringFixed(2)
}

// DecimalInput is a request number that may arrive as a JSON number, a
// JSON string, null or not at all. Interpretation is left to a NumberPolicy.
type DecimalInput struct {
	Raw string
	Set bool
}

func (d *DecimalInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = DecimalInput{}
		return nil
	}
	d.Set = true
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d.Raw = strings.TrimSpace(s)
		return nil
	}
	d.Raw = string(b)
	return nil
}

func (d DecimalInput) MarshalJSON() ([]byte, error) {
	if !d.Set {
		return []byte("null"), nil
	}
	return json.Marshal(d.Raw)
}

// Dec builds a set input from a literal; handy for callers and tests.
func Dec(s string) DecimalInput {
	return DecimalInput{Raw: s, Set: true}
}

type NumberPolicy string

const (
	Lenient NumberPolicy = "lenient"
	Strict  NumberPolicy = "strict"
)

// NonNegative resolves a numeric input. Absent input is zero under both
// policies. Lenient turns malformed, out-of-range or negative input into
// zero; strict rejects it with ErrValidation.
func (p NumberPolicy) NonNegative(field string, in DecimalInput) (decimal.Decimal, error) {
	if !in.Set || in.Raw == "" {
		return decimal.Zero, nil
	}
	d, err := p.parse(field, in.Raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		if p == Strict {
			return decimal.Zero, Validationf("%s must not be negative", field)
		}
		return decimal.Zero, nil
	}
	return d, nil
}

// Signed resolves an input that may legitimately be negative, such as a
// manual adjustment.
func (p NumberPolicy) Signed(field string, in DecimalInput) (decimal.Decimal, error) {
	if !in.Set || in.Raw == "" {
		return decimal.Zero, nil
	}
	return p.parse(field, in.Raw)
}
