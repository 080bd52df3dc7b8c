package ledger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound3_HalfAwayFromZero(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.0005", "1.001"},
		{"-1.0005", "-1.001"},
		{"2.0004", "2.000"},
		{"3", "3.000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round3(d(tt.in)).StringFixed(3), tt.in)
	}
}

func TestRound3_Idempotent(t *testing.T) {
	for _, in := range []string{"0", "1.0005", "-1.0005", "2.9999", "12.3456789", "-0.0004", "100"} {
		once := Round3(d(in))
		assert.True(t, Round3(once).Equal(once), in)
	}
}

func TestPurchaseCost(t *testing.T) {
	tests := []struct {
		grams, percent string
		want           string
	}{
		{"100", "2", "2.000"},
		{"12.345", "7.44", "0.918"},
		{"0", "91.6", "0.000"},
		{"100", "0", "0.000"},
		{"12.345", "0", "0.000"},
		{"0", "0", "0.000"},
	}
	for _, tt := range tests {
		got := PurchaseCost(d(tt.grams), d(tt.percent))
		assert.Equal(t, tt.want, got.StringFixed(3), "%s @ %s%%", tt.grams, tt.percent)
	}
}

func TestGrossBalanceDelta_DealerCostMinusUserCost(t *testing.T) {
	user := PurchaseCost(d("100"), d("2"))
	got := GrossBalanceDelta(decimal.Zero, user, d("5"))
	assert.Equal(t, "3.000", got.StringFixed(3))
}

func TestSettlementValue(t *testing.T) {
	assert.Equal(t, "10.000", SettlementValue(1, d("10")).StringFixed(3))
	assert.Equal(t, "7.407", SettlementValue(3, d("2.469")).StringFixed(3))
	assert.True(t, SettlementValue(0, d("10")).IsZero())
}

func TestParseDecimalOrZero(t *testing.T) {
	assert.True(t, ParseDecimalOrZero("").IsZero())
	assert.True(t, ParseDecimalOrZero("abc").IsZero())
	assert.True(t, ParseDecimalOrZero("NaN").IsZero())
	assert.True(t, ParseDecimalOrZero("0").IsZero())
	assert.Equal(t, "12.5", ParseDecimalOrZero(" 12.5 ").String())
	assert.Equal(t, "-3", ParseDecimalOrZero("-3").String())
}

func TestParseDecimal_Bounds(t *testing.T) {
	tests := []struct {
		in      string
		wantErr error
	}{
		{"12.345", nil},
		{"1.5e3", nil},
		{"99999999999999999", nil},
		{"-99999999999999999", nil},
		{"100000000000000000", errOutOfRange},
		{"1e17", errOutOfRange},
		{"1e99999999", errOutOfRange},
		{"-1e99999999", errOutOfRange},
		{"1e-99999999", errOutOfRange},
		{"0." + strings.Repeat("0", 45) + "1", errOutOfRange},
		{"abc", errMalformed},
		{"", errMalformed},
	}
	for _, tt := range tests {
		_, err := ParseDecimal(tt.in)
		if tt.wantErr == nil {
			assert.NoError(t, err, tt.in)
			continue
		}
		assert.ErrorIs(t, err, tt.wantErr, tt.in)
	}
}

func TestNumberPolicy_HugeExponent(t *testing.T) {
	v, err := Lenient.NonNegative("weight", Dec("1e99999999"))
	require.NoError(t, err)
	assert.True(t, v.IsZero())
	assert.Equal(t, "0.000", Round3(v).StringFixed(3))

	v, err = Lenient.Signed("delta", Dec("-1e99999999"))
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = Strict.NonNegative("weight", Dec("1e99999999"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "weight is out of range", Message(err))

	_, err = Strict.Signed("delta", Dec("1e-99999999"))
	assert.ErrorIs(t, err, ErrValidation)

	assert.True(t, ParseDecimalOrZero("1e99999999").IsZero())
}

func TestDecimalInput_Unmarshal(t *testing.T) {
	var body struct {
		A DecimalInput `json:"a"`
		B DecimalInput `json:"b"`
		C DecimalInput `json:"c"`
		D DecimalInput `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1.25, "b": " 2.5 ", "c": null}`), &body))

	assert.Equal(t, DecimalInput{Raw: "1.25", Set: true}, body.A)
	assert.Equal(t, DecimalInput{Raw: "2.5", Set: true}, body.B)
	assert.False(t, body.C.Set)
	assert.False(t, body.D.Set)
}

func TestNumberPolicy(t *testing.T) {
	v, err := Lenient.NonNegative("qty", Dec("oops"))
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	v, err = Lenient.NonNegative("qty", Dec("-4"))
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = Strict.NonNegative("qty", Dec("oops"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "qty must be a number", Message(err))

	_, err = Strict.NonNegative("qty", Dec("-4"))
	assert.ErrorIs(t, err, ErrValidation)

	v, err = Strict.NonNegative("qty", DecimalInput{})
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	v, err = Strict.Signed("delta", Dec("-4.5"))
	require.NoError(t, err)
	assert.Equal(t, "-4.5", v.String())
}
