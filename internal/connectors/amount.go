package connectors

import (
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

func exponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// ToMajor converts a minor-unit amount into the currency's major unit.
func ToMajor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -exponent(currency))
}

// ToMinor converts a major-unit amount into minor units, rounding half away from zero.
func ToMinor(major decimal.Decimal, currency string) int64 {
	return major.Shift(exponent(currency)).Round(0).IntPart()
}
