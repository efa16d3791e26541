// Package money переводит суммы между минимальными единицами валюты и десятичной записью,
// которую ожидает платежный шлюз.
package money

import (
	"math"
	"strconv"
	"strings"
)

// валюты без дробной части в терминах PayPal
var zeroDecimal = map[string]bool{
	"HUF": true,
	"JPY": true,
	"TWD": true,
}

// Exponent возвращает количество знаков после запятой для валюты.
func Exponent(currency string) int {
	if zeroDecimal[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// Format записывает сумму в минимальных единицах как десятичную строку, например 200 EUR -> "2.00".
func Format(minor int64, currency string) string {
	exp := Exponent(currency)
	if exp == 0 {
		return strconv.FormatInt(minor, 10)
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	unit := int64(math.Pow10(exp))
	frac := strconv.FormatInt(minor%unit, 10)
	frac = strings.Repeat("0", exp-len(frac)) + frac
	return sign + strconv.FormatInt(minor/unit, 10) + "." + frac
}

// FromMajor переводит сумму в основных единицах (2.5 EUR) в минимальные (250).
func FromMajor(major float64, currency string) int64 {
	return int64(math.Round(major * math.Pow10(Exponent(currency))))
}

// ToMajor переводит сумму в минимальных единицах в основные.
func ToMajor(minor int64, currency string) float64 {
	return float64(minor) / math.Pow10(Exponent(currency))
}
