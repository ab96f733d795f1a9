package modal

import "strings"

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyINR Currency = "INR"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
)

// Currencies lists the currencies offered by the start form, in display order.
var Currencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyINR, CurrencyCAD, CurrencyAUD}

// ParseCurrency normalises s to a known currency. Unknown or empty values fall back to USD.
func ParseCurrency(s string) Currency {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Currencies {
		if c == known {
			return c
		}
	}
	return CurrencyUSD
}
