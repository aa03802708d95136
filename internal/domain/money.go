package domain

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var eurPrinter = message.NewPrinter(language.English)

// RoundHalfUp rounds a fractional cent amount to the nearest whole cent,
// halves away from zero.
func RoundHalfUp(v float64) int64 {
	return int64(math.Round(v))
}

// PercentOf computes pct percent of amount in minor units, rounded half-up at
// the final cent.
func PercentOf(amount int64, pct float64) int64 {
	return RoundHalfUp(float64(amount) * pct / 100)
}

// SplitTaxInclusive derives the net amount and tax portion from a
// tax-inclusive gross amount. rate is fractional (0.21 for 21% VAT).
func SplitTaxInclusive(gross int64, rate float64) (net int64, tax int64) {
	if rate <= 0 {
		return gross, 0
	}
	net = RoundHalfUp(float64(gross) / (1 + rate))
	return net, gross - net
}

// FormatEUR renders a minor-unit amount as a display string such as "€5.00"
// or "€1,234.56". The symbol sits flush against the amount; the printer only
// supplies the English thousands grouping for the whole-euro part.
func FormatEUR(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s€%s.%02d", sign, eurPrinter.Sprintf("%d", amount/100), amount%100)
}

// FormatPercent renders a percentage value for display, e.g. "10%" or "12.5%".
func FormatPercent(pct float64) string {
	if pct == math.Trunc(pct) {
		return fmt.Sprintf("%d%%", int64(pct))
	}
	return fmt.Sprintf("%g%%", pct)
}
