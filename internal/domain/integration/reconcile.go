package integration

import (
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Monetary reconciliation
// ---------------------------------------------------------------------------

var (
	// PrecisionTolerance is the largest difference still treated as zero
	PrecisionTolerance = decimal.RequireFromString("0.001")
	// MaxRoundingCorrection caps the post-creation correction line amount
	MaxRoundingCorrection = decimal.RequireFromString("0.10")
)

// FormatMoney renders an amount with exactly two decimals
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ReconcileLines concentrates any difference between target and the sum of
// line totals in the unit price of the single largest line. Prices keep full
// precision; the returned difference is what was applied (zero when within
// tolerance). The input slice is not modified.
func ReconcileLines(lines []InvoiceLine, target decimal.Decimal) ([]InvoiceLine, decimal.Decimal) {
	out := make([]InvoiceLine, len(lines))
	copy(out, lines)
	if len(out) == 0 {
		return out, decimal.Zero
	}

	sum := decimal.Zero
	for _, l := range out {
		sum = sum.Add(l.LineTotal)
	}
	diff := target.Sub(sum)
	if diff.Abs().LessThanOrEqual(PrecisionTolerance) {
		return out, decimal.Zero
	}

	largest := 0
	largestAmount := decimal.Zero
	for i, l := range out {
		if l.LineTotal.GreaterThan(largestAmount) {
			largestAmount = l.LineTotal
			largest = i
		}
	}

	qty := out[largest].Quantity
	if qty <= 0 {
		return out, decimal.Zero
	}
	out[largest].Price = out[largest].Price.Add(diff.Div(decimal.NewFromInt(int64(qty))))
	return out, diff
}

// RoundPrices rounds every line price to cents for transmission
func RoundPrices(lines []InvoiceLine) []InvoiceLine {
	out := make([]InvoiceLine, len(lines))
	for i, l := range lines {
		l.Price = l.Price.Round(2)
		out[i] = l
	}
	return out
}

// LinesSubtotal returns sum(price * quantity)
func LinesSubtotal(lines []InvoiceLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// CorrectionDecision is the outcome of comparing remote and order totals
type CorrectionDecision string

const (
	// CorrectionNotNeeded means the totals agree within tolerance
	CorrectionNotNeeded CorrectionDecision = "NOT_NEEDED"
	// CorrectionApply means a correction line should be appended
	CorrectionApply CorrectionDecision = "APPLY"
	// CorrectionOverLimit means the drift is too large to correct automatically
	CorrectionOverLimit CorrectionDecision = "OVER_LIMIT"
)

// RoundingCorrection decides whether a correction line is needed after
// invoice creation. The amount is orderTotal - remoteTotal rounded to cents,
// so a remote total that falls short yields a positive correction.
func RoundingCorrection(orderTotal, remoteTotal decimal.Decimal) (decimal.Decimal, CorrectionDecision) {
	diff := orderTotal.Sub(remoteTotal)
	abs := diff.Abs()
	switch {
	case abs.LessThanOrEqual(PrecisionTolerance):
		return decimal.Zero, CorrectionNotNeeded
	case abs.GreaterThan(MaxRoundingCorrection):
		return diff, CorrectionOverLimit
	}
	amount := diff.Round(2)
	if amount.IsZero() {
		return decimal.Zero, CorrectionNotNeeded
	}
	return amount, CorrectionApply
}
