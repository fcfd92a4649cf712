// Package quantity is the single place that knows how product quantities
// step, round and clamp, and how money amounts round. Every other component
// goes through it; nothing else does ad hoc rounding.
package quantity

import "github.com/shopspring/decimal"

// Unit families. Discrete units step by whole pieces, coarse weight by a
// tenth of a kilogram, fine weight by fifty grams. Steps are table-driven.
type Unit string

const (
	UnitPiece    Unit = "piece"
	UnitKilogram Unit = "kg"
	UnitGram     Unit = "g"
)

var steps = map[Unit]decimal.Decimal{
	UnitPiece:    decimal.NewFromInt(1),
	UnitKilogram: decimal.RequireFromString("0.1"),
	UnitGram:     decimal.NewFromInt(50),
}

// qtyPlaces is the precision quantities are kept at; money uses moneyPlaces.
const (
	qtyPlaces   = 3
	moneyPlaces = 2
)

// Step returns the quantity step for a unit. Unknown units step like pieces.
func Step(u Unit) decimal.Decimal {
	if s, ok := steps[u]; ok {
		return s
	}
	return steps[UnitPiece]
}

// Normalize floors qty to the nearest step of the unit, at 3-decimal
// precision. Normalize is idempotent.
func Normalize(qty decimal.Decimal, u Unit) decimal.Decimal {
	step := Step(u)
	return qty.Div(step).Floor().Mul(step).Round(qtyPlaces)
}

// Clamp returns a value within [min, max] that is a whole number of steps
// away from min. Values below min come back as min; values above max come
// back as the highest reachable step at or below max.
func Clamp(qty decimal.Decimal, u Unit, min, max decimal.Decimal) decimal.Decimal {
	step := Step(u)
	n := min.Add(qty.Sub(min).Div(step).Floor().Mul(step))
	if n.LessThan(min) {
		n = min
	}
	if n.GreaterThan(max) {
		n = min.Add(max.Sub(min).Div(step).Floor().Mul(step))
	}
	return n.Round(qtyPlaces)
}

// DiscountKind selects how a product discount is interpreted: as a
// percentage off the base price or as an absolute amount off.
type DiscountKind string

const (
	DiscountNone    DiscountKind = ""
	DiscountPercent DiscountKind = "percent"
	DiscountAmount  DiscountKind = "amount"
)

var hundred = decimal.NewFromInt(100)

// EffectivePrice applies a discount to a base price and rounds to 2
// decimals. The result never goes below zero.
func EffectivePrice(base decimal.Decimal, kind DiscountKind, value decimal.Decimal) decimal.Decimal {
	price := base
	switch kind {
	case DiscountPercent:
		price = base.Sub(base.Mul(value).Div(hundred))
	case DiscountAmount:
		price = base.Sub(value)
	}
	if price.IsNegative() {
		price = decimal.Zero
	}
	return price.Round(moneyPlaces)
}

// LineSubtotal returns unitPrice * qty rounded to 2 decimals.
func LineSubtotal(unitPrice, qty decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(qty).Round(moneyPlaces)
}
