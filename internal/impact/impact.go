// Package impact turns the free-text quantity of a listing into kilograms
// of food and derives the environmental savings recorded with a donation.
package impact

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultKg is used when no weight can be read from the quantity text.
var DefaultKg = decimal.NewFromInt(2)

var (
	kgPattern     = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*(?:kg|kgs|kilograms?)\b`)
	gramPattern   = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*(?:g|grams?)\b`)
	numberPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*$`)

	co2PerKg   = decimal.RequireFromString("2.5")
	waterPerKg = decimal.NewFromInt(500)
)

// ParseKilograms reads a weight out of quantity.  Kilograms win over grams;
// a bare number is taken as kilograms; anything else, including a parsed
// value of zero, yields DefaultKg.
func ParseKilograms(quantity string) decimal.Decimal {
	q := strings.TrimSpace(quantity)
	if m := kgPattern.FindStringSubmatch(q); m != nil {
		return orDefault(decimal.RequireFromString(m[1]))
	}
	if m := gramPattern.FindStringSubmatch(q); m != nil {
		return orDefault(decimal.RequireFromString(m[1]).Div(decimal.NewFromInt(1000)))
	}
	if m := numberPattern.FindStringSubmatch(q); m != nil {
		return orDefault(decimal.RequireFromString(m[1]))
	}
	return DefaultKg
}

func orDefault(kg decimal.Decimal) decimal.Decimal {
	if kg.IsZero() {
		return DefaultKg
	}
	return kg
}

// Metrics is the impact attributed to one donation.
type Metrics struct {
	FoodKg     decimal.Decimal
	CO2Saved   decimal.Decimal // kg CO2e, two decimals
	WaterSaved int64           // litres, whole number
	PeopleFed  int
}

// Compute derives Metrics from a kilogram amount.  Every donation feeds
// one person.
func Compute(kg decimal.Decimal) Metrics {
	return Metrics{
		FoodKg:     kg,
		CO2Saved:   kg.Mul(co2PerKg).Round(2),
		WaterSaved: kg.Mul(waterPerKg).Round(0).IntPart(),
		PeopleFed:  1,
	}
}

// FromQuantity is ParseKilograms followed by Compute.
func FromQuantity(quantity string) Metrics {
	return Compute(ParseKilograms(quantity))
}
