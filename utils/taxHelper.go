package utils

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NetUnitCost derives the net-of-tax unit cost from a document unit price.
// Tax *rules* (which rate applies, exemptions) are decided upstream; only
// the inclusive/exclusive arithmetic lives here.
func NetUnitCost(unitPrice decimal.Decimal, taxRate decimal.Decimal, isTaxInclusive bool) decimal.Decimal {
	if taxRate.IsZero() {
		return unitPrice
	}
	if isTaxInclusive {
		// price / (100 + rate) * 100
		return unitPrice.Mul(hundred).DivRound(taxRate.Add(hundred), 4)
	}
	// Exclusive prices are already net.
	return unitPrice
}

// TaxAmount returns the tax portion of a total for the given rate.
func TaxAmount(totalAmount decimal.Decimal, taxRate decimal.Decimal, isTaxInclusive bool) decimal.Decimal {
	if taxRate.IsZero() {
		return decimal.Zero
	}
	if isTaxInclusive {
		// (total / (100 + rate)) * rate
		return totalAmount.DivRound(taxRate.Add(hundred), 4).Mul(taxRate)
	}
	// (total / 100) * rate
	return totalAmount.DivRound(hundred, 4).Mul(taxRate)
}
