// Package money computes document totals from line items.
//
// Every intermediate value is rounded to cents (half away from zero) as it
// is produced: per line subtotal, per line tax, and the running sums after
// each addition. Persisted line totals and document totals therefore agree
// to the cent.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fieldledger/internal/core/apperror"
	"fieldledger/internal/core/types"
)

var hundred = decimal.NewFromInt(100)

// Item is the money-relevant part of a line item.
type Item struct {
	Quantity  types.Money
	UnitPrice types.Money
	// TaxRate is a percentage, 20 means 20%.
	TaxRate types.Money
}

// Totals is the result of ComputeTotals.
type Totals struct {
	Subtotal types.Money `json:"subtotal"`
	TaxTotal types.Money `json:"taxTotal"`
	Total    types.Money `json:"total"`
}

// Round2 rounds to 2 decimals, half away from zero.
func Round2(d types.Money) types.Money {
	return d.Round(2)
}

// ValidateItem checks the invariants of a single item.
func ValidateItem(it Item) error {
	switch {
	case !it.Quantity.IsPositive():
		return apperror.NewFieldValidation("quantity", "quantity must be greater than 0").
			WithDetail("value", it.Quantity.String())
	case it.UnitPrice.IsNegative():
		return apperror.NewFieldValidation("unitPrice", "unit price must not be negative").
			WithDetail("value", it.UnitPrice.String())
	case it.TaxRate.IsNegative():
		return apperror.NewFieldValidation("taxRate", "tax rate must not be negative").
			WithDetail("value", it.TaxRate.String())
	}
	return nil
}

// Validate checks every item; the first failure is returned with its index.
func Validate(items []Item) error {
	for i, it := range items {
		if err := ValidateItem(it); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("index", i)
			}
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func lineSubtotal(it Item) types.Money {
	return Round2(it.Quantity.Mul(it.UnitPrice))
}

func lineTax(sub types.Money, rate types.Money) types.Money {
	return Round2(sub.Mul(rate).Div(hundred))
}

// ComputeTotals returns subtotal, tax total and total of items.
// The whole batch is rejected if any item is invalid.
func ComputeTotals(items []Item) (Totals, error) {
	if err := Validate(items); err != nil {
		return Totals{}, err
	}

	subtotal, taxTotal := decimal.Zero, decimal.Zero
	for _, it := range items {
		sub := lineSubtotal(it)
		subtotal = Round2(subtotal.Add(sub))
		taxTotal = Round2(taxTotal.Add(lineTax(sub, it.TaxRate)))
	}

	return Totals{
		Subtotal: subtotal,
		TaxTotal: taxTotal,
		Total:    Round2(subtotal.Add(taxTotal)),
	}, nil
}

// LineTotal is the tax-inclusive total of one item:
// round2(round2(quantity*unitPrice) * (1 + taxRate/100)).
func LineTotal(it Item) types.Money {
	factor := decimal.NewFromInt(1).Add(it.TaxRate.Div(hundred))
	return Round2(lineSubtotal(it).Mul(factor))
}

// Sum adds amounts and rounds the result to cents.
func Sum(amounts []types.Money) types.Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round2(total)
}
