package order

import (
	"math"

	"github.com/ValentinKolb/dShop/lib/model"
)

const (
	TaxRate               = 0.08
	ShippingFee           = 9.99
	FreeShippingThreshold = 50.0
)

// Totals are the amounts of an order, each rounded to 2 decimals
type Totals struct {
	Subtotal    float64
	Tax         float64
	Shipping    float64
	TotalAmount float64
}

// CalculateTotals computes subtotal, tax, shipping and total of a list of items.
// Shipping is free from a subtotal of FreeShippingThreshold.
func CalculateTotals(items []model.CartItem) Totals {
	var sum float64
	for _, it := range items {
		sum += it.Price * float64(it.Quantity)
	}

	t := Totals{Subtotal: round2(sum)}
	t.Tax = round2(t.Subtotal * TaxRate)
	if t.Subtotal < FreeShippingThreshold {
		t.Shipping = ShippingFee
	}
	t.TotalAmount = round2(t.Subtotal + t.Tax + t.Shipping)
	return t
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
