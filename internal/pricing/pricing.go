// Package pricing derives order amounts from the selected item and its
// requested quantity. Amounts are in currency minor units.
package pricing

import "github.com/arthurstore/storefront/internal/models"

const (
	// ServiceFeeRate is the flat service fee applied to the subtotal.
	ServiceFeeRate = 0.15
	// DeliveryFee is the fixed shipping charge in minor units.
	DeliveryFee int64 = 15000
)

// Subtotal returns unit price times requested quantity for the selected
// item, or 0 when nothing is selected, the catalog is empty, or the item
// has no recorded quantity.
func Subtotal(selectedID int, catalog []models.Item, quantities map[int]int) int64 {
	if selectedID <= 0 || len(catalog) == 0 {
		return 0
	}
	for _, item := range catalog {
		if item.ID == selectedID {
			return item.Price * int64(quantities[selectedID])
		}
	}
	return 0
}

// ServiceFee returns the service fee for a given subtotal.
func ServiceFee(subtotal int64) int64 {
	return int64(float64(subtotal) * ServiceFeeRate)
}

// Total returns subtotal plus service fee plus the fixed delivery fee.
func Total(selectedID int, catalog []models.Item, quantities map[int]int) int64 {
	subtotal := Subtotal(selectedID, catalog, quantities)
	return subtotal + ServiceFee(subtotal) + DeliveryFee
}
