package domain

// ProductDelta is one changed or new product record delivered over the push
// stream. The wire names follow the backend's push payload.
type ProductDelta struct {
	FoodItemID      int64   `json:"foodItemId"`
	MerchantID      int64   `json:"merchantId"`
	Name            string  `json:"foodItemName"`
	Description     string  `json:"foodItemDescription"`
	Category        string  `json:"category"`
	OriginalPrice   float64 `json:"originalPrice"`
	DiscountedPrice float64 `json:"discountedPrice"`
	FinalPrice      float64 `json:"finalPrice"`
	ImageURL        string  `json:"foodItemImageUrl"`
	PickupTime      string  `json:"pickupTime"`
	MerchantName    string  `json:"merchantName"`
	MerchantAddress string  `json:"merchantAddress"`
	Quantity        int     `json:"quantity,omitempty"`
}

// FoodItem converts the delta into the snapshot representation. The pushed
// final price is the authoritative discounted price; a missing quantity means
// at least one unit is available.
func (d ProductDelta) FoodItem() FoodItem {
	qty := d.Quantity
	if qty <= 0 {
		qty = 1
	}
	return FoodItem{
		ID:                d.FoodItemID,
		MerchantID:        d.MerchantID,
		Name:              d.Name,
		Description:       d.Description,
		ImageURL:          d.ImageURL,
		OriginalPrice:     d.OriginalPrice,
		DiscountedPrice:   d.FinalPrice,
		QuantityAvailable: qty,
		Category:          d.Category,
		Active:            true,
	}
}
