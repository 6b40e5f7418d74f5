package domain

// FoodItem is a single product offered by a merchant.
type FoodItem struct {
	ID                int64   `json:"id"`
	MerchantID        int64   `json:"merchantsId"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	ImageURL          string  `json:"imageUrl"`
	OriginalPrice     float64 `json:"originalPrice"`
	DiscountedPrice   float64 `json:"discountedPrice"`
	QuantityAvailable int     `json:"quantityAvailable"`
	PickupStartTime   string  `json:"pickupStartTime"`
	PickupEndTime     string  `json:"pickupEndTime"`
	Category          string  `json:"category"`
	Active            bool    `json:"active"`
}

// Merchant is a seller with its ordered product list.
type Merchant struct {
	ID          int64      `json:"merchantsId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	AddressText string     `json:"addressText"`
	PhoneNumber string     `json:"phoneNumber"`
	LogoURL     string     `json:"logoUrl"`
	FoodList    []FoodItem `json:"foodList"`
}
