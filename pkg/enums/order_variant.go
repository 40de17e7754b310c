package enums

import "fmt"

// OrderVariant distinguishes the two order tables sharing one schema.
type OrderVariant string

const (
	OrderVariantCanteen OrderVariant = "canteen"
	OrderVariantShop    OrderVariant = "shop"
)

var validOrderVariants = []OrderVariant{
	OrderVariantCanteen,
	OrderVariantShop,
}

func (v OrderVariant) String() string {
	return string(v)
}

// IsValid reports whether the value is a known OrderVariant.
func (v OrderVariant) IsValid() bool {
	for _, candidate := range validOrderVariants {
		if candidate == v {
			return true
		}
	}
	return false
}

// TableName returns the backing table for the variant.
func (v OrderVariant) TableName() string {
	if v == OrderVariantShop {
		return "shop_orders"
	}
	return "canteen_orders"
}

// ParseOrderVariant converts raw input into an OrderVariant.
func ParseOrderVariant(value string) (OrderVariant, error) {
	for _, candidate := range validOrderVariants {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order variant %q", value)
}
