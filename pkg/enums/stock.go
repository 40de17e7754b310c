package enums

import "fmt"

// StockStatus flags a daily stock entry as sellable or not.
type StockStatus string

const (
	StockStatusAvailable   StockStatus = "available"
	StockStatusUnavailable StockStatus = "unavailable"
)

var validStockStatuses = []StockStatus{
	StockStatusAvailable,
	StockStatusUnavailable,
}

func (s StockStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockStatus.
func (s StockStatus) IsValid() bool {
	for _, candidate := range validStockStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockStatus converts raw input into a StockStatus.
func ParseStockStatus(value string) (StockStatus, error) {
	for _, candidate := range validStockStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock status %q", value)
}

// StockMode selects how a vendor tracks availability.
type StockMode string

const (
	// StockModeSimple vendors only toggle an item on or off.
	StockModeSimple StockMode = "simple"
	// StockModeDaily vendors load dated per-item quantities each morning.
	StockModeDaily StockMode = "daily"
)

var validStockModes = []StockMode{
	StockModeSimple,
	StockModeDaily,
}

func (m StockMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known StockMode.
func (m StockMode) IsValid() bool {
	for _, candidate := range validStockModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseStockMode converts raw input into a StockMode.
func ParseStockMode(value string) (StockMode, error) {
	for _, candidate := range validStockModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock mode %q", value)
}
