package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const pickupCodeDigits = 6

// NewPickupCode returns a short numeric code vendors read back at the counter.
// Not unique by construction; uniqueness matters only within a vendor's live
// orders and collisions there are tolerable.
func NewPickupCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < pickupCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate pickup code: %w", err)
	}
	return fmt.Sprintf("%0*d", pickupCodeDigits, n), nil
}

// NewQRToken returns an unguessable token embedded in the pickup QR code.
func NewQRToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate qr token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
