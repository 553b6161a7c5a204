package services

import (
	"os"
	"strconv"
)

// ShippingCalculator applique le tarif unique avec franco de port.
// Montants en centimes, comme partout ailleurs.
type ShippingCalculator struct {
	FlatFee  int64
	FreeFrom int64 // 0 = jamais gratuit
}

func NewShippingCalculatorFromEnv() *ShippingCalculator {
	return &ShippingCalculator{
		FlatFee:  envInt64("SHIPPING_FLAT_FEE_CENTS", 499),
		FreeFrom: envInt64("SHIPPING_FREE_FROM_CENTS", 5000),
	}
}

// Fee calcule les frais de livraison sur le montant après remise.
func (s *ShippingCalculator) Fee(amount int64) int64 {
	if s.FreeFrom > 0 && amount >= s.FreeFrom {
		return 0
	}
	return s.FlatFee
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
