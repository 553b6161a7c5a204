package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Types de bons de réduction
const (
	VoucherPercentage = "percentage"
	VoucherFixed      = "fixed"
)

type Voucher struct {
	ID        gocql.UUID `json:"id"`
	Code      string     `json:"code"`
	Type      string     `json:"type"` // "percentage" ou "fixed"
	Value     int64      `json:"value"`
	MinAmount int64      `json:"min_amount"` // montant minimum de commande, en centimes
	MaxUses   int        `json:"max_uses"`   // 0 = illimité
	UsedCount int        `json:"used_count"`
	ExpiresAt time.Time  `json:"expires_at"`
	StartsAt  time.Time  `json:"starts_at"`
	IsActive  bool       `json:"is_active"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// VoucherRedemption matérialise une unité d'utilisation consommée par une
// commande. Libérée si la commande est annulée avant paiement : une commande
// abandonnée ne brûle pas l'utilisation du client.
type VoucherRedemption struct {
	Code       string     `json:"code"`
	OrderID    gocql.UUID `json:"order_id"`
	VoucherID  gocql.UUID `json:"voucher_id"`
	RedeemedAt time.Time  `json:"redeemed_at"`
}

// Discount calcule la remise pour un total donné.
// Pourcentage : partie entière de total * valeur / 100.
// Fixe : la valeur, plafonnée au total — la remise ne dépasse jamais la commande.
func (v *Voucher) Discount(orderTotal int64) int64 {
	switch v.Type {
	case VoucherPercentage:
		return orderTotal * v.Value / 100
	case VoucherFixed:
		if v.Value > orderTotal {
			return orderTotal
		}
		return v.Value
	}
	return 0
}
