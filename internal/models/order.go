package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Statuts de commande
const (
	StatusPending         = "pending"
	StatusConfirmed       = "confirmed"
	StatusShipped         = "shipped"
	StatusDelivered       = "delivered"
	StatusCancelled       = "cancelled"
	StatusRefundRequested = "refund_requested"
	StatusRefunded        = "refunded"
)

// Statuts de paiement
const (
	PaymentUnpaid   = "unpaid"
	PaymentPaid     = "paid"
	PaymentFailed   = "payment_failed"
	PaymentRefunded = "refunded"
)

// Méthodes de paiement
const (
	MethodCash    = "cash"
	MethodGateway = "gateway"
)

type Order struct {
	ID            gocql.UUID      `json:"id"`
	UserID        string          `json:"user_id,omitempty"` // vide pour une commande invité
	CustomerEmail string          `json:"customer_email"`
	Items         []OrderItem     `json:"items"`
	Address       AddressSnapshot `json:"address"`
	VoucherCode   string          `json:"voucher_code,omitempty"`
	Subtotal      int64           `json:"subtotal"` // montants en centimes
	Discount      int64           `json:"discount"`
	ShippingFee   int64           `json:"shipping_fee"`
	TotalPrice    int64           `json:"total_price"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id,omitempty"` // référence passerelle, vide avant le premier échange
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem fige le prix unitaire au moment de la commande : un changement
// de prix catalogue ultérieur ne modifie jamais une commande existante.
type OrderItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type AddressSnapshot struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// CheckTotal vérifie l'invariant total = sous-total - remise + livraison, toujours ≥ 0.
func (o *Order) CheckTotal() bool {
	return o.TotalPrice == o.Subtotal-o.Discount+o.ShippingFee && o.TotalPrice >= 0
}

// IsTerminal indique qu'aucune transition n'est plus possible sur la commande.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusCancelled || o.Status == StatusRefunded
}

// Progression "avant" du statut de commande
var statusNext = map[string][]string{
	StatusPending:         {StatusConfirmed, StatusCancelled},
	StatusConfirmed:       {StatusShipped, StatusCancelled},
	StatusShipped:         {StatusDelivered},
	StatusDelivered:       {StatusRefundRequested},
	StatusRefundRequested: {StatusRefunded},
}

var paymentNext = map[string][]string{
	PaymentUnpaid: {PaymentPaid, PaymentFailed},
	PaymentFailed: {PaymentPaid},
	PaymentPaid:   {PaymentRefunded},
}

var statusRank = map[string]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusShipped:   2,
	StatusDelivered: 3,
}

// CanTransition est LE point unique de validation du couple
// (status, payment_status). Toute transition passe par ici — pas de
// conditionnel éparpillé dans les handlers.
func CanTransition(o *Order, newStatus, newPaymentStatus string) bool {
	if newStatus != o.Status {
		if !contains(statusNext[o.Status], newStatus) {
			return false
		}
	}
	if newPaymentStatus != o.PaymentStatus {
		if !contains(paymentNext[o.PaymentStatus], newPaymentStatus) {
			return false
		}
	}

	// Une commande passerelle ne dépasse jamais "confirmed" sans paiement.
	// Le paiement à la livraison (cash) est la seule exception.
	if rank, ok := statusRank[newStatus]; ok && rank > statusRank[StatusConfirmed] {
		if o.PaymentMethod != MethodCash && newPaymentStatus != PaymentPaid {
			return false
		}
	}

	// Le remboursement n'est ouvert que depuis delivered + paid, et les deux
	// statuts basculent ensemble à la fin.
	if newStatus == StatusRefundRequested && !(o.Status == StatusDelivered && o.PaymentStatus == PaymentPaid) {
		return false
	}
	if newStatus == StatusRefunded && newPaymentStatus != PaymentRefunded {
		return false
	}
	if newPaymentStatus == PaymentRefunded && newStatus != StatusRefunded && newStatus != StatusRefundRequested {
		return false
	}

	return true
}

// CanCancel applique la règle d'annulation : client propriétaire tant que
// "pending", admin jusqu'à "confirmed" inclus.
func CanCancel(o *Order, isAdmin bool) bool {
	if isAdmin {
		return o.Status == StatusPending || o.Status == StatusConfirmed
	}
	return o.Status == StatusPending
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
