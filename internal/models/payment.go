package models

import (
	"time"

	"github.com/gocql/gocql"
)

// États d'une tentative de paiement
const (
	AttemptInitiated = "initiated"
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
)

// PaymentAttempt trace un échange avec la passerelle pour une commande.
// Plusieurs tentatives peuvent exister (réessais) ; une seule peut être
// "succeeded". Le montant doit être exactement le total de la commande au
// moment où l'URL de paiement a été générée.
type PaymentAttempt struct {
	ID             gocql.UUID `json:"id"`
	OrderID        gocql.UUID `json:"order_id"`
	TransactionID  string     `json:"transaction_id,omitempty"` // attribué par la passerelle
	Amount         int64      `json:"amount"`
	Status         string     `json:"status"`
	ResponseDigest string     `json:"response_digest,omitempty"` // empreinte de la réponse brute, pour idempotence et audit
	CreatedAt      time.Time  `json:"created_at"`
	ReceivedAt     *time.Time `json:"received_at,omitempty"`
}

type CartItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}
