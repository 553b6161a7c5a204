package models

import (
	"time"

	"github.com/gocql/gocql"
)

// États d'une réservation de stock
const (
	HoldHeld      = "held"
	HoldCommitted = "committed"
	HoldReleased  = "released"
)

// InventoryHold représente du stock engagé pour une commande, distinct du
// stock affiché au catalogue. Invariant : la somme des holds held+committed
// d'un SKU ne dépasse jamais son stock physique.
type InventoryHold struct {
	ID        gocql.UUID `json:"id"`
	OrderID   gocql.UUID `json:"order_id"`
	SKU       string     `json:"sku"`
	Quantity  int        `json:"quantity"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// StockLevel est la ligne de comptage par SKU. reserved agrège les holds
// held+committed ; disponible = stock - reserved.
type StockLevel struct {
	SKU      string `json:"sku"`
	Stock    int    `json:"stock"`
	Reserved int    `json:"reserved"`
}

type ProductVariant struct {
	ID         gocql.UUID        `json:"id"`
	ProductID  gocql.UUID        `json:"product_id"`
	SKU        string            `json:"sku"`
	Name       string            `json:"name"`
	Price      int64             `json:"price"`                // centimes
	Attributes map[string]string `json:"attributes,omitempty"` // {"size": "L", "color": "red"}
	IsActive   bool              `json:"is_active"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type StockMovement struct {
	ID        gocql.UUID  `json:"id"`
	SKU       string      `json:"sku"`
	Type      string      `json:"type"` // "sale", "release", "restock", "adjustment"
	Quantity  int         `json:"quantity"`
	OrderID   *gocql.UUID `json:"order_id,omitempty"`
	Reason    string      `json:"reason"`
	CreatedAt time.Time   `json:"created_at"`
}
