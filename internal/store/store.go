package store

import (
	"context"
	"errors"
	"time"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/models"
)

var (
	ErrNotFound = errors.New("enregistrement introuvable")
	// ErrContended : la boucle CAS a épuisé ses essais face à des écritures
	// concurrentes. L'appelant peut réessayer l'opération entière.
	ErrContended = errors.New("trop de conflits d'écriture concurrents")
)

// OrderUpdate porte les champs modifiés par une transition de commande.
// Un TransactionID vide laisse la colonne inchangée.
type OrderUpdate struct {
	Status        string
	PaymentStatus string
	TransactionID string
}

// OrderStore persiste l'agrégat commande. Toutes les mutations passent par
// Transition, conditionnée par la version de la ligne : deux transitions
// concurrentes sur la même commande sont linéarisées, le perdant reçoit
// applied=false et relit l'état post-transition.
type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id gocql.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	Transition(ctx context.Context, o *models.Order, upd OrderUpdate) (bool, error)
	// ListExpired retourne les commandes pending/unpaid/non-cash créées avant l'instant donné.
	ListExpired(ctx context.Context, before time.Time) ([]models.Order, error)
	Stats(ctx context.Context) (map[string]int, int64, error)
}

// VoucherStore garantit l'atomicité du compteur d'utilisation : jamais de
// lecture-puis-écriture hors de IncrementUsageIfBelow/DecrementUsage.
type VoucherStore interface {
	Get(ctx context.Context, code string) (*models.Voucher, error)
	// IncrementUsageIfBelow n'applique l'incrément que si le compteur observé
	// reste sous la limite (limit ≤ 0 = illimité). false = limite atteinte.
	IncrementUsageIfBelow(ctx context.Context, code string, limit int) (bool, error)
	// DecrementUsage libère une utilisation, plancher à zéro.
	DecrementUsage(ctx context.Context, code string) error
	InsertRedemption(ctx context.Context, r *models.VoucherRedemption) error
	GetRedemption(ctx context.Context, code string, orderID gocql.UUID) (*models.VoucherRedemption, error)
	DeleteRedemption(ctx context.Context, code string, orderID gocql.UUID) error
}

// InventoryStore sérialise le compteur de stock par SKU via mise à jour
// conditionnelle — aucun verrou global, les commandes sans SKU commun ne se
// gênent jamais.
type InventoryStore interface {
	GetVariant(ctx context.Context, sku string) (*models.ProductVariant, error)
	GetStock(ctx context.Context, sku string) (*models.StockLevel, error)
	// ReserveStock incrémente reserved si reserved+qty ≤ stock. false = stock insuffisant.
	ReserveStock(ctx context.Context, sku string, qty int) (bool, error)
	ReleaseStock(ctx context.Context, sku string, qty int) error
	// CommitStock décrémente stock et reserved ensemble : la vente est réalisée.
	CommitStock(ctx context.Context, sku string, qty int) error
	InsertHolds(ctx context.Context, holds []models.InventoryHold) error
	HoldsByOrder(ctx context.Context, orderID gocql.UUID) ([]models.InventoryHold, error)
	// UpdateHoldState conditionne le changement d'état à l'état courant attendu.
	UpdateHoldState(ctx context.Context, orderID, holdID gocql.UUID, from, to string) (bool, error)
	InsertMovement(ctx context.Context, m *models.StockMovement) error
}

// PaymentStore trace les tentatives de paiement, avec une table de
// correspondance transaction passerelle → tentative pour l'idempotence
// des notifications.
type PaymentStore interface {
	InsertAttempt(ctx context.Context, a *models.PaymentAttempt) error
	Attempt(ctx context.Context, orderID, attemptID gocql.UUID) (*models.PaymentAttempt, error)
	AttemptByTransaction(ctx context.Context, txID string) (*models.PaymentAttempt, error)
	LatestInitiatedAttempt(ctx context.Context, orderID gocql.UUID) (*models.PaymentAttempt, error)
	// BindTransaction associe l'identifiant passerelle à la tentative ;
	// premier arrivé seulement (IF NOT EXISTS sur la table de correspondance).
	BindTransaction(ctx context.Context, a *models.PaymentAttempt, txID string) (bool, error)
	// ResolveAttempt fait passer la tentative initiated → succeeded/failed.
	// false = déjà résolue : c'est le point d'idempotence des notifications.
	ResolveAttempt(ctx context.Context, a *models.PaymentAttempt, status, digest string, receivedAt time.Time) (bool, error)
}
