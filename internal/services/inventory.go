package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/models"
	"veyra_back_end/internal/store"
)

// InventoryService gère le stock engagé par les commandes. Le compteur
// reserved de chaque SKU n'est modifié que par écriture conditionnelle :
// deux commandes qui visent les dernières pièces ne les obtiennent jamais
// toutes les deux.
type InventoryService struct {
	inv store.InventoryStore
}

func NewInventoryService(inv store.InventoryStore) *InventoryService {
	return &InventoryService{inv: inv}
}

// Variant expose la fiche variante pour la construction des lignes de commande.
func (s *InventoryService) Variant(ctx context.Context, sku string) (*models.ProductVariant, error) {
	v, err := s.inv.GetVariant(ctx, sku)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Invalid(fmt.Sprintf("article %s inconnu", sku))
		}
		return nil, Internal(err)
	}
	return v, nil
}

// Reserve engage le stock de chaque ligne. Tout ou rien : au premier SKU
// insuffisant, les réservations déjà prises sont rendues et l'erreur remonte.
func (s *InventoryService) Reserve(ctx context.Context, orderID gocql.UUID, items []models.OrderItem) error {
	for i, it := range items {
		ok, err := s.inv.ReserveStock(ctx, it.SKU, it.Quantity)
		if err != nil {
			s.rollbackReservations(ctx, items[:i])
			if errors.Is(err, store.ErrContended) {
				return Conflict("forte affluence sur le stock, réessayez")
			}
			if errors.Is(err, store.ErrNotFound) {
				return Invalid(fmt.Sprintf("article %s inconnu", it.SKU))
			}
			return Internal(err)
		}
		if !ok {
			s.rollbackReservations(ctx, items[:i])
			return Conflict(fmt.Sprintf("stock insuffisant pour %s", it.SKU))
		}
	}

	now := time.Now()
	holds := make([]models.InventoryHold, 0, len(items))
	for _, it := range items {
		holds = append(holds, models.InventoryHold{
			ID:        gocql.TimeUUID(),
			OrderID:   orderID,
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			State:     models.HoldHeld,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err := s.inv.InsertHolds(ctx, holds); err != nil {
		s.rollbackReservations(ctx, items)
		return Internal(err)
	}
	return nil
}

func (s *InventoryService) rollbackReservations(ctx context.Context, items []models.OrderItem) {
	for _, it := range items {
		if err := s.inv.ReleaseStock(ctx, it.SKU, it.Quantity); err != nil {
			log.Printf("❌ Compensation stock %s (+%d) impossible: %v", it.SKU, it.Quantity, err)
		}
	}
}

// Release rend au stock disponible tout ce que la commande tenait encore.
// Chaque hold ne peut passer held → released qu'une fois : l'appel est
// rejouable sans double libération.
func (s *InventoryService) Release(ctx context.Context, orderID gocql.UUID, reason string) error {
	holds, err := s.inv.HoldsByOrder(ctx, orderID)
	if err != nil {
		return Internal(err)
	}

	for _, h := range holds {
		applied, err := s.inv.UpdateHoldState(ctx, orderID, h.ID, models.HoldHeld, models.HoldReleased)
		if err != nil {
			return Internal(err)
		}
		if !applied {
			continue // déjà libéré ou déjà vendu
		}

		if err := s.inv.ReleaseStock(ctx, h.SKU, h.Quantity); err != nil {
			log.Printf("❌ Libération stock %s (+%d) impossible: %v", h.SKU, h.Quantity, err)
			continue
		}
		s.recordMovement(ctx, h, "release", reason)
	}
	return nil
}

// Commit réalise la vente : les holds passent held → committed, le stock
// physique sort. Appelé au paiement confirmé (ou à la création pour le
// paiement à la livraison).
func (s *InventoryService) Commit(ctx context.Context, orderID gocql.UUID) error {
	holds, err := s.inv.HoldsByOrder(ctx, orderID)
	if err != nil {
		return Internal(err)
	}

	for _, h := range holds {
		applied, err := s.inv.UpdateHoldState(ctx, orderID, h.ID, models.HoldHeld, models.HoldCommitted)
		if err != nil {
			return Internal(err)
		}
		if !applied {
			continue
		}

		if err := s.inv.CommitStock(ctx, h.SKU, h.Quantity); err != nil {
			log.Printf("❌ Sortie stock %s (-%d) impossible: %v", h.SKU, h.Quantity, err)
			continue
		}
		s.recordMovement(ctx, h, "sale", "commande payée")
	}
	return nil
}

func (s *InventoryService) recordMovement(ctx context.Context, h models.InventoryHold, movementType, reason string) {
	orderID := h.OrderID
	m := &models.StockMovement{
		ID:        gocql.TimeUUID(),
		SKU:       h.SKU,
		Type:      movementType,
		Quantity:  h.Quantity,
		OrderID:   &orderID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := s.inv.InsertMovement(ctx, m); err != nil {
		log.Printf("⚠️ Mouvement de stock %s non journalisé pour %s: %v", movementType, h.SKU, err)
	}
}
