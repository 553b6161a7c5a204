package services

import (
	"context"
	"log"
	"time"

	"veyra_back_end/internal/models"
	"veyra_back_end/internal/store"
)

// Sweeper annule les commandes passerelle restées impayées trop longtemps et
// rend leur stock et leur bon de réduction. Les commandes à paiement à la
// livraison ne sont jamais balayées.
type Sweeper struct {
	orders    store.OrderStore
	inventory *InventoryService
	ledger    *VoucherLedger

	Threshold time.Duration // âge au-delà duquel une commande impayée expire
	Interval  time.Duration
}

func NewSweeper(orders store.OrderStore, inventory *InventoryService, ledger *VoucherLedger) *Sweeper {
	return &Sweeper{
		orders:    orders,
		inventory: inventory,
		ledger:    ledger,
		Threshold: time.Duration(envInt64("ORDER_EXPIRY_HOURS", 24)) * time.Hour,
		Interval:  time.Duration(envInt64("SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
	}
}

// Sweep passe une fois sur les commandes expirées. Rejouable sans danger :
// chaque annulation est conditionnée par la version de la commande, une
// commande payée ou annulée entre la lecture et l'écriture est ignorée.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.orders.ListExpired(ctx, now.Add(-s.Threshold))
	if err != nil {
		return 0, Internal(err)
	}

	swept := 0
	for i := range expired {
		o := expired[i]
		if o.PaymentMethod == models.MethodCash || o.PaymentStatus == models.PaymentPaid {
			continue
		}

		applied, err := s.orders.Transition(ctx, &o, store.OrderUpdate{
			Status:        models.StatusCancelled,
			PaymentStatus: o.PaymentStatus,
		})
		if err != nil {
			log.Printf("❌ Expiration de la commande %s impossible: %v", o.ID, err)
			continue
		}
		if !applied {
			// un paiement ou une annulation a gagné la course, la version a tranché
			continue
		}

		if err := s.inventory.Release(ctx, o.ID, "commande expirée"); err != nil {
			log.Printf("❌ Restitution du stock de la commande expirée %s impossible: %v", o.ID, err)
		}
		if o.VoucherCode != "" {
			if err := s.ledger.ReleaseRedemption(ctx, o.VoucherCode, o.ID); err != nil {
				log.Printf("❌ Libération du code %s de la commande expirée %s impossible: %v", o.VoucherCode, o.ID, err)
			}
		}

		swept++
		log.Printf("🧹 Commande %s expirée et annulée (créée le %s)", o.ID, o.CreatedAt.Format(time.RFC3339))
	}
	return swept, nil
}

// Start lance le balayage périodique jusqu'à l'annulation du contexte.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		log.Printf("🧹 Balayage des commandes impayées toutes les %s (expiration après %s)", s.Interval, s.Threshold)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := s.Sweep(ctx, time.Now()); err != nil {
					log.Printf("❌ Balayage des commandes impayées: %v", err)
				} else if n > 0 {
					log.Printf("🧹 %d commande(s) impayée(s) annulée(s)", n)
				}
			}
		}
	}()
}
