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

// VoucherLedger est le registre des bons de réduction. Toute consommation ou
// libération d'utilisation passe par lui : le compteur used_count n'est
// jamais touché ailleurs.
type VoucherLedger struct {
	vouchers store.VoucherStore
}

func NewVoucherLedger(vouchers store.VoucherStore) *VoucherLedger {
	return &VoucherLedger{vouchers: vouchers}
}

// ReserveRedemption valide le bon pour la commande et consomme une
// utilisation. Le contrôle de limite et l'incrément sont une seule écriture
// conditionnelle : sous concurrence, jamais plus de MaxUses utilisations.
// Retourne le bon et la remise calculée sur le total donné.
func (l *VoucherLedger) ReserveRedemption(ctx context.Context, code string, orderID gocql.UUID, orderTotal int64, now time.Time) (*models.Voucher, int64, error) {
	v, err := l.vouchers.Get(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, Invalid("code promo invalide")
		}
		return nil, 0, Internal(err)
	}

	if !v.IsActive {
		return nil, 0, Invalid("code promo invalide")
	}
	if !v.StartsAt.IsZero() && now.Before(v.StartsAt) {
		return nil, 0, Invalid("code promo pas encore actif")
	}
	if !v.ExpiresAt.IsZero() && now.After(v.ExpiresAt) {
		return nil, 0, Invalid("code promo expiré")
	}
	if orderTotal < v.MinAmount {
		return nil, 0, Invalid(fmt.Sprintf("montant minimum de %.2f € non atteint", float64(v.MinAmount)/100))
	}

	ok, err := l.vouchers.IncrementUsageIfBelow(ctx, code, v.MaxUses)
	if err != nil {
		if errors.Is(err, store.ErrContended) {
			return nil, 0, Conflict("code promo très demandé, réessayez")
		}
		return nil, 0, Internal(err)
	}
	if !ok {
		return nil, 0, Conflict("limite d'utilisation du code promo atteinte")
	}

	redemption := &models.VoucherRedemption{
		Code:       code,
		OrderID:    orderID,
		VoucherID:  v.ID,
		RedeemedAt: now,
	}
	if err := l.vouchers.InsertRedemption(ctx, redemption); err != nil {
		// compensation : l'utilisation consommée est rendue
		if derr := l.vouchers.DecrementUsage(ctx, code); derr != nil {
			log.Printf("❌ Compensation compteur promo %s impossible: %v", code, derr)
		}
		return nil, 0, Internal(err)
	}

	return v, v.Discount(orderTotal), nil
}

// ReleaseRedemption rend l'utilisation consommée par une commande annulée ou
// expirée. Sans trace d'utilisation, ne fait rien : l'appel est rejouable.
func (l *VoucherLedger) ReleaseRedemption(ctx context.Context, code string, orderID gocql.UUID) error {
	if code == "" {
		return nil
	}

	if _, err := l.vouchers.GetRedemption(ctx, code, orderID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return Internal(err)
	}

	// suppression d'abord : en cas de reprise après panne, on ne décrémente
	// jamais deux fois pour la même commande
	if err := l.vouchers.DeleteRedemption(ctx, code, orderID); err != nil {
		return Internal(err)
	}
	if err := l.vouchers.DecrementUsage(ctx, code); err != nil {
		return Internal(err)
	}

	log.Printf("✅ Utilisation du code %s libérée pour la commande %s", code, orderID)
	return nil
}
