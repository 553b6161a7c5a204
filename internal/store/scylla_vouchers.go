package store

import (
	"context"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/database"
	"veyra_back_end/internal/models"
)

func (s *ScyllaVouchers) Get(ctx context.Context, code string) (*models.Voucher, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var v models.Voucher
	err = session.Query(`SELECT id, code, type, value, min_amount, max_uses, used_count,
		expires_at, starts_at, is_active, created_by, created_at, updated_at
		FROM vouchers WHERE code = ?`, code).WithContext(ctx).Scan(
		&v.ID, &v.Code, &v.Type, &v.Value, &v.MinAmount, &v.MaxUses, &v.UsedCount,
		&v.ExpiresAt, &v.StartsAt, &v.IsActive, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// IncrementUsageIfBelow : le contrôle de limite et l'incrément forment une
// unité atomique. Jamais de fenêtre où deux requêtes concurrentes observent
// toutes deux used_count < max_uses et réussissent toutes deux au-delà de
// la limite.
func (s *ScyllaVouchers) IncrementUsageIfBelow(ctx context.Context, code string, limit int) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, err
	}

	for i := 0; i < casMaxRetries; i++ {
		var used int
		err := session.Query(`SELECT used_count FROM vouchers WHERE code = ?`, code).
			WithContext(ctx).Scan(&used)
		if err != nil {
			if isNotFound(err) {
				return false, ErrNotFound
			}
			return false, err
		}

		if limit > 0 && used >= limit {
			return false, nil
		}

		var observed int
		applied, err := session.Query(
			`UPDATE vouchers SET used_count = ? WHERE code = ? IF used_count = ?`,
			used+1, code, used,
		).WithContext(ctx).ScanCAS(&observed)
		if err != nil {
			return false, err
		}
		if applied {
			return true, nil
		}
		// perdu la course : on relit le compteur et on recommence
	}
	return false, ErrContended
}

func (s *ScyllaVouchers) DecrementUsage(ctx context.Context, code string) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	for i := 0; i < casMaxRetries; i++ {
		var used int
		err := session.Query(`SELECT used_count FROM vouchers WHERE code = ?`, code).
			WithContext(ctx).Scan(&used)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}

		if used <= 0 {
			// jamais négatif
			return nil
		}

		var observed int
		applied, err := session.Query(
			`UPDATE vouchers SET used_count = ? WHERE code = ? IF used_count = ?`,
			used-1, code, used,
		).WithContext(ctx).ScanCAS(&observed)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
	}
	return ErrContended
}

func (s *ScyllaVouchers) InsertRedemption(ctx context.Context, r *models.VoucherRedemption) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`INSERT INTO voucher_redemptions (code, order_id, voucher_id, redeemed_at)
		VALUES (?, ?, ?, ?)`, r.Code, r.OrderID, r.VoucherID, r.RedeemedAt).
		WithContext(ctx).Exec()
}

func (s *ScyllaVouchers) GetRedemption(ctx context.Context, code string, orderID gocql.UUID) (*models.VoucherRedemption, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var r models.VoucherRedemption
	err = session.Query(`SELECT code, order_id, voucher_id, redeemed_at
		FROM voucher_redemptions WHERE code = ? AND order_id = ?`, code, orderID).
		WithContext(ctx).Scan(&r.Code, &r.OrderID, &r.VoucherID, &r.RedeemedAt)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *ScyllaVouchers) DeleteRedemption(ctx context.Context, code string, orderID gocql.UUID) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`DELETE FROM voucher_redemptions WHERE code = ? AND order_id = ?`,
		code, orderID).WithContext(ctx).Exec()
}
