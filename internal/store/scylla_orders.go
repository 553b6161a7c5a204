package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/database"
	"veyra_back_end/internal/models"
)

const orderColumns = `order_id, user_id, customer_email, items, address, voucher_code, subtotal, discount,
	shipping_fee, total_price, status, payment_status, payment_method, transaction_id,
	version, created_at, updated_at`

func (s *ScyllaOrders) Insert(ctx context.Context, o *models.Order) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return session.Query(query,
		o.ID, o.UserID, o.CustomerEmail, string(itemsJSON), string(addressJSON), o.VoucherCode,
		o.Subtotal, o.Discount, o.ShippingFee, o.TotalPrice, o.Status,
		o.PaymentStatus, o.PaymentMethod, o.TransactionID, o.Version,
		o.CreatedAt, o.UpdatedAt,
	).WithContext(ctx).Exec()
}

func (s *ScyllaOrders) Get(ctx context.Context, id gocql.UUID) (*models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var o models.Order
	var itemsJSON, addressJSON string

	err = session.Query(`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, id).
		WithContext(ctx).Scan(
		&o.ID, &o.UserID, &o.CustomerEmail, &itemsJSON, &addressJSON, &o.VoucherCode,
		&o.Subtotal, &o.Discount, &o.ShippingFee, &o.TotalPrice, &o.Status,
		&o.PaymentStatus, &o.PaymentMethod, &o.TransactionID, &o.Version,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(addressJSON), &o.Address); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *ScyllaOrders) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ALLOW FILTERING`, userID).
		WithContext(ctx).Iter()
	return scanOrders(iter)
}

// Transition applique la mise à jour sous condition de version (LWT).
// applied=false signifie qu'une écriture concurrente a gagné : l'appelant
// relit la commande et re-décide sur l'état post-transition.
func (s *ScyllaOrders) Transition(ctx context.Context, o *models.Order, upd OrderUpdate) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, err
	}

	now := time.Now()
	txID := o.TransactionID
	if upd.TransactionID != "" {
		txID = upd.TransactionID
	}

	var curVersion int64
	applied, err := session.Query(`
		UPDATE orders SET status = ?, payment_status = ?, transaction_id = ?, version = ?, updated_at = ?
		WHERE order_id = ? IF version = ?`,
		upd.Status, upd.PaymentStatus, txID, o.Version+1, now, o.ID, o.Version,
	).WithContext(ctx).ScanCAS(&curVersion)
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	o.Status = upd.Status
	o.PaymentStatus = upd.PaymentStatus
	o.TransactionID = txID
	o.Version++
	o.UpdatedAt = now
	return true, nil
}

func (s *ScyllaOrders) ListExpired(ctx context.Context, before time.Time) ([]models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT `+orderColumns+` FROM orders
		WHERE status = ? AND payment_status = ? AND payment_method = ? AND created_at < ? ALLOW FILTERING`,
		models.StatusPending, models.PaymentUnpaid, models.MethodGateway, before,
	).WithContext(ctx).Iter()
	return scanOrders(iter)
}

// Stats agrège les commandes par statut et le chiffre d'affaires encaissé,
// pour le tableau de bord admin.
func (s *ScyllaOrders) Stats(ctx context.Context) (map[string]int, int64, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, 0, err
	}

	byStatus := make(map[string]int)
	var revenue int64

	iter := session.Query(`SELECT status, payment_status, total_price FROM orders`).WithContext(ctx).Iter()
	var status, paymentStatus string
	var total int64
	for iter.Scan(&status, &paymentStatus, &total) {
		byStatus[status]++
		if paymentStatus == models.PaymentPaid {
			revenue += total
		}
	}
	if err := iter.Close(); err != nil {
		return nil, 0, err
	}
	return byStatus, revenue, nil
}

func scanOrders(iter *gocql.Iter) ([]models.Order, error) {
	var orders []models.Order
	var o models.Order
	var itemsJSON, addressJSON string

	for iter.Scan(
		&o.ID, &o.UserID, &o.CustomerEmail, &itemsJSON, &addressJSON, &o.VoucherCode,
		&o.Subtotal, &o.Discount, &o.ShippingFee, &o.TotalPrice, &o.Status,
		&o.PaymentStatus, &o.PaymentMethod, &o.TransactionID, &o.Version,
		&o.CreatedAt, &o.UpdatedAt,
	) {
		o.Items = nil
		if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err == nil {
			_ = json.Unmarshal([]byte(addressJSON), &o.Address)
			orders = append(orders, o)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return orders, nil
}
