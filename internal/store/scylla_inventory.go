package store

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/database"
	"veyra_back_end/internal/models"
)

func (s *ScyllaInventory) GetVariant(ctx context.Context, sku string) (*models.ProductVariant, error) {
	session, err := database.GetProductsSession()
	if err != nil {
		return nil, err
	}

	var v models.ProductVariant
	err = session.Query(`SELECT id, product_id, sku, name, price, attributes, is_active, created_at, updated_at
		FROM product_variants WHERE sku = ?`, sku).WithContext(ctx).Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price, &v.Attributes, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (s *ScyllaInventory) GetStock(ctx context.Context, sku string) (*models.StockLevel, error) {
	session, err := database.GetProductsSession()
	if err != nil {
		return nil, err
	}

	var lvl models.StockLevel
	err = session.Query(`SELECT sku, stock, reserved FROM stock_levels WHERE sku = ?`, sku).
		WithContext(ctx).Scan(&lvl.SKU, &lvl.Stock, &lvl.Reserved)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lvl, nil
}

// ReserveStock : le contrôle de disponibilité et l'incrément de reserved
// forment une unité atomique par SKU. Disponible = stock - reserved, où
// reserved agrège les holds held + committed.
func (s *ScyllaInventory) ReserveStock(ctx context.Context, sku string, qty int) (bool, error) {
	session, err := database.GetProductsSession()
	if err != nil {
		return false, err
	}

	for i := 0; i < casMaxRetries; i++ {
		var stock, reserved int
		err := session.Query(`SELECT stock, reserved FROM stock_levels WHERE sku = ?`, sku).
			WithContext(ctx).Scan(&stock, &reserved)
		if err != nil {
			if isNotFound(err) {
				return false, ErrNotFound
			}
			return false, err
		}

		if reserved+qty > stock {
			return false, nil
		}

		var observed int
		applied, err := session.Query(
			`UPDATE stock_levels SET reserved = ? WHERE sku = ? IF reserved = ?`,
			reserved+qty, sku, reserved,
		).WithContext(ctx).ScanCAS(&observed)
		if err != nil {
			return false, err
		}
		if applied {
			return true, nil
		}
	}
	return false, ErrContended
}

func (s *ScyllaInventory) ReleaseStock(ctx context.Context, sku string, qty int) error {
	session, err := database.GetProductsSession()
	if err != nil {
		return err
	}

	for i := 0; i < casMaxRetries; i++ {
		var reserved int
		err := session.Query(`SELECT reserved FROM stock_levels WHERE sku = ?`, sku).
			WithContext(ctx).Scan(&reserved)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}

		next := reserved - qty
		if next < 0 {
			next = 0
		}

		var observed int
		applied, err := session.Query(
			`UPDATE stock_levels SET reserved = ? WHERE sku = ? IF reserved = ?`,
			next, sku, reserved,
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

// CommitStock décrémente stock et reserved d'un même mouvement : le stock
// physique sort, la réservation disparaît, la disponibilité des autres
// commandes ne bouge pas.
func (s *ScyllaInventory) CommitStock(ctx context.Context, sku string, qty int) error {
	session, err := database.GetProductsSession()
	if err != nil {
		return err
	}

	for i := 0; i < casMaxRetries; i++ {
		var stock, reserved int
		err := session.Query(`SELECT stock, reserved FROM stock_levels WHERE sku = ?`, sku).
			WithContext(ctx).Scan(&stock, &reserved)
		if err != nil {
			if isNotFound(err) {
				return ErrNotFound
			}
			return err
		}

		var obsStock, obsReserved int
		applied, err := session.Query(
			`UPDATE stock_levels SET stock = ?, reserved = ? WHERE sku = ? IF stock = ? AND reserved = ?`,
			stock-qty, reserved-qty, sku, stock, reserved,
		).WithContext(ctx).ScanCAS(&obsStock, &obsReserved)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
	}
	return ErrContended
}

func (s *ScyllaInventory) InsertHolds(ctx context.Context, holds []models.InventoryHold) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	batch := session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, h := range holds {
		batch.Query(`INSERT INTO inventory_holds (order_id, hold_id, sku, quantity, state, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			h.OrderID, h.ID, h.SKU, h.Quantity, h.State, h.CreatedAt, h.UpdatedAt)
	}
	return session.ExecuteBatch(batch)
}

func (s *ScyllaInventory) HoldsByOrder(ctx context.Context, orderID gocql.UUID) ([]models.InventoryHold, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT order_id, hold_id, sku, quantity, state, created_at, updated_at
		FROM inventory_holds WHERE order_id = ?`, orderID).WithContext(ctx).Iter()

	var holds []models.InventoryHold
	var h models.InventoryHold
	for iter.Scan(&h.OrderID, &h.ID, &h.SKU, &h.Quantity, &h.State, &h.CreatedAt, &h.UpdatedAt) {
		holds = append(holds, h)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return holds, nil
}

func (s *ScyllaInventory) UpdateHoldState(ctx context.Context, orderID, holdID gocql.UUID, from, to string) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, err
	}

	var observed string
	applied, err := session.Query(
		`UPDATE inventory_holds SET state = ?, updated_at = ? WHERE order_id = ? AND hold_id = ? IF state = ?`,
		to, time.Now(), orderID, holdID, from,
	).WithContext(ctx).ScanCAS(&observed)
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *ScyllaInventory) InsertMovement(ctx context.Context, m *models.StockMovement) error {
	session, err := database.GetProductsSession()
	if err != nil {
		return err
	}
	return session.Query(`INSERT INTO stock_movements (id, sku, type, quantity, order_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SKU, m.Type, m.Quantity, m.OrderID, m.Reason, m.CreatedAt).
		WithContext(ctx).Exec()
}
