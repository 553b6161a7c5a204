package store

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/database"
	"veyra_back_end/internal/models"
)

func (s *ScyllaPayments) InsertAttempt(ctx context.Context, a *models.PaymentAttempt) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`INSERT INTO payment_attempts (order_id, attempt_id, transaction_id, amount, status, response_digest, created_at, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.OrderID, a.ID, a.TransactionID, a.Amount, a.Status, a.ResponseDigest, a.CreatedAt, a.ReceivedAt).
		WithContext(ctx).Exec()
}

// AttemptByTransaction passe par la table de correspondance
// payment_attempts_by_tx : la notification passerelle n'apporte que son
// identifiant de transaction.
func (s *ScyllaPayments) AttemptByTransaction(ctx context.Context, txID string) (*models.PaymentAttempt, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var orderID, attemptID gocql.UUID
	err = session.Query(`SELECT order_id, attempt_id FROM payment_attempts_by_tx WHERE transaction_id = ?`, txID).
		WithContext(ctx).Scan(&orderID, &attemptID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.Attempt(ctx, orderID, attemptID)
}

func (s *ScyllaPayments) Attempt(ctx context.Context, orderID, attemptID gocql.UUID) (*models.PaymentAttempt, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var a models.PaymentAttempt
	err = session.Query(`SELECT order_id, attempt_id, transaction_id, amount, status, response_digest, created_at, received_at
		FROM payment_attempts WHERE order_id = ? AND attempt_id = ?`, orderID, attemptID).
		WithContext(ctx).Scan(&a.OrderID, &a.ID, &a.TransactionID, &a.Amount, &a.Status, &a.ResponseDigest, &a.CreatedAt, &a.ReceivedAt)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// LatestInitiatedAttempt retourne la tentative "initiated" la plus récente
// d'une commande (attempt_id est un timeuuid, tri décroissant en clustering).
func (s *ScyllaPayments) LatestInitiatedAttempt(ctx context.Context, orderID gocql.UUID) (*models.PaymentAttempt, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT order_id, attempt_id, transaction_id, amount, status, response_digest, created_at, received_at
		FROM payment_attempts WHERE order_id = ?`, orderID).WithContext(ctx).Iter()

	var a models.PaymentAttempt
	for iter.Scan(&a.OrderID, &a.ID, &a.TransactionID, &a.Amount, &a.Status, &a.ResponseDigest, &a.CreatedAt, &a.ReceivedAt) {
		if a.Status == models.AttemptInitiated {
			attempt := a
			_ = iter.Close()
			return &attempt, nil
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

func (s *ScyllaPayments) BindTransaction(ctx context.Context, a *models.PaymentAttempt, txID string) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, err
	}

	var obsOrder, obsAttempt gocql.UUID
	applied, err := session.Query(
		`INSERT INTO payment_attempts_by_tx (transaction_id, order_id, attempt_id) VALUES (?, ?, ?) IF NOT EXISTS`,
		txID, a.OrderID, a.ID,
	).WithContext(ctx).ScanCAS(&obsOrder, &obsAttempt)
	if err != nil {
		return false, err
	}
	if !applied {
		// déjà liée — idempotent si c'est la même tentative
		return obsOrder == a.OrderID && obsAttempt == a.ID, nil
	}

	if err := session.Query(`UPDATE payment_attempts SET transaction_id = ? WHERE order_id = ? AND attempt_id = ?`,
		txID, a.OrderID, a.ID).WithContext(ctx).Exec(); err != nil {
		return false, err
	}
	a.TransactionID = txID
	return true, nil
}

// ResolveAttempt : point d'idempotence. La deuxième livraison d'une même
// notification perd le CAS (status n'est plus "initiated") et l'appelant
// ré-acquitte sans rejouer les effets.
func (s *ScyllaPayments) ResolveAttempt(ctx context.Context, a *models.PaymentAttempt, status, digest string, receivedAt time.Time) (bool, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return false, err
	}

	var observed string
	applied, err := session.Query(
		`UPDATE payment_attempts SET status = ?, response_digest = ?, received_at = ? WHERE order_id = ? AND attempt_id = ? IF status = ?`,
		status, digest, receivedAt, a.OrderID, a.ID, models.AttemptInitiated,
	).WithContext(ctx).ScanCAS(&observed)
	if err != nil {
		return false, err
	}
	if applied {
		a.Status = status
		a.ResponseDigest = digest
		a.ReceivedAt = &receivedAt
	}
	return applied, nil
}
