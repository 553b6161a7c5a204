package store

import (
	"github.com/gocql/gocql"
)

// Nombre d'essais des boucles CAS avant d'abandonner avec ErrContended.
const casMaxRetries = 8

// Implémentations ScyllaDB des stores. Les compteurs chauds (stock,
// utilisation des bons) et les transitions de commande s'appuient sur les
// transactions légères (LWT) : la mise à jour n'est appliquée que si la
// valeur observée n'a pas bougé, sinon on relit et on recommence.
type (
	ScyllaOrders    struct{}
	ScyllaVouchers  struct{}
	ScyllaInventory struct{}
	ScyllaPayments  struct{}
)

func NewScyllaOrders() *ScyllaOrders       { return &ScyllaOrders{} }
func NewScyllaVouchers() *ScyllaVouchers   { return &ScyllaVouchers{} }
func NewScyllaInventory() *ScyllaInventory { return &ScyllaInventory{} }
func NewScyllaPayments() *ScyllaPayments   { return &ScyllaPayments{} }

func isNotFound(err error) bool {
	return err == gocql.ErrNotFound
}
