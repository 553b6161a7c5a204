package database

import (
	"log"
	"sync"

	"github.com/gocql/gocql"
)

var preparedOnce sync.Once

// InitPreparedStatements chauffe le cache de prepared statements de gocql en
// exécutant une fois chaque requête chaude du chemin de commande. Le premier
// checkout ne paie pas la latence de préparation.
func InitPreparedStatements() {
	preparedOnce.Do(func() {
		ordersSession, err := GetOrdersSession()
		if err != nil {
			log.Printf("⚠️ Impossible d'initialiser les prepared statements: %v", err)
			return
		}
		productsSession, err := GetProductsSession()
		if err != nil {
			log.Printf("⚠️ Impossible d'initialiser les prepared statements: %v", err)
			return
		}

		warmup(ordersSession,
			`SELECT status, payment_status, version FROM orders WHERE order_id = ?`,
			gocql.TimeUUID())
		warmup(ordersSession,
			`SELECT order_id, attempt_id FROM payment_attempts_by_tx WHERE transaction_id = ?`,
			"warmup")
		warmup(productsSession,
			`SELECT stock, reserved FROM stock_levels WHERE sku = ?`,
			"warmup")
		warmup(ordersSession,
			`SELECT code, used_count FROM vouchers WHERE code = ?`,
			"warmup")

		log.Println("✅ Prepared statements initialisés")
	})
}

func warmup(session *gocql.Session, query string, arg interface{}) {
	// le résultat est ignoré, seul le round-trip de préparation compte
	iter := session.Query(query, arg).Iter()
	_ = iter.Close()
}
