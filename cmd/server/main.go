package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"veyra_back_end/internal/cache"
	"veyra_back_end/internal/config"
	"veyra_back_end/internal/database"
	"veyra_back_end/internal/gateway"
	adminhandlers "veyra_back_end/internal/handlers/admin"
	orderhandlers "veyra_back_end/internal/handlers/order"
	"veyra_back_end/internal/handlers/payement"
	"veyra_back_end/internal/models"
	"veyra_back_end/internal/routes"
	"veyra_back_end/internal/services"
	"veyra_back_end/internal/store"
	"veyra_back_end/internal/utils"
)

func main() {
	config.Load()

	database.ConnectDatabases()

	// ✅ Pré-chauffer les prepared statements et le cache Redis
	database.InitPreparedStatements()
	warmupRedisCache()

	gw := gateway.NewClientFromEnv()
	log.Println("✅ Passerelle de paiement initialisée")

	// Couche de persistance
	orderStore := store.NewScyllaOrders()
	voucherStore := store.NewScyllaVouchers()
	inventoryStore := store.NewScyllaInventory()
	paymentStore := store.NewScyllaPayments()

	// Couche métier
	ledger := services.NewVoucherLedger(voucherStore)
	inventory := services.NewInventoryService(inventoryStore)
	shipping := services.NewShippingCalculatorFromEnv()
	orderSvc := services.NewOrderService(orderStore, ledger, inventory, shipping)
	reconciler := services.NewReconciler(orderStore, paymentStore, inventory, gw)
	sweeper := services.NewSweeper(orderStore, inventory, ledger)

	wireSideEffects(orderSvc, reconciler)

	orderhandlers.Init(orderSvc)
	payement.Init(reconciler)
	adminhandlers.Init(orderSvc, sweeper)

	// Balayage périodique des commandes impayées
	sweeper.Start(context.Background())

	r := gin.Default()
	routes.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Serveur Veyra lancé sur le port", port)
	r.Run(":" + port)
}

// wireSideEffects branche les effets asynchrones : indexation Elasticsearch,
// emails, facture PDF archivée dans MinIO, vidage du panier. Aucun d'eux ne
// bloque ni ne fait échouer l'opération qui le déclenche.
func wireSideEffects(orderSvc *services.OrderService, reconciler *services.Reconciler) {
	orderSvc.OnCreated = func(o models.Order) {
		services.IndexOrder(o)
		// le paiement à la livraison est confirmé dès la création
		if o.PaymentMethod == models.MethodCash && o.CustomerEmail != "" {
			html := utils.GenerateOrderConfirmationHTML(o)
			if err := utils.SendConfirmationEmail(o.CustomerEmail, "✅ Commande confirmée - Veyra", html, nil); err != nil {
				log.Printf("❌ Email de confirmation de %s: %v", o.ID, err)
			}
		}
	}

	orderSvc.OnUpdated = func(o models.Order) {
		services.IndexOrder(o)
		if o.Status == models.StatusRefundRequested {
			if err := utils.SendRefundRequestEmail(o); err != nil {
				log.Printf("❌ Email de demande de remboursement de %s: %v", o.ID, err)
			}
			return
		}
		if err := utils.SendOrderStatusEmail(o, o.Status); err != nil {
			log.Printf("❌ Email de statut de %s: %v", o.ID, err)
		}
	}

	reconciler.OnPaid = func(o models.Order) {
		services.IndexOrder(o)

		var pdf []byte
		if generated, err := utils.GenerateInvoicePDF(o); err != nil {
			log.Printf("⚠️ Facture PDF de %s non générée: %v", o.ID, err)
		} else {
			pdf = generated
			if _, err := services.ArchiveInvoice(context.Background(), o.ID.String(), pdf); err != nil {
				log.Printf("⚠️ Archivage de la facture de %s: %v", o.ID, err)
			}
		}

		if o.CustomerEmail != "" {
			html := utils.GenerateOrderConfirmationHTML(o)
			if err := utils.SendConfirmationEmail(o.CustomerEmail, "✅ Paiement confirmé - Veyra", html, pdf); err != nil {
				log.Printf("❌ Email de paiement de %s: %v", o.ID, err)
			}
		}

		if o.UserID != "" {
			if err := cache.ClearCart(o.UserID); err != nil {
				log.Printf("⚠️ Vidage du panier de %s: %v", o.UserID, err)
			}
		}
	}

	reconciler.OnRefunded = func(o models.Order) {
		services.IndexOrder(o)
		if err := utils.SendOrderStatusEmail(o, models.StatusRefunded); err != nil {
			log.Printf("❌ Email de remboursement de %s: %v", o.ID, err)
		}
	}
}

// warmupRedisCache pré-chauffe le cache Redis pour éviter la latence du premier appel
func warmupRedisCache() {
	ctx := context.Background()
	if err := database.Redis.Ping(ctx).Err(); err == nil {
		log.Println("✅ Cache Redis pré-chauffé")
	}
}
