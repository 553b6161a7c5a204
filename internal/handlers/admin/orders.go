package admin

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"

	"veyra_back_end/internal/cache"
	"veyra_back_end/internal/services"
)

var (
	svc     *services.OrderService
	sweeper *services.Sweeper
)

// Init câble les services admin, appelé au démarrage
func Init(s *services.OrderService, sw *services.Sweeper) {
	svc = s
	sweeper = sw
}

// UpdateOrderStatus fait avancer une commande (confirmed → shipped → delivered).
// Les transitions illégales sont refusées par le service.
func UpdateOrderStatus(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	var req struct {
		Status        string `json:"status" binding:"required"`
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	order, err := svc.UpdateStatus(c.Request.Context(), orderID, req.Status, req.PaymentStatus)
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Statut mis à jour",
		"order":   order,
	})
}

// CancelOrder annule une commande côté admin, avec restitution du stock et
// du code promo
func CancelOrder(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	order, err := svc.Cancel(c.Request.Context(), orderID, c.GetString("user_id"), true)
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Commande annulée",
		"order":   order,
	})
}

// TriggerSweep lance un passage immédiat du balayage des commandes impayées
func TriggerSweep(c *gin.Context) {
	swept, err := sweeper.Sweep(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	log.Printf("🧹 Balayage manuel: %d commande(s) annulée(s)", swept)
	c.JSON(http.StatusOK, gin.H{
		"message": "Balayage effectué",
		"swept":   swept,
	})
}

// SearchOrders recherche dans l'index Elasticsearch des commandes
func SearchOrders(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre q requis"})
		return
	}

	results, err := services.SearchOrders(query)
	if err != nil {
		log.Printf("❌ Recherche de commandes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur recherche"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}

// GetDashboardStats retourne les compteurs par statut et le chiffre
// d'affaires encaissé, avec une minute de cache Redis
func GetDashboardStats(c *gin.Context) {
	if stats, ok := cache.GetStatsFromCache(); ok {
		c.JSON(http.StatusOK, stats)
		return
	}

	byStatus, revenue, err := svc.Stats(c.Request.Context())
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	stats := map[string]interface{}{
		"orders_by_status": byStatus,
		"revenue_cents":    revenue,
		"generated_at":     time.Now(),
	}
	cache.SetStatsCache(stats)

	c.JSON(http.StatusOK, stats)
}
