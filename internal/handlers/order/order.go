package order

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"

	"veyra_back_end/internal/cache"
	"veyra_back_end/internal/models"
	"veyra_back_end/internal/services"
)

var svc *services.OrderService

// Init câble le service de commandes, appelé au démarrage
func Init(s *services.OrderService) {
	svc = s
}

// Checkout crée une commande complète : panier, adresse, code promo, stock.
// Ouvert aux invités (email obligatoire) comme aux clients connectés.
func Checkout(c *gin.Context) {
	var req struct {
		Items         []models.CartItem      `json:"items"`
		Email         string                 `json:"email"`
		Address       models.AddressSnapshot `json:"address" binding:"required"`
		VoucherCode   string                 `json:"voucher_code"`
		PaymentMethod string                 `json:"payment_method" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	email := req.Email
	if email == "" {
		email = c.GetString("email")
	}

	// Client connecté sans items explicites : on prend son panier Redis
	items := req.Items
	if len(items) == 0 && userID != "" {
		cartItems, err := cache.GetCart(userID)
		if err != nil || len(cartItems) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Panier vide ou introuvable"})
			return
		}
		items = cartItems
	}

	order, err := svc.Create(c.Request.Context(), services.CreateOrderCommand{
		UserID:        userID,
		Email:         email,
		Items:         items,
		Address:       req.Address,
		VoucherCode:   req.VoucherCode,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	// le panier Redis est consommé
	if userID != "" && len(req.Items) == 0 {
		go func() {
			if err := cache.ClearCart(userID); err != nil {
				log.Printf("⚠️ Vidage du panier de %s impossible: %v", userID, err)
			}
		}()
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Commande créée",
		"order":   order,
	})
}

// GetMyOrders récupère toutes les commandes de l'utilisateur connecté
func GetMyOrders(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	orders, err := svc.ListMine(c.Request.Context(), userID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	log.Printf("✅ %d commandes trouvées pour user %s", len(orders), userID)
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrderByID récupère une commande spécifique par ID
func GetOrderByID(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	order, err := svc.Get(c.Request.Context(), orderID, c.GetString("user_id"), isAdmin(c))
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder annule une commande du client connecté
func CancelOrder(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	order, err := svc.Cancel(c.Request.Context(), orderID, c.GetString("user_id"), isAdmin(c))
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Commande annulée",
		"order":   order,
	})
}

// RequestRefund ouvre une demande de remboursement sur une commande livrée
func RequestRefund(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	order, err := svc.RequestRefund(c.Request.Context(), orderID, c.GetString("user_id"), isAdmin(c))
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Demande de remboursement enregistrée",
		"order":   order,
	})
}

// GetInvoiceURL génère une URL signée vers la facture PDF archivée
func GetInvoiceURL(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	// l'appartenance est vérifiée par la lecture de la commande
	order, err := svc.Get(c.Request.Context(), orderID, c.GetString("user_id"), isAdmin(c))
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	url, err := services.InvoiceDownloadURL(c.Request.Context(), order.ID.String(), 15*time.Minute)
	if err != nil {
		log.Printf("❌ URL de facture de la commande %s impossible: %v", order.ID, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Facture indisponible"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": 900})
}

func isAdmin(c *gin.Context) bool {
	role, _ := c.Get("role")
	return role == "admin"
}
