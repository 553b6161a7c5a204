package cart

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"veyra_back_end/internal/cache"
	"veyra_back_end/internal/models"
)

// GetCart retourne le panier Redis du client connecté
func GetCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	items, err := cache.GetCart(userID)
	if err != nil {
		// pas encore de panier
		c.JSON(http.StatusOK, gin.H{"items": []models.CartItem{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SaveCart remplace le panier du client connecté
func SaveCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	var req struct {
		Items []models.CartItem `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	for _, it := range req.Items {
		if it.SKU == "" || it.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Ligne de panier invalide"})
			return
		}
	}

	if err := cache.SaveCart(userID, req.Items); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur sauvegarde panier"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Panier enregistré", "items": req.Items})
}

// ClearCart vide le panier du client connecté
func ClearCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	if err := cache.ClearCart(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur vidage panier"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Panier vidé"})
}
