package product

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"veyra_back_end/internal/cache"
	"veyra_back_end/internal/database"
)

// GetVariant retourne la fiche d'une variante (cache Redis puis ScyllaDB)
func GetVariant(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "SKU requis"})
		return
	}

	v, err := cache.GetVariantFromCache(sku)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article introuvable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"variant": v})
}

// GetVariantStock retourne la disponibilité affichable d'une variante :
// stock physique moins réservations en cours
func GetVariantStock(c *gin.Context) {
	sku := c.Param("sku")
	if sku == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "SKU requis"})
		return
	}

	session, err := database.GetProductsSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	var stock, reserved int
	err = session.Query(`SELECT stock, reserved FROM stock_levels WHERE sku = ?`, sku).Scan(&stock, &reserved)
	if err != nil {
		log.Printf("❌ Lecture stock %s: %v", sku, err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Article introuvable"})
		return
	}

	available := stock - reserved
	if available < 0 {
		available = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"sku":       sku,
		"available": available,
	})
}
