package payement

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"

	"veyra_back_end/internal/services"
)

// RefundOrder déclenche le remboursement passerelle d'une commande livrée et
// payée (admin), qu'une demande soit déjà ouverte ou non. La commande ne
// passe à "refunded" que si la passerelle confirme.
func RefundOrder(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	order, err := reconciler.InitiateRefund(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Remboursement effectué",
		"order":   order,
	})
}
