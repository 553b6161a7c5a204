package middleware

import (
	"github.com/gin-gonic/gin"

	"veyra_back_end/internal/utils"
)

// AuditCriticalActions journalise les actions d'administration sur les
// commandes et les paiements, succès comme échecs.
func AuditCriticalActions(action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.Param("order_id")
		}

		c.Next()

		if c.Writer.Status() >= 200 && c.Writer.Status() < 300 {
			utils.LogAction(c, action, resource, resourceID, nil, nil)
		} else {
			utils.LogFailedAction(c, action, resource, resourceID, "Action échouée")
		}
	}
}
