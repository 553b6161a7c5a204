package payement

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"

	"veyra_back_end/internal/services"
)

var reconciler *services.Reconciler

// Init câble le réconciliateur de paiement, appelé au démarrage
func Init(r *services.Reconciler) {
	reconciler = r
}

// CreatePaymentURL ouvre une tentative de paiement et renvoie l'URL signée
// de redirection vers la passerelle, avec son QR code
func CreatePaymentURL(c *gin.Context) {
	orderID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	role, _ := c.Get("role")
	payURL, qr, err := reconciler.CreatePaymentURL(c.Request.Context(), orderID, c.GetString("user_id"), role == "admin")
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_url": payURL,
		"qr_code":     qr,
	})
}

// PaymentReturn traite le retour navigateur après le parcours de paiement.
// Purement informatif : l'état affiché vient de la base, pas des paramètres.
func PaymentReturn(c *gin.Context) {
	order, msg, err := reconciler.HandleReturn(c.Request.Context(), queryParams(c))
	if err != nil {
		c.JSON(services.HTTPStatus(err), gin.H{"error": services.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        msg,
		"order_id":       order.ID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	})
}

// PaymentNotify traite la notification serveur-à-serveur de la passerelle.
// Répond toujours 200 avec un code d'acquittement : c'est le code qui dit à
// la passerelle de re-livrer ou non.
func PaymentNotify(c *gin.Context) {
	code, msg := reconciler.HandleNotification(c.Request.Context(), queryParams(c))
	c.JSON(http.StatusOK, gin.H{
		"code":    code,
		"message": msg,
	})
}

// queryParams aplatit query string et corps de formulaire (la notification
// arrive en GET ou en POST) ; la passerelle n'envoie jamais de paramètre
// multi-valué
func queryParams(c *gin.Context) map[string]string {
	_ = c.Request.ParseForm()
	params := make(map[string]string)
	for k, v := range c.Request.Form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}
