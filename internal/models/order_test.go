package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"veyra_back_end/internal/models"
)

func order(status, paymentStatus, method string) *models.Order {
	return &models.Order{
		Status:        status,
		PaymentStatus: paymentStatus,
		PaymentMethod: method,
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		name       string
		from       *models.Order
		toStatus   string
		toPayment  string
		allowed    bool
	}{
		{"paiement confirme la commande", order(models.StatusPending, models.PaymentUnpaid, models.MethodGateway), models.StatusConfirmed, models.PaymentPaid, true},
		{"échec de paiement", order(models.StatusPending, models.PaymentUnpaid, models.MethodGateway), models.StatusPending, models.PaymentFailed, true},
		{"nouvel essai après échec", order(models.StatusPending, models.PaymentFailed, models.MethodGateway), models.StatusConfirmed, models.PaymentPaid, true},
		{"annulation en attente", order(models.StatusPending, models.PaymentUnpaid, models.MethodGateway), models.StatusCancelled, models.PaymentUnpaid, true},
		{"expédition payée", order(models.StatusConfirmed, models.PaymentPaid, models.MethodGateway), models.StatusShipped, models.PaymentPaid, true},
		{"livraison", order(models.StatusShipped, models.PaymentPaid, models.MethodGateway), models.StatusDelivered, models.PaymentPaid, true},
		{"demande de remboursement", order(models.StatusDelivered, models.PaymentPaid, models.MethodGateway), models.StatusRefundRequested, models.PaymentPaid, true},
		{"remboursement", order(models.StatusRefundRequested, models.PaymentPaid, models.MethodGateway), models.StatusRefunded, models.PaymentRefunded, true},
		{"cash expédié sans paiement", order(models.StatusConfirmed, models.PaymentUnpaid, models.MethodCash), models.StatusShipped, models.PaymentUnpaid, true},

		{"saut pending → shipped", order(models.StatusPending, models.PaymentUnpaid, models.MethodGateway), models.StatusShipped, models.PaymentPaid, false},
		{"saut pending → delivered", order(models.StatusPending, models.PaymentUnpaid, models.MethodGateway), models.StatusDelivered, models.PaymentPaid, false},
		{"expédition sans paiement (passerelle)", order(models.StatusConfirmed, models.PaymentUnpaid, models.MethodGateway), models.StatusShipped, models.PaymentUnpaid, false},
		{"retour en arrière", order(models.StatusShipped, models.PaymentPaid, models.MethodGateway), models.StatusConfirmed, models.PaymentPaid, false},
		{"annulation après expédition", order(models.StatusShipped, models.PaymentPaid, models.MethodGateway), models.StatusCancelled, models.PaymentPaid, false},
		{"commande annulée figée", order(models.StatusCancelled, models.PaymentUnpaid, models.MethodGateway), models.StatusConfirmed, models.PaymentPaid, false},
		{"commande remboursée figée", order(models.StatusRefunded, models.PaymentRefunded, models.MethodGateway), models.StatusShipped, models.PaymentRefunded, false},
		{"remboursement sans livraison", order(models.StatusConfirmed, models.PaymentPaid, models.MethodGateway), models.StatusRefundRequested, models.PaymentPaid, false},
		{"remboursement d'une commande impayée", order(models.StatusDelivered, models.PaymentUnpaid, models.MethodCash), models.StatusRefundRequested, models.PaymentUnpaid, false},
		{"refunded sans payment refunded", order(models.StatusRefundRequested, models.PaymentPaid, models.MethodGateway), models.StatusRefunded, models.PaymentPaid, false},
		{"paiement refunded hors remboursement", order(models.StatusConfirmed, models.PaymentPaid, models.MethodGateway), models.StatusConfirmed, models.PaymentRefunded, false},
		{"unpaid → refunded", order(models.StatusPending, models.PaymentUnpaid, models.MethodGateway), models.StatusPending, models.PaymentRefunded, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := models.CanTransition(tc.from, tc.toStatus, tc.toPayment)
			assert.Equal(t, tc.allowed, got)
		})
	}
}

func TestCanCancel(t *testing.T) {
	pending := order(models.StatusPending, models.PaymentUnpaid, models.MethodGateway)
	confirmed := order(models.StatusConfirmed, models.PaymentUnpaid, models.MethodGateway)
	shipped := order(models.StatusShipped, models.PaymentPaid, models.MethodGateway)

	assert.True(t, models.CanCancel(pending, false))
	assert.False(t, models.CanCancel(confirmed, false), "le client ne va pas au-delà de pending")

	assert.True(t, models.CanCancel(pending, true))
	assert.True(t, models.CanCancel(confirmed, true))
	assert.False(t, models.CanCancel(shipped, true), "même l'admin n'annule pas une commande expédiée")
}

func TestCheckTotal(t *testing.T) {
	o := &models.Order{Subtotal: 4897, Discount: 489, ShippingFee: 499, TotalPrice: 4907}
	assert.True(t, o.CheckTotal())

	o.TotalPrice = 4906
	assert.False(t, o.CheckTotal())

	// un total négatif n'est jamais valide
	o = &models.Order{Subtotal: 100, Discount: 300, ShippingFee: 0, TotalPrice: -200}
	assert.False(t, o.CheckTotal())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, order(models.StatusCancelled, models.PaymentUnpaid, models.MethodGateway).IsTerminal())
	assert.True(t, order(models.StatusRefunded, models.PaymentRefunded, models.MethodGateway).IsTerminal())
	assert.False(t, order(models.StatusDelivered, models.PaymentPaid, models.MethodGateway).IsTerminal())
}
