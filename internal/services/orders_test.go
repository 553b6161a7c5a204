package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veyra_back_end/internal/models"
	"veyra_back_end/internal/services"
	"veyra_back_end/internal/store"
)

func cart(pairs ...interface{}) []models.CartItem {
	items := make([]models.CartItem, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		items = append(items, models.CartItem{
			SKU:      pairs[i].(string),
			Quantity: pairs[i+1].(int),
		})
	}
	return items
}

func TestCreateComputesTotals(t *testing.T) {
	v := activeVoucher("SUMMER10", models.VoucherPercentage, 10)
	f := newFixture(v)
	f.inv.addVariant("TSHIRT-M", "T-shirt M", 1999, 10)
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{
		Items:       cart("TSHIRT-M", 2, "MUG", 1),
		VoucherCode: "SUMMER10",
	})

	// sous-total 2*1999 + 899 = 4897, remise 10 % = 489,7 → 489
	assert.Equal(t, int64(4897), o.Subtotal)
	assert.Equal(t, int64(489), o.Discount)
	// 4897 - 489 = 4408 < 5000 : livraison facturée
	assert.Equal(t, int64(499), o.ShippingFee)
	assert.Equal(t, int64(4907), o.TotalPrice)
	assert.True(t, o.CheckTotal())

	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, "client@example.com", o.CustomerEmail)

	// prix figés dans les lignes
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(1999), o.Items[0].UnitPrice)
	assert.Equal(t, "T-shirt M", o.Items[0].Name)

	// stock engagé, bon consommé
	assert.Equal(t, 2, f.inv.level("TSHIRT-M").Reserved)
	assert.Equal(t, 1, f.vouchers.usedCount("SUMMER10"))
}

func TestCreateFreeShippingAboveThreshold(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("COLLECTOR", "Édition collector", 4999, 10)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("COLLECTOR", 2)})
	assert.Equal(t, int64(0), o.ShippingFee, "franco de port à partir de 50 €")
	assert.Equal(t, int64(9998), o.TotalPrice)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	base := func() services.CreateOrderCommand {
		return services.CreateOrderCommand{
			Email:         "client@example.com",
			Items:         cart("MUG", 1),
			Address:       testAddress(),
			PaymentMethod: models.MethodGateway,
		}
	}

	cases := []struct {
		name   string
		mutate func(*services.CreateOrderCommand)
	}{
		{"panier vide", func(c *services.CreateOrderCommand) { c.Items = nil }},
		{"quantité nulle", func(c *services.CreateOrderCommand) { c.Items = cart("MUG", 0) }},
		{"SKU en double", func(c *services.CreateOrderCommand) { c.Items = cart("MUG", 1, "MUG", 2) }},
		{"email invalide", func(c *services.CreateOrderCommand) { c.Email = "pas-un-email" }},
		{"méthode inconnue", func(c *services.CreateOrderCommand) { c.PaymentMethod = "cheque" }},
		{"adresse incomplète", func(c *services.CreateOrderCommand) { c.Address.City = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := base()
			tc.mutate(&cmd)
			_, err := f.svc.Create(context.Background(), cmd)
			require.Error(t, err)
			assert.Equal(t, services.KindValidation, services.KindOf(err))
		})
	}
}

func TestCreateInactiveVariantRejected(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("RETIRE", "Article retiré", 1500, 10)
	f.inv.variants["RETIRE"].IsActive = false

	_, err := f.svc.Create(context.Background(), services.CreateOrderCommand{
		Email:         "client@example.com",
		Items:         cart("RETIRE", 1),
		Address:       testAddress(),
		PaymentMethod: models.MethodGateway,
	})
	require.Error(t, err)
	assert.Equal(t, services.KindValidation, services.KindOf(err))
}

// Au premier échec, tout ce qui a déjà été pris est rendu : la commande
// n'existe pas, le bon et le stock sont intacts.
func TestCreateInsufficientStockReleasesVoucher(t *testing.T) {
	v := activeVoucher("SUMMER10", models.VoucherPercentage, 10)
	f := newFixture(v)
	f.inv.addVariant("MUG", "Mug", 899, 1)

	_, err := f.svc.Create(context.Background(), services.CreateOrderCommand{
		Email:         "client@example.com",
		Items:         cart("MUG", 3),
		Address:       testAddress(),
		VoucherCode:   "SUMMER10",
		PaymentMethod: models.MethodGateway,
	})
	require.Error(t, err)
	assert.Equal(t, services.KindConflict, services.KindOf(err))

	assert.Equal(t, 0, f.vouchers.usedCount("SUMMER10"))
	assert.Equal(t, 0, f.inv.level("MUG").Reserved)
}

func TestCreateCashConfirmsImmediately(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{
		Items:         cart("MUG", 2),
		PaymentMethod: models.MethodCash,
	})

	assert.Equal(t, models.StatusConfirmed, o.Status)
	assert.Equal(t, models.PaymentUnpaid, o.PaymentStatus, "cash reste impayé jusqu'à la livraison")

	// le stock sort dès la confirmation
	lvl := f.inv.level("MUG")
	assert.Equal(t, 8, lvl.Stock)
	assert.Equal(t, 0, lvl.Reserved)
}

func TestGetHidesOthersOrders(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{
		UserID: "alice",
		Items:  cart("MUG", 1),
	})

	_, err := f.svc.Get(context.Background(), o.ID, "bob", false)
	require.Error(t, err)
	assert.Equal(t, services.KindNotFound, services.KindOf(err), "l'existence de la commande n'est pas révélée")

	got, err := f.svc.Get(context.Background(), o.ID, "bob", true)
	require.NoError(t, err, "l'admin voit tout")
	assert.Equal(t, o.ID, got.ID)
}

func TestCancelReleasesStockAndVoucher(t *testing.T) {
	v := activeVoucher("SUMMER10", models.VoucherPercentage, 10)
	f := newFixture(v)
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{
		UserID:      "alice",
		Items:       cart("MUG", 2),
		VoucherCode: "SUMMER10",
	})

	cancelled, err := f.svc.Cancel(context.Background(), o.ID, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	assert.Equal(t, 0, f.inv.level("MUG").Reserved)
	assert.Equal(t, 10, f.inv.level("MUG").Stock)
	assert.Equal(t, 0, f.vouchers.usedCount("SUMMER10"))
}

func TestCancelAlreadyCancelledIsNoop(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{UserID: "alice", Items: cart("MUG", 1)})
	_, err := f.svc.Cancel(context.Background(), o.ID, "alice", false)
	require.NoError(t, err)

	again, err := f.svc.Cancel(context.Background(), o.ID, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, again.Status)
	assert.Equal(t, 10, f.inv.level("MUG").Stock, "pas de double restitution")
}

func TestCancelPaidOrderRejected(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{UserID: "alice", Items: cart("MUG", 1)})

	fresh, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	applied, err := f.orders.Transition(context.Background(), fresh, store.OrderUpdate{
		Status:        models.StatusConfirmed,
		PaymentStatus: models.PaymentPaid,
		TransactionID: "TX-1",
	})
	require.NoError(t, err)
	require.True(t, applied)

	_, err = f.svc.Cancel(context.Background(), o.ID, "", true)
	require.Error(t, err)
	assert.Equal(t, services.KindConflict, services.KindOf(err))
}

func TestCancelConfirmedByOwnerRejected(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{
		UserID:        "alice",
		Items:         cart("MUG", 1),
		PaymentMethod: models.MethodCash, // confirmée dès la création
	})

	_, err := f.svc.Cancel(context.Background(), o.ID, "alice", false)
	require.Error(t, err)
	assert.Equal(t, services.KindConflict, services.KindOf(err))

	// l'admin, lui, peut encore annuler une commande confirmée
	cancelled, err := f.svc.Cancel(context.Background(), o.ID, "", true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}

func TestUpdateStatusRejectsCancellationTarget(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 1)})
	_, err := f.svc.UpdateStatus(context.Background(), o.ID, models.StatusCancelled, "")
	require.Error(t, err)
	assert.Equal(t, services.KindValidation, services.KindOf(err))
}

func TestUpdateStatusIllegalTransition(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 1)})

	// pending → delivered saute des étapes
	_, err := f.svc.UpdateStatus(context.Background(), o.ID, models.StatusDelivered, "")
	require.Error(t, err)
	assert.Equal(t, services.KindConflict, services.KindOf(err))
}

func TestRequestRefundOnlyFromDeliveredPaid(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{UserID: "alice", Items: cart("MUG", 1)})
	_, err := f.svc.RequestRefund(context.Background(), o.ID, "alice", false)
	require.Error(t, err, "pending/unpaid ne peut pas demander de remboursement")
	assert.Equal(t, services.KindConflict, services.KindOf(err))
}

func TestListMine(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	f.createOrder(t, services.CreateOrderCommand{UserID: "alice", Items: cart("MUG", 1)})
	f.createOrder(t, services.CreateOrderCommand{UserID: "alice", Items: cart("MUG", 2)})
	f.createOrder(t, services.CreateOrderCommand{UserID: "bob", Items: cart("MUG", 1)})

	mine, err := f.svc.ListMine(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestStatsCountsPaidRevenue(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 1)})
	f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 1)})

	fresh, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	_, err = f.orders.Transition(context.Background(), fresh, store.OrderUpdate{
		Status:        models.StatusConfirmed,
		PaymentStatus: models.PaymentPaid,
	})
	require.NoError(t, err)

	byStatus, revenue, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, byStatus[models.StatusPending])
	assert.Equal(t, 1, byStatus[models.StatusConfirmed])
	assert.Equal(t, fresh.TotalPrice, revenue, "seules les commandes payées comptent dans le chiffre d'affaires")
}
