package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veyra_back_end/internal/models"
	"veyra_back_end/internal/services"
)

func newSweeper(f *fixture) *services.Sweeper {
	sw := services.NewSweeper(f.orders, f.inventory, f.ledger)
	sw.Threshold = 24 * time.Hour
	return sw
}

func TestSweepCancelsExpiredOrder(t *testing.T) {
	v := activeVoucher("SUMMER10", models.VoucherPercentage, 10)
	f := newFixture(v)
	f.inv.addVariant("MUG", "Mug", 899, 10)
	sw := newSweeper(f)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 2), VoucherCode: "SUMMER10"})
	f.orders.setCreatedAt(o.ID, time.Now().Add(-25*time.Hour))

	swept, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	fresh, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, fresh.Status)

	// stock et bon restitués
	assert.Equal(t, 0, f.inv.level("MUG").Reserved)
	assert.Equal(t, 10, f.inv.level("MUG").Stock)
	assert.Equal(t, 0, f.vouchers.usedCount("SUMMER10"))
}

func TestSweepIgnoresFreshOrders(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)
	sw := newSweeper(f)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 1)})

	swept, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	fresh, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, fresh.Status)
}

// Le paiement à la livraison n'expire jamais : la commande est confirmée mais
// restera impayée jusqu'à la remise en main propre.
func TestSweepIgnoresCashOrders(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)
	sw := newSweeper(f)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 1), PaymentMethod: models.MethodCash})
	f.orders.setCreatedAt(o.ID, time.Now().Add(-72*time.Hour))

	swept, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	fresh, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, fresh.Status)
}

func TestSweepIsRepeatable(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)
	sw := newSweeper(f)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 2)})
	f.orders.setCreatedAt(o.ID, time.Now().Add(-48*time.Hour))

	first, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, second, "une commande déjà annulée n'est pas rebalayée")
	assert.Equal(t, 10, f.inv.level("MUG").Stock, "pas de double restitution")
}

// Si un paiement gagne la course contre le balayage, la condition de version
// tranche : la commande payée n'est pas annulée.
func TestSweepSkipsOrderPaidMeanwhile(t *testing.T) {
	f := newFixture()
	f.inv.addVariant("MUG", "Mug", 899, 10)
	sw := newSweeper(f)

	o := f.createOrder(t, services.CreateOrderCommand{Items: cart("MUG", 1)})
	f.orders.setCreatedAt(o.ID, time.Now().Add(-48*time.Hour))

	// la liste des expirées est lue, puis le paiement arrive
	expired, err := f.orders.ListExpired(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)

	a := f.openAttempt(t, o)
	params := signedNotification(o, a, "TX-9", "00", a.Amount)
	ack, _ := f.rec.HandleNotification(context.Background(), params)
	require.Equal(t, "00", ack)

	swept, err := sw.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	fresh, err := f.orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, fresh.PaymentStatus)
}
