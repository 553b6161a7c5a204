package services_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/gateway"
	"veyra_back_end/internal/models"
	"veyra_back_end/internal/services"
	"veyra_back_end/internal/store"
)

// Doubles en mémoire des stores ScyllaDB. Les mises à jour conditionnelles
// sont reproduites sous mutex : mêmes garanties d'atomicité, testables en
// concurrence réelle.

type fakeOrders struct {
	mu     sync.Mutex
	orders map[gocql.UUID]*models.Order

	// fait échouer les prochains Transition, pour simuler une panne passagère
	transitionErrs int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: make(map[gocql.UUID]*models.Order)}
}

func (f *fakeOrders) Insert(ctx context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) Get(ctx context.Context, id gocql.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) Transition(ctx context.Context, o *models.Order, upd store.OrderUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transitionErrs > 0 {
		f.transitionErrs--
		return false, errors.New("écriture indisponible")
	}
	cur, ok := f.orders[o.ID]
	if !ok {
		return false, store.ErrNotFound
	}
	if cur.Version != o.Version {
		return false, nil
	}

	txID := cur.TransactionID
	if upd.TransactionID != "" {
		txID = upd.TransactionID
	}
	cur.Status = upd.Status
	cur.PaymentStatus = upd.PaymentStatus
	cur.TransactionID = txID
	cur.Version++
	cur.UpdatedAt = time.Now()

	o.Status = cur.Status
	o.PaymentStatus = cur.PaymentStatus
	o.TransactionID = cur.TransactionID
	o.Version = cur.Version
	o.UpdatedAt = cur.UpdatedAt
	return true, nil
}

func (f *fakeOrders) ListExpired(ctx context.Context, before time.Time) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if o.Status == models.StatusPending &&
			o.PaymentStatus == models.PaymentUnpaid &&
			o.PaymentMethod == models.MethodGateway &&
			o.CreatedAt.Before(before) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) setCreatedAt(id gocql.UUID, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[id].CreatedAt = t
}

func (f *fakeOrders) Stats(ctx context.Context) (map[string]int, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byStatus := make(map[string]int)
	var revenue int64
	for _, o := range f.orders {
		byStatus[o.Status]++
		if o.PaymentStatus == models.PaymentPaid {
			revenue += o.TotalPrice
		}
	}
	return byStatus, revenue, nil
}

type fakeVouchers struct {
	mu          sync.Mutex
	vouchers    map[string]*models.Voucher
	redemptions map[string]models.VoucherRedemption
}

func newFakeVouchers(vouchers ...*models.Voucher) *fakeVouchers {
	f := &fakeVouchers{
		vouchers:    make(map[string]*models.Voucher),
		redemptions: make(map[string]models.VoucherRedemption),
	}
	for _, v := range vouchers {
		f.vouchers[v.Code] = v
	}
	return f
}

func redemptionKey(code string, orderID gocql.UUID) string {
	return code + "/" + orderID.String()
}

func (f *fakeVouchers) Get(ctx context.Context, code string) (*models.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vouchers[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVouchers) IncrementUsageIfBelow(ctx context.Context, code string, limit int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vouchers[code]
	if !ok {
		return false, store.ErrNotFound
	}
	if limit > 0 && v.UsedCount >= limit {
		return false, nil
	}
	v.UsedCount++
	return true, nil
}

func (f *fakeVouchers) DecrementUsage(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vouchers[code]
	if !ok {
		return store.ErrNotFound
	}
	if v.UsedCount > 0 {
		v.UsedCount--
	}
	return nil
}

func (f *fakeVouchers) InsertRedemption(ctx context.Context, r *models.VoucherRedemption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redemptions[redemptionKey(r.Code, r.OrderID)] = *r
	return nil
}

func (f *fakeVouchers) GetRedemption(ctx context.Context, code string, orderID gocql.UUID) (*models.VoucherRedemption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.redemptions[redemptionKey(code, orderID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (f *fakeVouchers) DeleteRedemption(ctx context.Context, code string, orderID gocql.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.redemptions, redemptionKey(code, orderID))
	return nil
}

func (f *fakeVouchers) usedCount(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vouchers[code].UsedCount
}

type fakeInventory struct {
	mu        sync.Mutex
	variants  map[string]*models.ProductVariant
	stock     map[string]*models.StockLevel
	holds     map[gocql.UUID][]models.InventoryHold
	movements []models.StockMovement
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		variants: make(map[string]*models.ProductVariant),
		stock:    make(map[string]*models.StockLevel),
		holds:    make(map[gocql.UUID][]models.InventoryHold),
	}
}

func (f *fakeInventory) addVariant(sku, name string, price int64, stock int) {
	f.variants[sku] = &models.ProductVariant{
		ID:       gocql.TimeUUID(),
		SKU:      sku,
		Name:     name,
		Price:    price,
		IsActive: true,
	}
	f.stock[sku] = &models.StockLevel{SKU: sku, Stock: stock}
}

func (f *fakeInventory) GetVariant(ctx context.Context, sku string) (*models.ProductVariant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.variants[sku]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeInventory) GetStock(ctx context.Context, sku string) (*models.StockLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lvl, ok := f.stock[sku]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *lvl
	return &cp, nil
}

func (f *fakeInventory) ReserveStock(ctx context.Context, sku string, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lvl, ok := f.stock[sku]
	if !ok {
		return false, store.ErrNotFound
	}
	if lvl.Reserved+qty > lvl.Stock {
		return false, nil
	}
	lvl.Reserved += qty
	return true, nil
}

func (f *fakeInventory) ReleaseStock(ctx context.Context, sku string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lvl, ok := f.stock[sku]
	if !ok {
		return store.ErrNotFound
	}
	lvl.Reserved -= qty
	if lvl.Reserved < 0 {
		lvl.Reserved = 0
	}
	return nil
}

func (f *fakeInventory) CommitStock(ctx context.Context, sku string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lvl, ok := f.stock[sku]
	if !ok {
		return store.ErrNotFound
	}
	lvl.Stock -= qty
	lvl.Reserved -= qty
	return nil
}

func (f *fakeInventory) InsertHolds(ctx context.Context, holds []models.InventoryHold) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range holds {
		f.holds[h.OrderID] = append(f.holds[h.OrderID], h)
	}
	return nil
}

func (f *fakeInventory) HoldsByOrder(ctx context.Context, orderID gocql.UUID) ([]models.InventoryHold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.InventoryHold(nil), f.holds[orderID]...), nil
}

func (f *fakeInventory) UpdateHoldState(ctx context.Context, orderID, holdID gocql.UUID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	holds := f.holds[orderID]
	for i := range holds {
		if holds[i].ID == holdID {
			if holds[i].State != from {
				return false, nil
			}
			holds[i].State = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInventory) InsertMovement(ctx context.Context, m *models.StockMovement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movements = append(f.movements, *m)
	return nil
}

func (f *fakeInventory) level(sku string) models.StockLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.stock[sku]
}

type fakePayments struct {
	mu       sync.Mutex
	attempts map[gocql.UUID]*models.PaymentAttempt // par attempt_id
	byTx     map[string]gocql.UUID
}

func newFakePayments() *fakePayments {
	return &fakePayments{
		attempts: make(map[gocql.UUID]*models.PaymentAttempt),
		byTx:     make(map[string]gocql.UUID),
	}
}

func (f *fakePayments) InsertAttempt(ctx context.Context, a *models.PaymentAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakePayments) Attempt(ctx context.Context, orderID, attemptID gocql.UUID) (*models.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok || a.OrderID != orderID {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakePayments) AttemptByTransaction(ctx context.Context, txID string) (*models.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attemptID, ok := f.byTx[txID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *f.attempts[attemptID]
	return &cp, nil
}

func (f *fakePayments) LatestInitiatedAttempt(ctx context.Context, orderID gocql.UUID) (*models.PaymentAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.PaymentAttempt
	for _, a := range f.attempts {
		if a.OrderID == orderID && a.Status == models.AttemptInitiated {
			if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
				latest = a
			}
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakePayments) BindTransaction(ctx context.Context, a *models.PaymentAttempt, txID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byTx[txID]; ok {
		return existing == a.ID, nil
	}
	f.byTx[txID] = a.ID
	f.attempts[a.ID].TransactionID = txID
	a.TransactionID = txID
	return true, nil
}

func (f *fakePayments) ResolveAttempt(ctx context.Context, a *models.PaymentAttempt, status, digest string, receivedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.attempts[a.ID]
	if !ok {
		return false, store.ErrNotFound
	}
	if cur.Status != models.AttemptInitiated {
		return false, nil
	}
	cur.Status = status
	cur.ResponseDigest = digest
	cur.ReceivedAt = &receivedAt

	a.Status = status
	a.ResponseDigest = digest
	a.ReceivedAt = &receivedAt
	return true, nil
}

// fakeGateway signe et vérifie avec la vraie implémentation HMAC ; seul
// l'appel HTTP de remboursement est simulé.
type fakeGateway struct {
	mu        sync.Mutex
	secret    string
	refundErr error
	refunds   []string
}

func newFakeGateway(secret string) *fakeGateway {
	return &fakeGateway{secret: secret}
}

func (g *fakeGateway) BuildPaymentURL(orderID, attemptID string, amount int64, ts time.Time) (string, error) {
	return fmt.Sprintf("https://pay.test/checkout?order_id=%s&attempt_id=%s&amount=%d", orderID, attemptID, amount), nil
}

func (g *fakeGateway) VerifyCallback(params map[string]string) bool {
	return gateway.Verify(g.secret, params)
}

func (g *fakeGateway) Refund(ctx context.Context, transactionID string, amount int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return "", g.refundErr
	}
	g.refunds = append(g.refunds, transactionID)
	return "RF-" + transactionID, nil
}

// fixture câble la pile métier complète sur les doubles en mémoire.
type fixture struct {
	orders    *fakeOrders
	vouchers  *fakeVouchers
	inv       *fakeInventory
	payments  *fakePayments
	gw        *fakeGateway
	ledger    *services.VoucherLedger
	inventory *services.InventoryService
	svc       *services.OrderService
	rec       *services.Reconciler
}

const testSecret = "secret-de-test"

func newFixture(vouchers ...*models.Voucher) *fixture {
	f := &fixture{
		orders:   newFakeOrders(),
		vouchers: newFakeVouchers(vouchers...),
		inv:      newFakeInventory(),
		payments: newFakePayments(),
		gw:       newFakeGateway(testSecret),
	}
	f.ledger = services.NewVoucherLedger(f.vouchers)
	f.inventory = services.NewInventoryService(f.inv)
	shipping := &services.ShippingCalculator{FlatFee: 499, FreeFrom: 5000}
	f.svc = services.NewOrderService(f.orders, f.ledger, f.inventory, shipping)
	f.rec = services.NewReconciler(f.orders, f.payments, f.inventory, f.gw)
	return f
}

func testAddress() models.AddressSnapshot {
	return models.AddressSnapshot{
		FullName:   "Jean Dupont",
		Line1:      "12 rue des Lilas",
		City:       "Bruxelles",
		PostalCode: "1000",
		Country:    "BE",
	}
}

func (f *fixture) createOrder(t *testing.T, cmd services.CreateOrderCommand) *models.Order {
	t.Helper()
	if cmd.Email == "" {
		cmd.Email = "client@example.com"
	}
	if cmd.Address.FullName == "" {
		cmd.Address = testAddress()
	}
	if cmd.PaymentMethod == "" {
		cmd.PaymentMethod = models.MethodGateway
	}
	o, err := f.svc.Create(context.Background(), cmd)
	if err != nil {
		t.Fatalf("création de commande: %v", err)
	}
	return o
}

// openAttempt crée l'URL de paiement et retourne la tentative ouverte.
func (f *fixture) openAttempt(t *testing.T, o *models.Order) *models.PaymentAttempt {
	t.Helper()
	if _, _, err := f.rec.CreatePaymentURL(context.Background(), o.ID, o.UserID, false); err != nil {
		t.Fatalf("ouverture de tentative: %v", err)
	}
	a, err := f.payments.LatestInitiatedAttempt(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("tentative introuvable: %v", err)
	}
	return a
}

// signedNotification fabrique les paramètres d'une notification passerelle
// correctement signés.
func signedNotification(o *models.Order, a *models.PaymentAttempt, txID, result string, amount int64) map[string]string {
	params := map[string]string{
		"merchant_id":    "VEYRA",
		"order_id":       o.ID.String(),
		"attempt_id":     a.ID.String(),
		"transaction_id": txID,
		"amount":         strconv.FormatInt(amount, 10),
		"result":         result,
		"timestamp":      "1756700000",
	}
	params[gateway.SignatureParam] = gateway.Sign(testSecret, params)
	return params
}
