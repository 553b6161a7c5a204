package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/models"
	"veyra_back_end/internal/store"
)

// Nombre de relectures quand une transition perd la course sur la version
const transitionMaxRetries = 4

// OrderService orchestre le cycle de vie des commandes : création tout-ou-rien
// (bon de réduction, stock, ligne de commande), annulation avec restitution,
// transitions de statut admin.
type OrderService struct {
	orders    store.OrderStore
	ledger    *VoucherLedger
	inventory *InventoryService
	shipping  *ShippingCalculator

	// Effets asynchrones (indexation, email). Nil = pas d'effet.
	OnCreated func(o models.Order)
	OnUpdated func(o models.Order)
}

func NewOrderService(orders store.OrderStore, ledger *VoucherLedger, inventory *InventoryService, shipping *ShippingCalculator) *OrderService {
	return &OrderService{
		orders:    orders,
		ledger:    ledger,
		inventory: inventory,
		shipping:  shipping,
	}
}

type CreateOrderCommand struct {
	UserID        string // vide pour un invité
	Email         string
	Items         []models.CartItem
	Address       models.AddressSnapshot
	VoucherCode   string
	PaymentMethod string
}

func (cmd *CreateOrderCommand) validate() error {
	if len(cmd.Items) == 0 {
		return Invalid("le panier est vide")
	}
	seen := make(map[string]bool, len(cmd.Items))
	for _, it := range cmd.Items {
		if it.SKU == "" || it.Quantity <= 0 {
			return Invalid("ligne de panier invalide")
		}
		if seen[it.SKU] {
			return Invalid(fmt.Sprintf("article %s en double dans le panier", it.SKU))
		}
		seen[it.SKU] = true
	}
	if cmd.Email == "" || !strings.Contains(cmd.Email, "@") {
		return Invalid("email invalide")
	}
	if cmd.PaymentMethod != models.MethodCash && cmd.PaymentMethod != models.MethodGateway {
		return Invalid("méthode de paiement inconnue")
	}
	a := cmd.Address
	if a.FullName == "" || a.Line1 == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
		return Invalid("adresse de livraison incomplète")
	}
	return nil
}

// Create construit la commande de bout en bout. Les effets sont appliqués
// dans l'ordre bon → stock → commande, avec compensation en sens inverse au
// premier échec : aucun état partiel n'est jamais visible, la ligne de
// commande n'existe que si tout le reste a réussi.
func (s *OrderService) Create(ctx context.Context, cmd CreateOrderCommand) (*models.Order, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	orderID := gocql.TimeUUID()

	// Prix figés au moment de la commande, depuis le catalogue
	var subtotal int64
	items := make([]models.OrderItem, 0, len(cmd.Items))
	for _, ci := range cmd.Items {
		v, err := s.inventory.Variant(ctx, ci.SKU)
		if err != nil {
			return nil, err
		}
		if !v.IsActive {
			return nil, Invalid(fmt.Sprintf("article %s plus disponible", ci.SKU))
		}
		items = append(items, models.OrderItem{
			SKU:       v.SKU,
			Name:      v.Name,
			Quantity:  ci.Quantity,
			UnitPrice: v.Price,
		})
		subtotal += v.Price * int64(ci.Quantity)
	}

	// 1. Bon de réduction
	var discount int64
	if cmd.VoucherCode != "" {
		_, d, err := s.ledger.ReserveRedemption(ctx, cmd.VoucherCode, orderID, subtotal, now)
		if err != nil {
			return nil, err
		}
		discount = d
	}

	// 2. Stock
	if err := s.inventory.Reserve(ctx, orderID, items); err != nil {
		s.releaseVoucher(ctx, cmd.VoucherCode, orderID)
		return nil, err
	}

	shippingFee := s.shipping.Fee(subtotal - discount)
	order := &models.Order{
		ID:            orderID,
		UserID:        cmd.UserID,
		CustomerEmail: cmd.Email,
		Items:         items,
		Address:       cmd.Address,
		VoucherCode:   cmd.VoucherCode,
		Subtotal:      subtotal,
		Discount:      discount,
		ShippingFee:   shippingFee,
		TotalPrice:    subtotal - discount + shippingFee,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentUnpaid,
		PaymentMethod: cmd.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !order.CheckTotal() {
		s.compensateCreate(ctx, order)
		return nil, Internal(fmt.Errorf("total incohérent pour la commande %s", orderID))
	}

	// 3. La ligne de commande, en dernier
	if err := s.orders.Insert(ctx, order); err != nil {
		s.compensateCreate(ctx, order)
		return nil, Internal(err)
	}

	// Paiement à la livraison : confirmation immédiate, le stock sort
	if cmd.PaymentMethod == models.MethodCash {
		if err := s.transition(ctx, order, store.OrderUpdate{
			Status:        models.StatusConfirmed,
			PaymentStatus: models.PaymentUnpaid,
		}); err != nil {
			log.Printf("⚠️ Confirmation cash de la commande %s impossible: %v", orderID, err)
		} else if err := s.inventory.Commit(ctx, orderID); err != nil {
			log.Printf("❌ Sortie de stock de la commande cash %s impossible: %v", orderID, err)
		}
	}

	log.Printf("✅ Commande %s créée (%d articles, total %.2f €)", orderID, len(items), float64(order.TotalPrice)/100)
	s.notifyCreated(order)
	return order, nil
}

func (s *OrderService) compensateCreate(ctx context.Context, o *models.Order) {
	if err := s.inventory.Release(ctx, o.ID, "création échouée"); err != nil {
		log.Printf("❌ Compensation stock de la commande %s impossible: %v", o.ID, err)
	}
	s.releaseVoucher(ctx, o.VoucherCode, o.ID)
}

func (s *OrderService) releaseVoucher(ctx context.Context, code string, orderID gocql.UUID) {
	if code == "" {
		return
	}
	if err := s.ledger.ReleaseRedemption(ctx, code, orderID); err != nil {
		log.Printf("❌ Libération du code %s pour la commande %s impossible: %v", code, orderID, err)
	}
}

// Get retourne la commande, réservée à son propriétaire sauf admin.
func (s *OrderService) Get(ctx context.Context, orderID gocql.UUID, userID string, isAdmin bool) (*models.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("commande introuvable")
		}
		return nil, Internal(err)
	}
	if !isAdmin && o.UserID != userID {
		// on ne révèle pas l'existence des commandes des autres
		return nil, NotFound("commande introuvable")
	}
	return o, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, Internal(err)
	}
	return orders, nil
}

// Cancel annule la commande et restitue stock et bon de réduction. Le
// propriétaire ne peut annuler qu'une commande "pending" non payée ; l'admin
// va jusqu'à "confirmed". Une commande déjà annulée est un no-op.
func (s *OrderService) Cancel(ctx context.Context, orderID gocql.UUID, userID string, isAdmin bool) (*models.Order, error) {
	o, err := s.Get(ctx, orderID, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	for i := 0; ; i++ {
		if o.Status == models.StatusCancelled {
			return o, nil
		}
		if !models.CanCancel(o, isAdmin) {
			return nil, Conflict("la commande ne peut plus être annulée")
		}
		// le paiement a pu arriver entre la lecture et ici ; la condition de
		// version tranche la course, on re-vérifie après chaque perte
		if o.PaymentStatus == models.PaymentPaid {
			return nil, Conflict("commande déjà payée, passez par un remboursement")
		}

		applied, err := s.orders.Transition(ctx, o, store.OrderUpdate{
			Status:        models.StatusCancelled,
			PaymentStatus: o.PaymentStatus,
		})
		if err != nil {
			return nil, Internal(err)
		}
		if applied {
			break
		}
		if i >= transitionMaxRetries {
			return nil, Conflict("commande modifiée en parallèle, réessayez")
		}
		if o, err = s.reload(ctx, orderID); err != nil {
			return nil, err
		}
	}

	if err := s.inventory.Release(ctx, orderID, "commande annulée"); err != nil {
		log.Printf("❌ Restitution du stock de la commande %s impossible: %v", orderID, err)
	}
	s.releaseVoucher(ctx, o.VoucherCode, orderID)

	log.Printf("✅ Commande %s annulée", orderID)
	s.notifyUpdated(o)
	return o, nil
}

// UpdateStatus fait avancer la commande (admin). L'annulation passe par
// Cancel, qui restitue le stock.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID gocql.UUID, newStatus, newPaymentStatus string) (*models.Order, error) {
	if newStatus == models.StatusCancelled {
		return nil, Invalid("utiliser l'annulation pour ce statut")
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("commande introuvable")
		}
		return nil, Internal(err)
	}

	upd := store.OrderUpdate{Status: newStatus, PaymentStatus: newPaymentStatus}
	if upd.Status == "" {
		upd.Status = o.Status
	}
	if upd.PaymentStatus == "" {
		upd.PaymentStatus = o.PaymentStatus
	}
	if err := s.transition(ctx, o, upd); err != nil {
		return nil, err
	}

	s.notifyUpdated(o)
	return o, nil
}

// RequestRefund ouvre la demande de remboursement du propriétaire, possible
// uniquement sur une commande livrée et payée.
func (s *OrderService) RequestRefund(ctx context.Context, orderID gocql.UUID, userID string, isAdmin bool) (*models.Order, error) {
	o, err := s.Get(ctx, orderID, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, o, store.OrderUpdate{
		Status:        models.StatusRefundRequested,
		PaymentStatus: o.PaymentStatus,
	}); err != nil {
		return nil, err
	}

	log.Printf("📦 Demande de remboursement ouverte pour la commande %s", orderID)
	s.notifyUpdated(o)
	return o, nil
}

// Stats agrège les compteurs par statut et le chiffre d'affaires encaissé.
func (s *OrderService) Stats(ctx context.Context) (map[string]int, int64, error) {
	byStatus, revenue, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, 0, Internal(err)
	}
	return byStatus, revenue, nil
}

// transition applique la mise à jour avec validation de légalité, en relisant
// la commande à chaque version perdue.
func (s *OrderService) transition(ctx context.Context, o *models.Order, upd store.OrderUpdate) error {
	for i := 0; i <= transitionMaxRetries; i++ {
		if !models.CanTransition(o, upd.Status, upd.PaymentStatus) {
			return Conflict(fmt.Sprintf("transition %s/%s → %s/%s interdite",
				o.Status, o.PaymentStatus, upd.Status, upd.PaymentStatus))
		}
		applied, err := s.orders.Transition(ctx, o, upd)
		if err != nil {
			return Internal(err)
		}
		if applied {
			return nil
		}
		fresh, err := s.reload(ctx, o.ID)
		if err != nil {
			return err
		}
		*o = *fresh
	}
	return Conflict("commande modifiée en parallèle, réessayez")
}

func (s *OrderService) reload(ctx context.Context, orderID gocql.UUID) (*models.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("commande introuvable")
		}
		return nil, Internal(err)
	}
	return o, nil
}

func (s *OrderService) notifyCreated(o *models.Order) {
	if s.OnCreated != nil {
		go s.OnCreated(*o)
	}
}

func (s *OrderService) notifyUpdated(o *models.Order) {
	if s.OnUpdated != nil {
		go s.OnUpdated(*o)
	}
}
