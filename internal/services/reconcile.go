package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"veyra_back_end/internal/gateway"
	"veyra_back_end/internal/models"
	"veyra_back_end/internal/store"
)

// Reconciler fait converger l'état des commandes avec ce que la passerelle
// de paiement rapporte. Le canal navigateur (return) est purement indicatif ;
// seule la notification serveur-à-serveur fait foi, et elle peut arriver en
// double, en retard ou après annulation.
type Reconciler struct {
	orders    store.OrderStore
	payments  store.PaymentStore
	inventory *InventoryService
	gw        gateway.Gateway

	// Effets asynchrones après encaissement confirmé (email, facture, index)
	OnPaid     func(o models.Order)
	OnRefunded func(o models.Order)
}

func NewReconciler(orders store.OrderStore, payments store.PaymentStore, inventory *InventoryService, gw gateway.Gateway) *Reconciler {
	return &Reconciler{
		orders:    orders,
		payments:  payments,
		inventory: inventory,
		gw:        gw,
	}
}

// CreatePaymentURL ouvre une tentative de paiement et construit l'URL de
// redirection signée, avec son QR. Chaque appel crée une nouvelle tentative :
// un client qui réessaie après un échec repart proprement.
func (r *Reconciler) CreatePaymentURL(ctx context.Context, orderID gocql.UUID, userID string, isAdmin bool) (string, string, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", NotFound("commande introuvable")
		}
		return "", "", Internal(err)
	}
	if !isAdmin && o.UserID != userID {
		return "", "", NotFound("commande introuvable")
	}

	if o.PaymentMethod != models.MethodGateway {
		return "", "", Conflict("cette commande se paie à la livraison")
	}
	if o.Status != models.StatusPending ||
		(o.PaymentStatus != models.PaymentUnpaid && o.PaymentStatus != models.PaymentFailed) {
		return "", "", Conflict("la commande n'est pas en attente de paiement")
	}

	now := time.Now()
	attempt := &models.PaymentAttempt{
		ID:        gocql.TimeUUID(),
		OrderID:   o.ID,
		Amount:    o.TotalPrice,
		Status:    models.AttemptInitiated,
		CreatedAt: now,
	}
	if err := r.payments.InsertAttempt(ctx, attempt); err != nil {
		return "", "", Internal(err)
	}

	payURL, err := r.gw.BuildPaymentURL(o.ID.String(), attempt.ID.String(), attempt.Amount, now)
	if err != nil {
		return "", "", Internal(err)
	}
	qr, err := gateway.PaymentQR(payURL)
	if err != nil {
		return "", "", Internal(err)
	}

	log.Printf("💳 Tentative de paiement %s ouverte pour la commande %s (%.2f €)",
		attempt.ID, o.ID, float64(attempt.Amount)/100)
	return payURL, qr, nil
}

// HandleReturn traite le retour navigateur : vérification de signature et
// lecture de l'état courant, sans aucune mutation. C'est la notification qui
// décide, pas le navigateur du client.
func (r *Reconciler) HandleReturn(ctx context.Context, params map[string]string) (*models.Order, string, error) {
	if !r.gw.VerifyCallback(params) {
		return nil, "", Invalid("signature invalide")
	}
	cb, err := gateway.ParseCallback(params)
	if err != nil {
		return nil, "", Invalid("paramètres de retour invalides")
	}
	orderID, err := gocql.ParseUUID(cb.OrderID)
	if err != nil {
		return nil, "", Invalid("identifiant de commande invalide")
	}

	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", NotFound("commande introuvable")
		}
		return nil, "", Internal(err)
	}

	msg := "paiement en cours de confirmation"
	if cb.Result != gateway.ResultSuccess {
		msg = "paiement refusé par la passerelle"
	}
	if o.PaymentStatus == models.PaymentPaid {
		msg = "paiement confirmé"
	}
	return o, msg, nil
}

// HandleNotification traite la notification serveur-à-serveur et retourne le
// code d'acquittement attendu par la passerelle. Idempotent : la même
// notification livrée deux fois est ré-acquittée sans rejouer les effets.
func (r *Reconciler) HandleNotification(ctx context.Context, params map[string]string) (string, string) {
	if !r.gw.VerifyCallback(params) {
		log.Println("❌ Notification passerelle rejetée: signature invalide")
		return gateway.AckInvalidSignature, "signature invalide"
	}

	cb, err := gateway.ParseCallback(params)
	if err != nil {
		return gateway.AckOrderUnknown, "paramètres invalides"
	}
	orderID, err := gocql.ParseUUID(cb.OrderID)
	if err != nil {
		return gateway.AckOrderUnknown, "commande inconnue"
	}
	attemptID, err := gocql.ParseUUID(cb.AttemptID)
	if err != nil {
		return gateway.AckOrderUnknown, "tentative inconnue"
	}

	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return gateway.AckOrderUnknown, "commande inconnue"
		}
		log.Printf("❌ Lecture de la commande %s impossible: %v", orderID, err)
		return gateway.AckInternalError, "erreur interne"
	}

	a, err := r.payments.Attempt(ctx, orderID, attemptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return gateway.AckOrderUnknown, "tentative inconnue"
		}
		log.Printf("❌ Lecture de la tentative %s impossible: %v", attemptID, err)
		return gateway.AckInternalError, "erreur interne"
	}

	digest := notificationDigest(params)

	// Tentative déjà résolue : une autre notification → la passerelle tente
	// de rejouer un paiement déjà tranché. La même notification → on refait
	// converger la commande avant d'acquitter : la première livraison a pu
	// échouer entre la résolution de la tentative et la confirmation.
	if a.Status != models.AttemptInitiated {
		if a.ResponseDigest != digest {
			return gateway.AckAlreadyProcessed, "tentative déjà résolue"
		}
		if a.Status == models.AttemptSucceeded {
			return r.settlePaid(ctx, o, cb.TransactionID)
		}
		return gateway.AckSuccess, "déjà traité"
	}

	if cb.Amount != a.Amount {
		log.Printf("⚠️ Montant notifié %d ≠ montant attendu %d pour la commande %s",
			cb.Amount, a.Amount, orderID)
		if _, err := r.payments.ResolveAttempt(ctx, a, models.AttemptFailed, digest, time.Now()); err != nil {
			log.Printf("❌ Clôture de la tentative %s impossible: %v", a.ID, err)
		}
		return gateway.AckAmountMismatch, "montant incohérent"
	}

	bound, err := r.payments.BindTransaction(ctx, a, cb.TransactionID)
	if err != nil {
		log.Printf("❌ Association transaction %s impossible: %v", cb.TransactionID, err)
		return gateway.AckInternalError, "erreur interne"
	}
	if !bound {
		log.Printf("❌ Transaction %s déjà associée à une autre tentative", cb.TransactionID)
		return gateway.AckOrderUnknown, "transaction inconnue"
	}

	if cb.Result == gateway.ResultSuccess {
		return r.applySuccess(ctx, o, a, cb, digest)
	}
	return r.applyFailure(ctx, o, a, cb, digest)
}

func (r *Reconciler) applySuccess(ctx context.Context, o *models.Order, a *models.PaymentAttempt, cb *gateway.Callback, digest string) (string, string) {
	applied, err := r.payments.ResolveAttempt(ctx, a, models.AttemptSucceeded, digest, time.Now())
	if err != nil {
		log.Printf("❌ Résolution de la tentative %s impossible: %v", a.ID, err)
		return gateway.AckInternalError, "erreur interne"
	}
	if !applied {
		// course entre deux livraisons de la même notification : la
		// convergence est rejouable, on la déroule quand même
		fresh, err := r.payments.Attempt(ctx, a.OrderID, a.ID)
		if err != nil || fresh.ResponseDigest != digest {
			return gateway.AckAlreadyProcessed, "tentative déjà résolue"
		}
		if fresh.Status != models.AttemptSucceeded {
			return gateway.AckSuccess, "déjà traité"
		}
	}
	return r.settlePaid(ctx, o, cb.TransactionID)
}

// settlePaid fait converger la commande vers confirmed/paid puis sort le
// stock. Chaque écriture est conditionnelle et rejouable : une notification
// relivrée après un échec partiel reprend là où la première s'était arrêtée.
func (r *Reconciler) settlePaid(ctx context.Context, o *models.Order, txID string) (string, string) {
	confirmed := false
	for i := 0; o.PaymentStatus != models.PaymentPaid; i++ {
		if o.IsTerminal() {
			// payé après annulation : on encaisse la notification mais la
			// commande ne bouge plus, remboursement à traiter manuellement
			log.Printf("⚠️ Paiement %s reçu pour la commande %s déjà %s, remboursement manuel requis",
				txID, o.ID, o.Status)
			return gateway.AckSuccess, "commande close, paiement à rembourser"
		}

		applied, err := r.orders.Transition(ctx, o, store.OrderUpdate{
			Status:        models.StatusConfirmed,
			PaymentStatus: models.PaymentPaid,
			TransactionID: txID,
		})
		if err != nil {
			log.Printf("❌ Confirmation de la commande %s impossible: %v", o.ID, err)
			return gateway.AckInternalError, "erreur interne"
		}
		if applied {
			confirmed = true
			break
		}
		if i >= transitionMaxRetries {
			log.Printf("❌ Trop de conflits de version sur la commande %s", o.ID)
			return gateway.AckInternalError, "erreur interne"
		}
		fresh, err := r.orders.Get(ctx, o.ID)
		if err != nil {
			return gateway.AckInternalError, "erreur interne"
		}
		*o = *fresh
	}

	if err := r.inventory.Commit(ctx, o.ID); err != nil {
		log.Printf("❌ Sortie de stock de la commande %s impossible: %v", o.ID, err)
	}

	if confirmed {
		log.Printf("✅ Commande %s payée (transaction %s)", o.ID, txID)
		if r.OnPaid != nil {
			go r.OnPaid(*o)
		}
	}
	return gateway.AckSuccess, "paiement confirmé"
}

func (r *Reconciler) applyFailure(ctx context.Context, o *models.Order, a *models.PaymentAttempt, cb *gateway.Callback, digest string) (string, string) {
	applied, err := r.payments.ResolveAttempt(ctx, a, models.AttemptFailed, digest, time.Now())
	if err != nil {
		log.Printf("❌ Résolution de la tentative %s impossible: %v", a.ID, err)
		return gateway.AckInternalError, "erreur interne"
	}
	if !applied {
		fresh, err := r.payments.Attempt(ctx, a.OrderID, a.ID)
		if err == nil && fresh.ResponseDigest == digest {
			return gateway.AckSuccess, "déjà traité"
		}
		return gateway.AckAlreadyProcessed, "tentative déjà résolue"
	}

	// meilleur effort : la commande reste payable, le client peut réessayer
	if o.Status == models.StatusPending && o.PaymentStatus == models.PaymentUnpaid {
		if _, err := r.orders.Transition(ctx, o, store.OrderUpdate{
			Status:        models.StatusPending,
			PaymentStatus: models.PaymentFailed,
		}); err != nil {
			log.Printf("⚠️ Marquage échec de paiement de la commande %s impossible: %v", o.ID, err)
		}
	}

	log.Printf("💳 Paiement refusé pour la commande %s (résultat %s)", o.ID, cb.Result)
	return gateway.AckSuccess, "échec enregistré"
}

// InitiateRefund appelle la passerelle pour rembourser une commande livrée et
// payée. Si aucune demande n'est ouverte, elle l'est ici même : l'admin peut
// rembourser en un seul appel. Sans confirmation explicite de la passerelle,
// la commande reste en refund_requested : un timeout n'est jamais un
// remboursement réussi.
func (r *Reconciler) InitiateRefund(ctx context.Context, orderID gocql.UUID) (*models.Order, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NotFound("commande introuvable")
		}
		return nil, Internal(err)
	}

	for i := 0; o.Status == models.StatusDelivered && o.PaymentStatus == models.PaymentPaid; i++ {
		applied, err := r.orders.Transition(ctx, o, store.OrderUpdate{
			Status:        models.StatusRefundRequested,
			PaymentStatus: models.PaymentPaid,
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
		fresh, err := r.orders.Get(ctx, o.ID)
		if err != nil {
			return nil, Internal(err)
		}
		*o = *fresh
	}

	if o.Status != models.StatusRefundRequested || o.PaymentStatus != models.PaymentPaid {
		return nil, Conflict("seule une commande livrée et payée est remboursable")
	}
	if o.TransactionID == "" {
		return nil, Conflict("aucune transaction passerelle, remboursement manuel requis")
	}

	refundID, err := r.gw.Refund(ctx, o.TransactionID, o.TotalPrice)
	if err != nil {
		return nil, GatewayFailure("remboursement non confirmé par la passerelle", err)
	}

	for i := 0; ; i++ {
		applied, err := r.orders.Transition(ctx, o, store.OrderUpdate{
			Status:        models.StatusRefunded,
			PaymentStatus: models.PaymentRefunded,
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
		fresh, err := r.orders.Get(ctx, o.ID)
		if err != nil {
			return nil, Internal(err)
		}
		*o = *fresh
		if o.Status == models.StatusRefunded {
			break
		}
	}

	log.Printf("✅ Commande %s remboursée (remboursement passerelle %s)", o.ID, refundID)
	if r.OnRefunded != nil {
		go r.OnRefunded(*o)
	}
	return o, nil
}

// notificationDigest identifie une notification par son contenu, signature
// comprise : deux livraisons du même message ont le même digest.
func notificationDigest(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}
