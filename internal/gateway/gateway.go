// Package gateway parle le protocole de la passerelle de paiement :
// URL de redirection signée côté marchand, vérification de la signature
// HMAC des retours (navigateur et serveur-à-serveur), appel de remboursement.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Codes résultat de la passerelle
const (
	ResultSuccess = "00"
)

// Codes d'acquittement renvoyés à la passerelle sur le canal de notification.
// Tout autre code que AckSuccess déclenche une re-livraison côté passerelle.
const (
	AckSuccess          = "00"
	AckOrderUnknown     = "01"
	AckAlreadyProcessed = "02"
	AckAmountMismatch   = "04"
	AckInvalidSignature = "97"
	AckInternalError    = "99"
)

// Champ portant la signature dans les paramètres de callback
const SignatureParam = "signature"

// Gateway est le contrat consommé par la réconciliation de paiement.
// L'implémentation HTTP réelle est Client ; les tests utilisent un faux.
type Gateway interface {
	BuildPaymentURL(orderID, attemptID string, amount int64, ts time.Time) (string, error)
	VerifyCallback(params map[string]string) bool
	// Refund appelle l'API de remboursement avec la référence de transaction
	// d'origine. Timeout ou erreur = échec, jamais interprété comme succès.
	Refund(ctx context.Context, transactionID string, amount int64) (string, error)
}

// Callback est le contenu vérifié d'un retour passerelle (les deux canaux
// portent les mêmes champs).
type Callback struct {
	OrderID       string
	AttemptID     string
	TransactionID string
	Amount        int64
	Result        string
}

// ParseCallback extrait les champs métier des paramètres. À n'appeler
// qu'après VerifyCallback.
func ParseCallback(params map[string]string) (*Callback, error) {
	amount, err := strconv.ParseInt(params["amount"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("montant illisible: %v", err)
	}
	cb := &Callback{
		OrderID:       params["order_id"],
		AttemptID:     params["attempt_id"],
		TransactionID: params["transaction_id"],
		Amount:        amount,
		Result:        params["result"],
	}
	if cb.OrderID == "" || cb.AttemptID == "" || cb.TransactionID == "" {
		return nil, fmt.Errorf("paramètres de callback incomplets")
	}
	return cb, nil
}

// Sign calcule la signature hex HMAC-SHA512 sur les paires k=v de tous les
// paramètres (hors signature), triées par clé et jointes par &.
func Sign(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignatureParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compare la signature reçue à celle recalculée, en temps constant.
func Verify(secret string, params map[string]string) bool {
	received := params[SignatureParam]
	if received == "" {
		return false
	}
	expected := Sign(secret, params)
	return hmac.Equal([]byte(received), []byte(expected))
}

// Config charge les réglages passerelle depuis l'environnement.
type Config struct {
	MerchantID string
	Secret     string
	PayURL     string
	RefundURL  string
	Currency   string
}

func LoadConfig() Config {
	cfg := Config{
		MerchantID: os.Getenv("GATEWAY_MERCHANT_ID"),
		Secret:     os.Getenv("GATEWAY_SECRET"),
		PayURL:     os.Getenv("GATEWAY_PAY_URL"),
		RefundURL:  os.Getenv("GATEWAY_REFUND_URL"),
		Currency:   os.Getenv("GATEWAY_CURRENCY"),
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	return cfg
}

// buildParams assemble les paramètres signés de l'URL de paiement.
func buildParams(cfg Config, orderID, attemptID string, amount int64, ts time.Time) map[string]string {
	params := map[string]string{
		"merchant_id": cfg.MerchantID,
		"order_id":    orderID,
		"attempt_id":  attemptID,
		"amount":      strconv.FormatInt(amount, 10),
		"currency":    cfg.Currency,
		"timestamp":   strconv.FormatInt(ts.Unix(), 10),
	}
	params[SignatureParam] = Sign(cfg.Secret, params)
	return params
}

func encodeURL(base string, params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return base + "?" + values.Encode()
}
