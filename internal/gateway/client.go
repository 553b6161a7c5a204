package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client est l'implémentation HTTP de Gateway. La passerelle n'a pas de SDK :
// on construit l'URL signée et on parle son API REST directement.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func NewClientFromEnv() *Client {
	return NewClient(LoadConfig())
}

func (c *Client) BuildPaymentURL(orderID, attemptID string, amount int64, ts time.Time) (string, error) {
	if c.cfg.PayURL == "" || c.cfg.Secret == "" {
		return "", fmt.Errorf("passerelle non configurée (GATEWAY_PAY_URL / GATEWAY_SECRET)")
	}
	params := buildParams(c.cfg, orderID, attemptID, amount, ts)
	return encodeURL(c.cfg.PayURL, params), nil
}

func (c *Client) VerifyCallback(params map[string]string) bool {
	return Verify(c.cfg.Secret, params)
}

type refundRequest struct {
	MerchantID    string `json:"merchant_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Signature     string `json:"signature"`
}

type refundResponse struct {
	Result   string `json:"result"`
	RefundID string `json:"refund_id"`
	Message  string `json:"message"`
}

// Refund appelle l'API de remboursement. Un timeout ou une réponse non-"00"
// est une erreur : on ne suppose jamais un remboursement réussi sans
// confirmation explicite de la passerelle.
func (c *Client) Refund(ctx context.Context, transactionID string, amount int64) (string, error) {
	if c.cfg.RefundURL == "" {
		return "", fmt.Errorf("passerelle non configurée (GATEWAY_REFUND_URL)")
	}

	req := refundRequest{
		MerchantID:    c.cfg.MerchantID,
		TransactionID: transactionID,
		Amount:        amount,
	}
	req.Signature = Sign(c.cfg.Secret, map[string]string{
		"merchant_id":    req.MerchantID,
		"transaction_id": req.TransactionID,
		"amount":         strconv.FormatInt(req.Amount, 10),
	})

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RefundURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("appel remboursement passerelle: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}

	var parsed refundResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("réponse remboursement illisible: %v", err)
	}
	if parsed.Result != ResultSuccess {
		return "", fmt.Errorf("remboursement refusé par la passerelle (%s: %s)", parsed.Result, parsed.Message)
	}
	return parsed.RefundID, nil
}
