package gateway

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// PaymentQR encode l'URL de paiement signée en QR, en base64 prêt à mettre
// dans <img src="...">.
func PaymentQR(paymentURL string) (string, error) {
	png, err := qrcode.Encode(paymentURL, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
