package utils

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/wneessen/go-mail"

	"veyra_back_end/internal/models"
)

func SendConfirmationEmail(to, subject, htmlBody string, pdfAttachment []byte) error {
	msg := mail.NewMsg()

	if err := msg.From(fromAddress()); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if pdfAttachment != nil {
		msg.AttachReader("facture_veyra.pdf", bytes.NewReader(pdfAttachment))
	}

	client, err := mail.NewClient(os.Getenv("SMTP_HOST"),
		mail.WithPort(587),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSend(msg)
}

func fromAddress() string {
	if from := os.Getenv("SMTP_FROM"); from != "" {
		return from
	}
	return "noreply@veyra.shop"
}

// GenerateOrderConfirmationHTML génère le HTML de confirmation de commande
func GenerateOrderConfirmationHTML(order models.Order) string {
	itemsHTML := ""
	for _, item := range order.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td>%s</td>
				<td>%d</td>
				<td>%.2f€</td>
				<td>%.2f€</td>
			</tr>`, item.Name, item.Quantity,
			float64(item.UnitPrice)/100,
			float64(item.UnitPrice*int64(item.Quantity))/100)
	}

	discountRow := ""
	if order.Discount > 0 {
		discountRow = fmt.Sprintf(`
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right;">Remise (%s):</td>
					<td style="padding: 10px; color: #2e7d32;">-%.2f€</td>
				</tr>`, order.VoucherCode, float64(order.Discount)/100)
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Confirmation de commande</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Confirmation de votre commande</h2>
		<p>Bonjour %s,</p>
		<p>Votre commande <strong>%s</strong> a été confirmée avec succès.</p>

		<h3>Détails de la commande</h3>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Article</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Prix unitaire</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right;">Sous-total:</td>
					<td style="padding: 10px;">%.2f€</td>
				</tr>
				%s
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right;">Livraison:</td>
					<td style="padding: 10px;">%.2f€</td>
				</tr>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
					<td style="padding: 10px; font-weight: bold;">%.2f€</td>
				</tr>
			</tfoot>
		</table>

		<h3>Adresse de livraison</h3>
		<p style="color: #555;">
			%s<br>
			%s<br>
			%s %s<br>
			%s
		</p>

		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe Veyra</strong>
		</p>
	</div>
</body>
</html>`,
		order.Address.FullName, order.ID.String(), itemsHTML,
		float64(order.Subtotal)/100, discountRow,
		float64(order.ShippingFee)/100, float64(order.TotalPrice)/100,
		order.Address.FullName, order.Address.Line1,
		order.Address.PostalCode, order.Address.City, order.Address.Country)
}

// GenerateInvoicePDF génère le PDF de facture de la commande
func GenerateInvoicePDF(order models.Order) ([]byte, error) {
	orderID := order.ID.String()
	frontURL := GetFrontendInvoiceBaseURL()

	// QR SEPA pour le virement de référence
	iban := os.Getenv("COMPANY_IBAN")
	if iban == "" {
		iban = "BE12345678901234"
	}
	bic := os.Getenv("COMPANY_BIC")
	if bic == "" {
		bic = "KREDBEBB"
	}
	companyName := os.Getenv("COMPANY_NAME")
	if companyName == "" {
		companyName = "Veyra SRL"
	}
	ref := fmt.Sprintf("FACT-%s", orderID)

	qrBase64, err := GenerateSepaQR(iban, bic, companyName, ref, float64(order.TotalPrice)/100)
	if err != nil {
		return nil, fmt.Errorf("erreur génération QR: %v", err)
	}

	return RenderInvoicePDF(frontURL, orderID, qrBase64)
}
