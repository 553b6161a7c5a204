package utils

import (
	"fmt"
	"log"

	"veyra_back_end/internal/models"
)

// SendOrderStatusEmail envoie un email de notification de changement de statut
func SendOrderStatusEmail(order models.Order, newStatus string) error {
	if order.CustomerEmail == "" {
		return nil
	}

	subject := getStatusEmailSubject(newStatus)
	html := generateStatusEmailHTML(order, newStatus)

	err := SendConfirmationEmail(order.CustomerEmail, subject, html, nil)
	if err != nil {
		log.Printf("❌ Erreur envoi email statut: %v", err)
		return err
	}

	log.Printf("📧 Email de statut envoyé: %s → %s", newStatus, order.CustomerEmail)
	return nil
}

func getStatusEmailSubject(status string) string {
	switch status {
	case models.StatusConfirmed:
		return "✅ Paiement confirmé - Veyra"
	case models.StatusShipped:
		return "📦 Votre commande a été expédiée - Veyra"
	case models.StatusDelivered:
		return "🎉 Votre commande a été livrée - Veyra"
	case models.StatusCancelled:
		return "❌ Commande annulée - Veyra"
	case models.StatusRefunded:
		return "💰 Remboursement effectué - Veyra"
	default:
		return "📋 Mise à jour de votre commande - Veyra"
	}
}

func generateStatusEmailHTML(order models.Order, status string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Mise à jour de commande</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 30px; border-radius: 12px;">
		<h2 style="color: %s;">%s %s</h2>
		<p>Bonjour %s,</p>
		<p>%s</p>
		<p style="color: #555;">
			Commande <strong>%s</strong><br>
			Montant: <strong>%.2f€</strong>
		</p>
		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe Veyra</strong>
		</p>
	</div>
</body>
</html>`,
		getStatusColor(status), getStatusIcon(status), getStatusEmailSubject(status),
		order.Address.FullName, getStatusMessage(status),
		order.ID.String(), float64(order.TotalPrice)/100)
}

func getStatusMessage(status string) string {
	switch status {
	case models.StatusConfirmed:
		return "Votre paiement a bien été reçu, votre commande est confirmée et passe en préparation."
	case models.StatusShipped:
		return "Votre commande vient d'être remise au transporteur."
	case models.StatusDelivered:
		return "Votre commande a été livrée. Merci pour votre confiance !"
	case models.StatusCancelled:
		return "Votre commande a été annulée. Si un code promo avait été utilisé, il est de nouveau disponible."
	case models.StatusRefunded:
		return "Votre remboursement a été effectué. Le montant apparaîtra sur votre compte sous quelques jours."
	default:
		return "Le statut de votre commande a été mis à jour."
	}
}

func getStatusIcon(status string) string {
	switch status {
	case models.StatusConfirmed:
		return "✅"
	case models.StatusShipped:
		return "📦"
	case models.StatusDelivered:
		return "🎉"
	case models.StatusCancelled:
		return "❌"
	case models.StatusRefunded:
		return "💰"
	default:
		return "📋"
	}
}

func getStatusColor(status string) string {
	switch status {
	case models.StatusConfirmed, models.StatusDelivered:
		return "#2e7d32"
	case models.StatusCancelled:
		return "#c62828"
	case models.StatusRefunded:
		return "#1565c0"
	default:
		return "#333333"
	}
}

// SendRefundRequestEmail confirme au client l'ouverture de sa demande de remboursement
func SendRefundRequestEmail(order models.Order) error {
	if order.CustomerEmail == "" {
		return nil
	}

	html := fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<body style="font-family: Arial, sans-serif; background-color: #f5f5f5; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 30px; border-radius: 12px;">
		<h2 style="color: #1565c0;">💰 Demande de remboursement reçue</h2>
		<p>Bonjour %s,</p>
		<p>Nous avons bien reçu votre demande de remboursement pour la commande <strong>%s</strong>
		d'un montant de <strong>%.2f€</strong>.</p>
		<p>Notre équipe la traite sous 48h ouvrées.</p>
		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe Veyra</strong>
		</p>
	</div>
</body>
</html>`, order.Address.FullName, order.ID.String(), float64(order.TotalPrice)/100)

	return SendConfirmationEmail(order.CustomerEmail, "💰 Demande de remboursement reçue - Veyra", html, nil)
}
