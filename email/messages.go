package email

import (
	"fmt"
	"strings"
	"time"
)

// OrderInfo carries the order fields the transactional messages need,
// kept as plain strings so this package stays free of core imports.
type OrderInfo struct {
	ID           string
	CustomerName string
	ServiceName  string
	Tier         string
	Amount       string
	Status       string
	TrackURL     string
	Delivery     time.Time
}

type ReferralInfo struct {
	ReferrerName  string
	ReferrerEmail string
	ReferredName  string
	ReferredEmail string
	Code          string
	Reward        string
	OrderURL      string
}

func OrderConfirmation(o OrderInfo) (subject string, body string) {
	subject = fmt.Sprintf("Order Confirmation #%s - %s", shortID(o.ID), o.ServiceName)

	body = fmt.Sprintf(`Dear %s,

Thank you for choosing CreateProResume! We have received your order for %s (%s package).

Order Details:
- Order ID: %s
- Service: %s - %s
- Total Amount: $%s
- Estimated Delivery: %s

Your order is currently pending payment. Once payment is completed, our professional writers will begin working on your resume.

You can track your order progress at: %s

Best regards,
The CreateProResume Team
`, o.CustomerName, o.ServiceName, titleTier(o.Tier), o.ID, o.ServiceName, titleTier(o.Tier), o.Amount, o.Delivery.Format("January 2, 2006"), o.TrackURL)

	return subject, body
}

func PaymentConfirmation(o OrderInfo) (subject string, body string) {
	subject = fmt.Sprintf("Payment Received #%s - CreateProResume", shortID(o.ID))

	body = fmt.Sprintf(`Dear %s,

We have received your payment of $%s for order #%s. Our writers are starting on your documents now.

You can follow progress at: %s

Best regards,
The CreateProResume Team
`, o.CustomerName, o.Amount, o.ID, o.TrackURL)

	return subject, body
}

func StatusUpdate(o OrderInfo) (subject string, body string) {
	subject = fmt.Sprintf("Order Status Update - CreateProResume (#%s)", shortID(o.ID))

	statusMsg := "We'll continue to keep you updated on your order progress."
	if o.Status == "completed" {
		statusMsg = "Your completed documents are now ready for download!"
	}

	body = fmt.Sprintf(`Dear %s,

Your order #%s is now %s.

%s

Track your order: %s

Best regards,
The CreateProResume Team
`, o.CustomerName, o.ID, strings.ReplaceAll(o.Status, "_", " "), statusMsg, o.TrackURL)

	return subject, body
}

// ReferralInvite is the message sent to the referred person.
func ReferralInvite(r ReferralInfo) (subject string, body string) {
	subject = fmt.Sprintf("%s referred you to CreateProResume - Get $%s Off!", r.ReferrerName, r.Reward)

	name := r.ReferredName
	if name == "" {
		name = "there"
	}

	body = fmt.Sprintf(`Hi %s!

Great news! %s has referred you to CreateProResume and you'll receive $%s off your first order!

Use referral code: %s

Ready to get started? Visit: %s

This offer is valid for 30 days from today.

Best regards,
The CreateProResume Team
`, name, r.ReferrerName, r.Reward, r.Code, r.OrderURL)

	return subject, body
}

// ReferralThanks is the message sent back to the referrer.
func ReferralThanks(r ReferralInfo) (subject string, body string) {
	subject = "Thank you for referring a friend to CreateProResume!"

	body = fmt.Sprintf(`Hi %s!

Thank you for referring %s to CreateProResume!

We've sent them a special offer. When they complete their order using referral code %s, you'll receive a credit towards your next order.

Best regards,
The CreateProResume Team
`, r.ReferrerName, r.ReferredName, r.Code)

	return subject, body
}

func titleTier(tier string) string {
	if tier == "" {
		return ""
	}
	return strings.ToUpper(tier[:1]) + tier[1:]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
