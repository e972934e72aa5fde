package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/createproresume/resume-service/api/background"
	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/config"
	"github.com/createproresume/resume-service/core/service"
	"github.com/createproresume/resume-service/email"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

// checkoutSession is what a gateway hands back for a pending payment
// attempt: an opaque id to reconcile the asynchronous outcome against,
// and where to send the customer.
type checkoutSession struct {
	ID          string
	RedirectURL string
}

func stripeCheckout(strp *stripecl.API, cfg config.Stripe, ord Order, svc service.Service) (checkoutSession, error) {
	cents := ord.TotalAmount.Mul(centFactor).IntPart()

	params := &stripe.CheckoutSessionParams{
		SuccessURL:        stripe.String(cfg.SuccessURL),
		CancelURL:         stripe.String(cfg.CancelURL + "?order_id=" + ord.ID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(ord.ID),
		CustomerEmail:     stripe.String(ord.Email),

		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),

			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String("usd"),
				UnitAmount: stripe.Int64(cents),

				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(fmt.Sprintf("%s - %s", svc.Name, ord.Tier)),
					Description: stripe.String("Resume writing service for " + ord.FullName()),
				},
			},
		}},
	}

	s, err := strp.CheckoutSessions.New(params)
	if err != nil {
		return checkoutSession{}, fmt.Errorf("creating stripe session: %w", err)
	}

	return checkoutSession{ID: s.ID, RedirectURL: s.URL}, nil
}

func paypalCheckout(ctx context.Context, pp *paypal.Client, ord Order, svc service.Service) (checkoutSession, error) {
	units := []paypal.PurchaseUnitRequest{{
		Items: []paypal.Item{{
			Quantity:    "1",
			Name:        fmt.Sprintf("%s - %s", svc.Name, ord.Tier),
			Description: "Resume writing service for " + ord.FullName(),

			UnitAmount: &paypal.Money{
				Currency: "USD",
				Value:    ord.TotalAmount.StringFixed(2),
			},
		}},

		Amount: &paypal.PurchaseUnitAmount{
			Currency: "USD",
			Value:    ord.TotalAmount.StringFixed(2),

			Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
				Currency: "USD",
				Value:    ord.TotalAmount.StringFixed(2),
			}},
		},
	}}

	created, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
	if err != nil {
		return checkoutSession{}, fmt.Errorf("creating paypal order: %w", err)
	}

	cs := checkoutSession{ID: created.ID}
	for _, link := range created.Links {
		if link.Rel == "approve" {
			cs.RedirectURL = link.Href
		}
	}
	return cs, nil
}

// HandleStripeCapture is the gateway's success signal: a signed webhook
// carrying the completed checkout session.
func HandleStripeCapture(db *sqlx.DB, cfg config.Stripe, mailer *email.Mailer, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := webhook.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if event.Type != "checkout.session.completed" {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		var session stripe.CheckoutSession
		if err = json.Unmarshal(event.Data.Raw, &session); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe event: %w", err))
		}

		if session.Mode != stripe.CheckoutSessionModePayment {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		ord, err := fulfill(ctx, db, session.ID)
		if err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		notifyPayment(ctx, db, ord, mailer, bg)
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandlePaypalCapture captures an approved PayPal order and runs the same
// payment-confirmed transition as the Stripe webhook.
func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client, mailer *email.Mailer, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		providerID := web.Param(r, "id")

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", providerID, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		ord, err := fulfill(ctx, db, providerID)
		if err != nil {
			return fmt.Errorf("the order was payed but its fulfillment failed: %w", err)
		}

		notifyPayment(ctx, db, ord, mailer, bg)
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// notifyPayment queues the payment-confirmation email. Best-effort: a
// failing mailer is logged by the background runner and never touches the
// already-committed transition.
func notifyPayment(ctx context.Context, db *sqlx.DB, ord Order, mailer *email.Mailer, bg *background.Background) {
	svcName := string(ord.Tier)
	if svc, err := service.Fetch(ctx, db, ord.ServiceID); err == nil {
		svcName = svc.Name
	}

	info := orderInfo(ord, svcName, mailer.SiteURL)
	bg.Add(func() error {
		subject, body := email.PaymentConfirmation(info)
		return mailer.Send(ord.Email, subject, body)
	})
}

func orderInfo(ord Order, svcName string, siteURL string) email.OrderInfo {
	return email.OrderInfo{
		ID:           ord.ID,
		CustomerName: ord.FullName(),
		ServiceName:  svcName,
		Tier:         string(ord.Tier),
		Amount:       ord.TotalAmount.StringFixed(2),
		Status:       string(ord.Status),
		TrackURL:     fmt.Sprintf("%s/track-order?order_id=%s&email=%s", siteURL, ord.ID, ord.Email),
		Delivery:     EstimatedDelivery(ord.Tier, ord.CreatedAt),
	}
}
