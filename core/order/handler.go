package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/createproresume/resume-service/api/background"
	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/config"
	"github.com/createproresume/resume-service/core/discount"
	"github.com/createproresume/resume-service/core/service"
	"github.com/createproresume/resume-service/email"
	"github.com/createproresume/resume-service/upload"
	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

const maxUploadBytes = 16 << 20

// CreateDeps bundles what the order submission touches: pricing reads,
// the discount selection stashed in the session, the blob store for the
// customer's documents, a payment gateway and the mailer.
type CreateDeps struct {
	DB      *sqlx.DB
	Session *scs.SessionManager
	Stripe  *stripecl.API
	Paypal  *paypal.Client

	StripeCfg config.Stripe
	Uploads   *upload.Store
	Mailer    *email.Mailer
	BG        *background.Background
}

// HandleCreate is the order submission: price the selected tier, take the
// customer's documents, fold in the stashed discount and any referral
// code, bind the order to a fresh checkout session and answer with the
// redirect URL.
func HandleCreate(deps CreateDeps) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return weberr.BadRequest(fmt.Errorf("parsing order form: %w", err))
		}

		on := OrderNew{
			FirstName:           strings.TrimSpace(r.FormValue("first_name")),
			LastName:            strings.TrimSpace(r.FormValue("last_name")),
			Email:               validate.NormEmail(r.FormValue("email")),
			Phone:               strings.TrimSpace(r.FormValue("phone")),
			ServiceID:           r.FormValue("service_id"),
			Tier:                r.FormValue("tier"),
			TargetPosition:      strings.TrimSpace(r.FormValue("target_position")),
			Industry:            strings.TrimSpace(r.FormValue("industry")),
			SpecialRequirements: strings.TrimSpace(r.FormValue("special_requirements")),
			ReferralCode:        strings.ToUpper(strings.TrimSpace(r.FormValue("referral_code"))),
			Gateway:             r.FormValue("gateway"),
		}

		if err := validate.Check(on); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		basePrice, err := service.ResolvePrice(ctx, deps.DB, on.ServiceID, on.Tier)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrServiceNotFound), errors.Is(err, service.ErrInactive):
				return weberr.NewError(err, "invalid service selected", http.StatusUnprocessableEntity)
			case errors.Is(err, service.ErrInvalidTier):
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			return err
		}

		svc, err := service.Fetch(ctx, deps.DB, on.ServiceID)
		if err != nil {
			return err
		}

		total := basePrice.Round(2)

		// The discount was validated against the tier price when the
		// customer applied it; validate again at submission in case the
		// code expired or ran out in between.
		var app *discount.Application
		if stash, ok := discount.FromSession(ctx, deps.Session); ok {
			a, err := discount.Validate(ctx, deps.DB, stash.Code, total)
			if err == nil {
				app = &a
				total = a.FinalAmount
			}
		}

		refDiscount, err := referralDiscount(ctx, deps.DB, on.ReferralCode, on.Email, total)
		if err != nil {
			return err
		}
		total = total.Sub(refDiscount)

		now := time.Now().UTC()
		ord := Order{
			ID:                  validate.GenerateID(),
			FirstName:           on.FirstName,
			LastName:            on.LastName,
			Email:               on.Email,
			Phone:               on.Phone,
			ServiceID:           on.ServiceID,
			Tier:                service.Tier(on.Tier),
			TotalAmount:         total,
			Status:              StatusPending,
			PaymentStatus:       PaymentPending,
			TargetPosition:      on.TargetPosition,
			Industry:            on.Industry,
			SpecialRequirements: on.SpecialRequirements,
			ReferralCode:        on.ReferralCode,
			ReferralDiscount:    refDiscount,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if refDiscount.IsZero() {
			ord.ReferralCode = ""
		}

		if ord.UploadedResume, err = saveUpload(r, deps.Uploads, "current_resume", "resume"); err != nil {
			return err
		}
		if ord.UploadedCover, err = saveUpload(r, deps.Uploads, "cover_letter", "cover"); err != nil {
			return err
		}
		if ord.UploadedJobDesc, err = saveUpload(r, deps.Uploads, "job_description", "job"); err != nil {
			return err
		}

		var cs checkoutSession
		switch on.Gateway {
		case "paypal":
			cs, err = paypalCheckout(ctx, deps.Paypal, ord, svc)
		default:
			cs, err = stripeCheckout(deps.Stripe, deps.StripeCfg, ord, svc)
		}
		if err != nil {
			return fmt.Errorf("creating checkout session: %w", err)
		}
		ord.CheckoutSessionID = cs.ID

		if err := prepare(ctx, deps.DB, ord, app); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		info := orderInfo(ord, svc.Name, deps.Mailer.SiteURL)
		deps.BG.Add(func() error {
			subject, body := email.OrderConfirmation(info)
			return deps.Mailer.Send(ord.Email, subject, body)
		})

		resp := struct {
			Order       Order  `json:"order"`
			RedirectURL string `json:"redirectUrl"`
		}{
			Order:       ord,
			RedirectURL: cs.RedirectURL,
		}
		return web.Respond(ctx, w, resp, http.StatusCreated)
	}
}

// saveUpload stores one optional file part and returns its stored name.
func saveUpload(r *http.Request, store *upload.Store, field string, prefix string) (string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", weberr.BadRequest(fmt.Errorf("reading %s upload: %w", field, err))
	}
	defer f.Close()

	name, err := store.Save(f, prefix, hdr.Filename)
	if err != nil {
		if errors.Is(err, upload.ErrBadExtension) {
			return "", weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}
		return "", fmt.Errorf("storing %s upload: %w", field, err)
	}
	return name, nil
}

// HandleTrack answers the customer-facing tracking page: the order plus
// its full audit history, addressed by order id and email.
func HandleTrack(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Query(r, "order_id")
		addr := web.Query(r, "email")
		if id == "" || addr == "" {
			return weberr.BadRequest(errors.New("order_id and email query parameters are required"))
		}
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		ord, err := fetchOwned(ctx, db, id, addr)
		if err != nil {
			return err
		}

		entries, err := FetchTracking(ctx, db, ord.ID)
		if err != nil {
			return err
		}

		resp := struct {
			Order    Order      `json:"order"`
			Tracking []Tracking `json:"tracking"`
		}{
			Order:    ord,
			Tracking: entries,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandlePaymentCancel acknowledges an abandoned checkout attempt. The
// order itself is untouched: the customer can retry payment, only the
// gateway session died.
func HandlePaymentCancel(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		resp := struct {
			OrderID string `json:"orderId,omitempty"`
			Message string `json:"message"`
		}{
			Message: "Payment was cancelled. Your order is still awaiting payment and can be retried.",
		}

		if id := web.Query(r, "order_id"); id != "" {
			if ord, err := Fetch(ctx, db, id); err == nil {
				resp.OrderID = ord.ID
			}
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleDownload streams a completed deliverable back to the customer.
// Deliverables open up once the order completed, never earlier.
func HandleDownload(db *sqlx.DB, store *upload.Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		ord, err := fetchOwned(ctx, db, id, web.Query(r, "email"))
		if err != nil {
			return err
		}

		if ord.Status != StatusCompleted {
			return weberr.NewError(ErrNotReady, ErrNotReady.Error(), http.StatusConflict)
		}

		var name string
		switch kind := web.Param(r, "kind"); kind {
		case "resume":
			name = ord.CompletedResume
		case "cover_letter":
			name = ord.CompletedCover
		default:
			return weberr.BadRequest(fmt.Errorf("unknown file kind %q", kind))
		}

		if name == "" || !store.Exists(name) {
			return weberr.NotFound(ErrFileMissing)
		}

		f, err := store.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()

		return web.RespondFile(ctx, w, name, f)
	}
}

// fetchOwned loads an order and verifies the requester's email matches
// it. A mismatch reads as not-found so order ids cannot be probed.
func fetchOwned(ctx context.Context, db sqlx.ExtContext, id string, addr string) (Order, error) {
	ord, err := Fetch(ctx, db, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, weberr.NotFound(err)
		}
		return Order{}, err
	}

	if validate.NormEmail(addr) != validate.NormEmail(ord.Email) {
		return Order{}, weberr.NotFound(ErrNotOwner)
	}
	return ord, nil
}
