package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/createproresume/resume-service/api/background"
	"github.com/createproresume/resume-service/api/middleware"
	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/config"
	"github.com/createproresume/resume-service/core/auth"
	"github.com/createproresume/resume-service/core/discount"
	"github.com/createproresume/resume-service/core/order"
	"github.com/createproresume/resume-service/core/referral"
	"github.com/createproresume/resume-service/core/service"
	"github.com/createproresume/resume-service/email"
	"github.com/createproresume/resume-service/rate"
	"github.com/createproresume/resume-service/upload"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin string
	Log        logrus.FieldLogger
	DB         *sqlx.DB
	Session    *scs.SessionManager
	Mailer     *email.Mailer
	Background *background.Background
	Paypal     *paypal.Client
	Stripe     *stripecl.API
	StripeCfg  config.Stripe
	Providers  map[string]auth.Provider

	LoginRedirectURL string

	Uploads   *upload.Store
	Completed *upload.Store

	OrderLimiter    *rate.Limiter
	DiscountLimiter *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	admin := auth.Admin(cfg.Session)

	orderLimit := middleware.RateLimit(cfg.OrderLimiter)
	discountLimit := middleware.RateLimit(cfg.DiscountLimiter)

	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodGet, "/services", service.HandleList(cfg.DB))
	a.Handle(http.MethodGet, "/services/{id}/pricing", service.HandlePricing(cfg.DB))
	a.Handle(http.MethodPost, "/services", service.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/services/{id}", service.HandleUpdate(cfg.DB), admin)

	a.Handle(http.MethodPost, "/discounts/apply", discount.HandleApply(cfg.DB, cfg.Session), discountLimit)
	a.Handle(http.MethodGet, "/discounts", discount.HandleList(cfg.DB), admin)
	a.Handle(http.MethodPost, "/discounts", discount.HandleCreate(cfg.DB), admin)

	a.Handle(http.MethodPost, "/referrals", referral.HandleCreate(cfg.DB, cfg.Mailer, cfg.Background))
	a.Handle(http.MethodGet, "/referrals/balance", referral.HandleBalance(cfg.DB))
	a.Handle(http.MethodPut, "/referrals/rewards/{id}/paid", referral.HandleMarkRewardPaid(cfg.DB), admin)

	deps := order.CreateDeps{
		DB:        cfg.DB,
		Session:   cfg.Session,
		Stripe:    cfg.Stripe,
		Paypal:    cfg.Paypal,
		StripeCfg: cfg.StripeCfg,
		Uploads:   cfg.Uploads,
		Mailer:    cfg.Mailer,
		BG:        cfg.Background,
	}
	a.Handle(http.MethodPost, "/orders", order.HandleCreate(deps), orderLimit)
	a.Handle(http.MethodGet, "/orders/track", order.HandleTrack(cfg.DB))
	a.Handle(http.MethodGet, "/orders/payment-cancel", order.HandlePaymentCancel(cfg.DB))
	a.Handle(http.MethodGet, "/orders/{id}/files/{kind}", order.HandleDownload(cfg.DB, cfg.Completed))

	a.Handle(http.MethodPost, "/orders/stripe/capture", order.HandleStripeCapture(cfg.DB, cfg.StripeCfg, cfg.Mailer, cfg.Background))
	a.Handle(http.MethodPost, "/orders/paypal/{id}/capture", order.HandlePaypalCapture(cfg.DB, cfg.Paypal, cfg.Mailer, cfg.Background))

	a.Handle(http.MethodGet, "/admin/orders", order.HandleList(cfg.DB), admin)
	a.Handle(http.MethodGet, "/admin/orders/{id}", order.HandleShow(cfg.DB), admin)
	a.Handle(http.MethodPut, "/admin/orders/{id}/status", order.HandleSetStatus(cfg.DB, cfg.Mailer, cfg.Background), admin)
	a.Handle(http.MethodPost, "/admin/orders/{id}/files/{kind}", order.HandleUploadDeliverable(cfg.DB, cfg.Completed), admin)
	a.Handle(http.MethodGet, "/admin/orders/{id}/uploads/{kind}", order.HandleDownloadUpload(cfg.DB, cfg.Uploads), admin)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
