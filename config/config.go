package config

import "time"

type Config struct {
	Web     Web
	DB      DB
	Email   Email
	Stripe  Stripe
	Paypal  Paypal
	Oauth   Oauth
	Cors    Cors
	Uploads Uploads
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:resume"`
	DisableTLS bool   `conf:"default:true"`
}

type Email struct {
	Address  string `conf:"default:orders@createproresume.com"`
	Password string `conf:"mask"`
	Host     string `conf:"default:localhost"`
	Port     string `conf:"default:25"`

	// Base URL customers use to reach the shop, embedded in emails.
	SiteURL string `conf:"default:http://localhost:3000"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/payment-success"`
	CancelURL     string `conf:"default:http://localhost:3000/payment-cancel"`
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string
	RedirectURL string
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000/admin"`
	Google           OauthProvider
}

type Cors struct {
	Origin string
}

type Uploads struct {
	// Customer-submitted source documents.
	Dir string `conf:"default:uploads"`

	// Deliverables uploaded by the admin during fulfillment.
	CompletedDir string `conf:"default:uploads/completed"`
}
