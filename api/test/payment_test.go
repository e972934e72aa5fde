package test

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/createproresume/resume-service/api/web"
	"github.com/gorilla/mux"
	"github.com/plutov/paypal/v4"
	mock "github.com/stripe/stripe-mock/param"
)

type mockPaypal struct {
	// expectedTotal is the amount, formatted with two decimals, the next
	// checkout must carry.
	expectedTotal string
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		web.Respond(context.Background(), w, tok, 200)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if len(pu.Units) != 1 || len(pu.Units[0].Items) != 1 {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		if pu.Units[0].Amount.Value != m.expectedTotal {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		randID := fmt.Sprintf("paypal-%d", rand.Intn(300))
		ord := paypal.Order{
			ID: randID,
			Links: []paypal.Link{
				{Rel: "approve", Href: "https://paypal.test/approve/" + randID},
			},
		}
		web.Respond(context.Background(), w, ord, 200)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ord := paypal.Order{Status: "COMPLETED"}
		web.Respond(context.Background(), w, ord, 200)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}

type mockStripe struct {
	// expectedCents is the unit amount, in cents, the next checkout
	// session must carry.
	expectedCents int64
}

func (m *mockStripe) handle() http.Handler {
	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)
		lines := params["line_items"].(map[string]any)

		n := 0
		var tot int64
		for _, li := range lines {
			it := li.(map[string]any)

			if it["quantity"] != "1" {
				web.Respond(context.Background(), w, nil, 400)
				return
			}

			pd := it["price_data"].(map[string]any)
			s := pd["unit_amount"].(string)
			amount, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				web.Respond(context.Background(), w, err, 400)
				return
			}

			tot += amount
			n += 1
		}

		if n != 1 || tot != m.expectedCents {
			web.Respond(context.Background(), w, nil, 400)
			return
		}

		randID := fmt.Sprintf("cs-test-%d", rand.Intn(300))
		sess := map[string]any{
			"id":   randID,
			"url":  "https://stripe.test/pay/" + randID,
			"mode": "payment",
		}
		web.Respond(context.Background(), w, sess, 201)
	})

	r := mux.NewRouter()
	r.Handle("/v1/checkout/sessions", checkout).Methods("POST")
	return r
}
