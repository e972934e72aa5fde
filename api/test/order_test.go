package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/createproresume/resume-service/core/discount"
	"github.com/createproresume/resume-service/core/order"
	"github.com/createproresume/resume-service/core/referral"
	"github.com/createproresume/resume-service/core/service"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

type orderTest struct {
	*TestEnv
}

type orderResponse struct {
	Order       order.Order `json:"order"`
	RedirectURL string      `json:"redirectUrl"`
}

type trackResponse struct {
	Order    order.Order      `json:"order"`
	Tracking []order.Tracking `json:"tracking"`
}

func TestOrder(t *testing.T) {
	env, err := NewTestEnv(t, "order_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	ot := &orderTest{env}

	svc := ot.seedCatalog(t)

	// A discounted stripe order: 199.00 standard minus 10% is 179.10.
	ot.applyDiscountOK(t, "WELCOME10", svc.ID, "standard")

	ot.Stripe.expectedCents = 17910
	resp := ot.submitOrderOK(t, svc.ID, "standard", "stripe", "", "casey@example.com")

	if !resp.Order.TotalAmount.Equal(decimal.RequireFromString("179.10")) {
		t.Fatalf("expected total 179.10, got %s", resp.Order.TotalAmount)
	}
	if resp.Order.Status != order.StatusPending {
		t.Fatalf("expected a fresh order to be pending, got %s", resp.Order.Status)
	}

	// While unpaid, deliverables are locked.
	ot.downloadFails(t, resp.Order, http.StatusConflict)

	// The webhook confirms the payment and the order moves on.
	ot.captureStripe(t, path.Base(resp.RedirectURL))

	tracked := ot.trackOK(t, resp.Order.ID, resp.Order.Email)
	if tracked.Order.PaymentStatus != order.PaymentPaid {
		t.Fatalf("expected order to be paid, got %s", tracked.Order.PaymentStatus)
	}
	if tracked.Order.Status != order.StatusInProgress {
		t.Fatalf("expected order to be in_progress, got %s", tracked.Order.Status)
	}
	if len(tracked.Tracking) != 2 {
		t.Fatalf("expected 2 tracking entries, got %d", len(tracked.Tracking))
	}

	// A second webhook delivery for the same session changes nothing.
	ot.captureStripe(t, path.Base(resp.RedirectURL))
	tracked = ot.trackOK(t, resp.Order.ID, resp.Order.Email)
	if len(tracked.Tracking) != 2 {
		t.Fatalf("redelivered webhook added a tracking entry: got %d", len(tracked.Tracking))
	}

	// The one-use code is spent now.
	ot.applyDiscountFails(t, "WELCOME10", svc.ID, "standard")

	// Probing someone else's order reads as not-found.
	ot.trackFails(t, resp.Order.ID, "stranger@example.com", http.StatusNotFound)

	ot.testAdminFulfillment(t, resp.Order)
	ot.testReferralOrder(t, svc)
	ot.testDirectCompletion(t, svc)
	ot.testCancelledThenPaid(t, svc)
}

// seedCatalog logs in as admin and creates the service and discount code
// the scenarios run against.
func (ot *orderTest) seedCatalog(t *testing.T) service.Service {
	if err := Login(ot.TestEnv); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := Logout(ot.TestEnv); err != nil {
			t.Fatal(err)
		}
	}()

	body := `{
		"name": "Professional Resume",
		"description": "A professionally written resume",
		"priceBasic": "99.00",
		"priceStandard": "199.00",
		"pricePremium": "299.00",
		"featuresBasic": "1 page resume, 2 revisions"
	}`

	var svc service.Service
	ot.postJSON(t, "/services", body, http.StatusCreated, &svc)

	code := fmt.Sprintf(`{
		"code": "welcome10",
		"discountType": "percentage",
		"value": "10",
		"maxUses": 1,
		"validUntil": %q
	}`, time.Now().UTC().Add(24*time.Hour).Format(time.RFC3339))

	var dc discount.Code
	ot.postJSON(t, "/discounts", code, http.StatusCreated, &dc)

	if dc.Code != "WELCOME10" {
		t.Fatalf("expected stored code to be uppercased, got %q", dc.Code)
	}
	return svc
}

func (ot *orderTest) testAdminFulfillment(t *testing.T, ord order.Order) {
	if err := Login(ot.TestEnv); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := Logout(ot.TestEnv); err != nil {
			t.Fatal(err)
		}
	}()

	// Attach the finished resume, then complete the order.
	ot.uploadDeliverableOK(t, ord.ID, "resume")

	var updated order.Order
	ot.putJSON(t, "/admin/orders/"+ord.ID+"/status", `{"status": "completed"}`, http.StatusOK, &updated)
	if updated.Status != order.StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	var shown trackResponse
	ot.getJSON(t, "/admin/orders/"+ord.ID, http.StatusOK, &shown)
	entries := len(shown.Tracking)

	// Same-status update is a no-op: acknowledged, nothing written.
	ot.putJSON(t, "/admin/orders/"+ord.ID+"/status", `{"status": "completed"}`, http.StatusOK, nil)
	ot.getJSON(t, "/admin/orders/"+ord.ID, http.StatusOK, &shown)
	if len(shown.Tracking) != entries {
		t.Fatalf("same-status update wrote a tracking entry: %d -> %d", entries, len(shown.Tracking))
	}

	// Completed is terminal.
	ot.putJSON(t, "/admin/orders/"+ord.ID+"/status", `{"status": "pending"}`, http.StatusConflict, nil)

	var listing struct {
		Orders []order.Order `json:"orders"`
		Stats  order.Stats   `json:"stats"`
	}
	ot.getJSON(t, "/admin/orders", http.StatusOK, &listing)
	if listing.Stats.CompletedOrders != 1 {
		t.Fatalf("expected 1 completed order in stats, got %d", listing.Stats.CompletedOrders)
	}
	if !listing.Stats.TotalRevenue.Equal(decimal.RequireFromString("179.10")) {
		t.Fatalf("expected revenue 179.10, got %s", listing.Stats.TotalRevenue)
	}

	// The customer can fetch the deliverable now.
	w := ot.get(t, "/orders/"+ord.ID+"/files/resume?email="+url.QueryEscape(ord.Email))
	defer w.Body.Close()
	if w.StatusCode != http.StatusOK {
		t.Fatalf("downloading deliverable: status code %s", w.Status)
	}
	if ct := w.Header.Get("Content-Disposition"); !strings.Contains(ct, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", ct)
	}
}

// testReferralOrder runs a paypal order carrying a referral code and
// checks the referrer's balance after the payment confirms.
func (ot *orderTest) testReferralOrder(t *testing.T, svc service.Service) {
	var ref referral.Referral
	ot.postJSON(t, "/referrals", `{
		"referrerEmail": "referrer@example.com",
		"referrerName": "Reese Referrer",
		"referredEmail": "friend@example.com",
		"referredName": "Frank Friend"
	}`, http.StatusCreated, &ref)

	if len(ref.Code) != 8 {
		t.Fatalf("expected an 8 character referral code, got %q", ref.Code)
	}

	// Referring the same person twice is rejected.
	ot.postJSON(t, "/referrals", `{
		"referrerEmail": "referrer@example.com",
		"referrerName": "Reese Referrer",
		"referredEmail": "friend@example.com"
	}`, http.StatusConflict, nil)

	// 299.00 premium minus the 25.00 referral reward.
	ot.Paypal.expectedTotal = "274.00"
	resp := ot.submitOrderOK(t, svc.ID, "premium", "paypal", ref.Code, "friend@example.com")

	if !resp.Order.TotalAmount.Equal(decimal.RequireFromString("274.00")) {
		t.Fatalf("expected total 274.00, got %s", resp.Order.TotalAmount)
	}

	ot.capturePaypal(t, path.Base(resp.RedirectURL))

	// Half of the 25.00 the friend saved.
	var balance struct {
		Email   string `json:"email"`
		Balance string `json:"balance"`
	}
	ot.getJSON(t, "/referrals/balance?email=referrer@example.com", http.StatusOK, &balance)
	if balance.Balance != "12.50" {
		t.Fatalf("expected balance 12.50, got %s", balance.Balance)
	}

	// The referrer ordering with their own code pays full price and
	// earns nothing from it.
	ot.Stripe.expectedCents = 19900
	own := ot.submitOrderOK(t, svc.ID, "standard", "stripe", ref.Code, "referrer@example.com")

	if !own.Order.TotalAmount.Equal(decimal.RequireFromString("199.00")) {
		t.Fatalf("self-referral must not discount: got total %s", own.Order.TotalAmount)
	}
	if own.Order.ReferralCode != "" {
		t.Fatalf("self-referral must not bind the code to the order, got %q", own.Order.ReferralCode)
	}

	ot.captureStripe(t, path.Base(own.RedirectURL))

	ot.getJSON(t, "/referrals/balance?email=referrer@example.com", http.StatusOK, &balance)
	if balance.Balance != "12.50" {
		t.Fatalf("self-referral must not credit the balance: got %s", balance.Balance)
	}
}

// testDirectCompletion jumps an unpaid order straight from pending to
// completed, the legal shortcut an admin takes for hand-delivered work.
func (ot *orderTest) testDirectCompletion(t *testing.T, svc service.Service) {
	ot.Stripe.expectedCents = 9900
	resp := ot.submitOrderOK(t, svc.ID, "basic", "stripe", "", "drew@example.com")

	if err := Login(ot.TestEnv); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := Logout(ot.TestEnv); err != nil {
			t.Fatal(err)
		}
	}()

	var updated order.Order
	ot.putJSON(t, "/admin/orders/"+resp.Order.ID+"/status", `{"status": "completed"}`, http.StatusOK, &updated)

	if updated.Status != order.StatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Fatal("expected completed_at to be set on the direct jump")
	}

	var shown trackResponse
	ot.getJSON(t, "/admin/orders/"+resp.Order.ID, http.StatusOK, &shown)
	if len(shown.Tracking) != 2 {
		t.Fatalf("expected 2 tracking entries after the direct jump, got %d", len(shown.Tracking))
	}
}

// testCancelledThenPaid records a payment landing on a cancelled order:
// the money is noted without restarting the work.
func (ot *orderTest) testCancelledThenPaid(t *testing.T, svc service.Service) {
	ot.Stripe.expectedCents = 9900
	resp := ot.submitOrderOK(t, svc.ID, "basic", "stripe", "", "pat@example.com")

	if err := Login(ot.TestEnv); err != nil {
		t.Fatal(err)
	}
	ot.putJSON(t, "/admin/orders/"+resp.Order.ID+"/status", `{"status": "cancelled"}`, http.StatusOK, nil)
	if err := Logout(ot.TestEnv); err != nil {
		t.Fatal(err)
	}

	ot.captureStripe(t, path.Base(resp.RedirectURL))

	tracked := ot.trackOK(t, resp.Order.ID, "pat@example.com")
	if tracked.Order.PaymentStatus != order.PaymentPaid {
		t.Fatalf("expected payment recorded, got %s", tracked.Order.PaymentStatus)
	}
	if tracked.Order.Status != order.StatusCancelled {
		t.Fatalf("a payment must not revive a cancelled order, got %s", tracked.Order.Status)
	}

	latest := tracked.Tracking[0]
	if strings.Contains(latest.Description, "writers") {
		t.Fatalf("cancelled order's payment entry must not announce work: %q", latest.Description)
	}
}

func (ot *orderTest) submitOrderOK(t *testing.T, serviceID, tier, gateway, refCode, email string) orderResponse {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"first_name":      "Casey",
		"last_name":       "Customer",
		"email":           email,
		"phone":           "+15550100",
		"service_id":      serviceID,
		"tier":            tier,
		"target_position": "Staff Engineer",
		"gateway":         gateway,
		"referral_code":   refCode,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}

	fw, err := mw.CreateFormFile("current_resume", "resume.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("%PDF-1.4 test resume")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPost, ot.URL+"/orders", &buf)
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(w.Body)
		t.Fatalf("can't create order: status code %s: %s", w.Status, b)
	}

	var resp orderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("cannot unmarshal order response: %v", err)
	}
	if resp.RedirectURL == "" {
		t.Fatal("expected a checkout redirect URL")
	}
	return resp
}

func (ot *orderTest) captureStripe(t *testing.T, sessionID string) {
	t.Helper()

	obj := map[string]any{
		"id":   sessionID,
		"mode": stripe.CheckoutSessionModePayment,
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	evt := stripe.Event{
		APIVersion: "2022-11-15",
		Type:       "checkout.session.completed",
		Data: &stripe.EventData{
			Raw: json.RawMessage(raw),
		},
	}

	b, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    ot.WebhookSecret,
		Timestamp: time.Now(),
	})

	r, err := http.NewRequest(http.MethodPost, ot.URL+"/orders/stripe/capture", bytes.NewBuffer(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Stripe-Signature", signed.Header)

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't trigger stripe webhook: status code %s", w.Status)
	}
}

func (ot *orderTest) capturePaypal(t *testing.T, providerID string) {
	t.Helper()

	w, err := ot.Client().Post(ot.URL+"/orders/paypal/"+providerID+"/capture", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		t.Fatalf("can't capture paypal order: status code %s", w.Status)
	}
}

func (ot *orderTest) applyDiscountOK(t *testing.T, code, serviceID, tier string) discount.Application {
	t.Helper()

	body := fmt.Sprintf(`{"code": %q, "serviceId": %q, "tier": %q}`, code, serviceID, tier)

	var app discount.Application
	ot.postJSON(t, "/discounts/apply", body, http.StatusOK, &app)
	return app
}

func (ot *orderTest) applyDiscountFails(t *testing.T, code, serviceID, tier string) {
	t.Helper()

	body := fmt.Sprintf(`{"code": %q, "serviceId": %q, "tier": %q}`, code, serviceID, tier)
	ot.postJSON(t, "/discounts/apply", body, http.StatusUnprocessableEntity, nil)
}

func (ot *orderTest) trackOK(t *testing.T, id, email string) trackResponse {
	t.Helper()

	var resp trackResponse
	ot.getJSON(t, "/orders/track?order_id="+id+"&email="+url.QueryEscape(email), http.StatusOK, &resp)
	return resp
}

func (ot *orderTest) trackFails(t *testing.T, id, email string, status int) {
	t.Helper()
	ot.getJSON(t, "/orders/track?order_id="+id+"&email="+url.QueryEscape(email), status, nil)
}

func (ot *orderTest) downloadFails(t *testing.T, ord order.Order, status int) {
	t.Helper()

	w := ot.get(t, "/orders/"+ord.ID+"/files/resume?email="+url.QueryEscape(ord.Email))
	defer w.Body.Close()

	if w.StatusCode != status {
		t.Fatalf("expected download to fail with %d, got %s", status, w.Status)
	}
}

func (ot *orderTest) uploadDeliverableOK(t *testing.T, orderID, kind string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "final.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("%PDF-1.4 finished document")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPost, ot.URL+"/admin/orders/"+orderID+"/files/"+kind, &buf)
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", mw.FormDataContentType())

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(w.Body)
		t.Fatalf("can't upload deliverable: status code %s: %s", w.Status, b)
	}
}

func (ot *orderTest) get(t *testing.T, path string) *http.Response {
	t.Helper()

	w, err := ot.Client().Get(ot.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func (ot *orderTest) getJSON(t *testing.T, path string, status int, out any) {
	t.Helper()

	w := ot.get(t, path)
	defer w.Body.Close()

	if w.StatusCode != status {
		b, _ := io.ReadAll(w.Body)
		t.Fatalf("GET %s: expected %d, got %s: %s", path, status, w.Status, b)
	}

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decoding response: %v", path, err)
		}
	}
}

func (ot *orderTest) postJSON(t *testing.T, path, body string, status int, out any) {
	t.Helper()

	w, err := ot.Client().Post(ot.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != status {
		b, _ := io.ReadAll(w.Body)
		t.Fatalf("POST %s: expected %d, got %s: %s", path, status, w.Status, b)
	}

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("POST %s: decoding response: %v", path, err)
		}
	}
}

func (ot *orderTest) putJSON(t *testing.T, path, body string, status int, out any) {
	t.Helper()

	r, err := http.NewRequest(http.MethodPut, ot.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := ot.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != status {
		b, _ := io.ReadAll(w.Body)
		t.Fatalf("PUT %s: expected %d, got %s: %s", path, status, w.Status, b)
	}

	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("PUT %s: decoding response: %v", path, err)
		}
	}
}
