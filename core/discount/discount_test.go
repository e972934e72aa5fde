package discount

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testCode(typ Type, value string) Code {
	now := time.Now().UTC()
	return Code{
		ID:         "d1",
		Code:       "TEST",
		Type:       typ,
		Value:      decimal.RequireFromString(value),
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
		Active:     true,
	}
}

func TestComputePercentage(t *testing.T) {
	c := testCode(TypePercentage, "10")

	app := Compute(c, decimal.RequireFromString("199.00"))

	if !app.DiscountAmount.Equal(decimal.RequireFromString("19.90")) {
		t.Errorf("discount: got %s, want 19.90", app.DiscountAmount)
	}
	if !app.FinalAmount.Equal(decimal.RequireFromString("179.10")) {
		t.Errorf("final: got %s, want 179.10", app.FinalAmount)
	}
}

func TestComputeRoundsToCents(t *testing.T) {
	c := testCode(TypePercentage, "15")

	// 15% of 99.99 is 14.9985, which must land on a cent.
	app := Compute(c, decimal.RequireFromString("99.99"))

	if !app.DiscountAmount.Equal(decimal.RequireFromString("15.00")) {
		t.Errorf("discount: got %s, want 15.00", app.DiscountAmount)
	}
}

func TestComputeFixedClamped(t *testing.T) {
	c := testCode(TypeFixed, "50")

	app := Compute(c, decimal.RequireFromString("30.00"))

	if !app.DiscountAmount.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("discount should clamp to the order amount, got %s", app.DiscountAmount)
	}
	if !app.FinalAmount.IsZero() {
		t.Errorf("final should be zero, got %s", app.FinalAmount)
	}
}

func TestCheckSequence(t *testing.T) {
	now := time.Now().UTC()
	amount := decimal.RequireFromString("100.00")

	if _, err := Check(nil, "", amount, now); !errors.Is(err, ErrMissingCode) {
		t.Errorf("empty code: got %v, want ErrMissingCode", err)
	}

	if _, err := Check(nil, "NOPE", amount, now); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown code: got %v, want ErrNotFound", err)
	}

	expired := testCode(TypeFixed, "10")
	expired.ValidUntil = now.Add(-time.Minute)
	if _, err := Check(&expired, expired.Code, amount, now); !errors.Is(err, ErrExhausted) {
		t.Errorf("expired code: got %v, want ErrExhausted", err)
	}

	inactive := testCode(TypeFixed, "10")
	inactive.Active = false
	if _, err := Check(&inactive, inactive.Code, amount, now); !errors.Is(err, ErrExhausted) {
		t.Errorf("inactive code: got %v, want ErrExhausted", err)
	}

	maxed := testCode(TypeFixed, "10")
	uses := 5
	maxed.MaxUses = &uses
	maxed.CurrentUses = 5
	if _, err := Check(&maxed, maxed.Code, amount, now); !errors.Is(err, ErrExhausted) {
		t.Errorf("maxed out code: got %v, want ErrExhausted", err)
	}

	minOrder := testCode(TypeFixed, "10")
	minOrder.MinimumOrder = decimal.RequireFromString("150.00")
	var bm BelowMinimumError
	if _, err := Check(&minOrder, minOrder.Code, amount, now); !errors.As(err, &bm) {
		t.Errorf("below minimum: got %v, want BelowMinimumError", err)
	} else if !bm.Minimum.Equal(minOrder.MinimumOrder) {
		t.Errorf("minimum carried: got %s, want %s", bm.Minimum, minOrder.MinimumOrder)
	}

	good := testCode(TypeFixed, "10")
	app, err := Check(&good, good.Code, amount, now)
	if err != nil {
		t.Fatalf("valid code: %v", err)
	}
	if !app.FinalAmount.Equal(decimal.RequireFromString("90.00")) {
		t.Errorf("final: got %s, want 90.00", app.FinalAmount)
	}
}

func TestValidAtWindow(t *testing.T) {
	c := testCode(TypeFixed, "10")

	if !c.ValidAt(time.Now().UTC()) {
		t.Error("code should be valid inside its window")
	}
	if c.ValidAt(c.ValidFrom.Add(-time.Minute)) {
		t.Error("code should not be valid before its window")
	}
	if c.ValidAt(c.ValidUntil.Add(time.Minute)) {
		t.Error("code should not be valid after its window")
	}
}
