package discount

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

var (
	ErrMissingCode = errors.New("please enter a discount code")
	ErrNotFound    = errors.New("invalid discount code")
	ErrExhausted   = errors.New("this discount code has expired or reached its usage limit")
)

// BelowMinimumError carries the threshold so the customer learns how much
// more they need to spend.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum order amount of $%s required for this discount", e.Minimum.StringFixed(2))
}

// Code is a reusable discount coupon. Validity is computed from the
// window, the active flag and the usage counter, never stored.
type Code struct {
	ID           string          `json:"id" db:"discount_id"`
	Code         string          `json:"code" db:"code"`
	Type         Type            `json:"discountType" db:"discount_type"`
	Value        decimal.Decimal `json:"value" db:"value"`
	MinimumOrder decimal.Decimal `json:"minimumOrder" db:"minimum_order"`
	MaxUses      *int            `json:"maxUses" db:"max_uses"`
	CurrentUses  int             `json:"currentUses" db:"current_uses"`
	ValidFrom    time.Time       `json:"validFrom" db:"valid_from"`
	ValidUntil   time.Time       `json:"validUntil" db:"valid_until"`
	Active       bool            `json:"active" db:"active"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// ValidAt reports the computed validity of the code at a point in time.
func (c Code) ValidAt(now time.Time) bool {
	if !c.Active {
		return false
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return false
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return false
	}
	return true
}

// Application is the outcome of validating a code against an order
// amount. It is what gets snapshotted into an OrderDiscount so later
// edits to the code never change what a past order was charged.
type Application struct {
	CodeID         string          `json:"codeId"`
	Code           string          `json:"code"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
}

// Compute derives the discounted amounts for an already-validated code.
// Percentage discounts round to cents; every discount is clamped to the
// order amount so a total can never go negative.
func Compute(c Code, amount decimal.Decimal) Application {
	var discounted decimal.Decimal
	switch c.Type {
	case TypePercentage:
		discounted = amount.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	default:
		discounted = c.Value.Round(2)
	}

	if discounted.GreaterThan(amount) {
		discounted = amount
	}

	return Application{
		CodeID:         c.ID,
		Code:           c.Code,
		OriginalAmount: amount.Round(2),
		DiscountAmount: discounted,
		FinalAmount:    amount.Round(2).Sub(discounted),
	}
}

// Check runs the validation sequence against an order amount: missing
// code, unknown code, computed validity, minimum order. The first failing
// step wins. Lookup is the caller's job so this stays pure.
func Check(c *Code, rawCode string, amount decimal.Decimal, now time.Time) (Application, error) {
	if rawCode == "" {
		return Application{}, ErrMissingCode
	}

	if c == nil {
		return Application{}, ErrNotFound
	}

	if !c.ValidAt(now) {
		return Application{}, ErrExhausted
	}

	if amount.LessThan(c.MinimumOrder) {
		return Application{}, BelowMinimumError{Minimum: c.MinimumOrder}
	}

	return Compute(*c, amount), nil
}
