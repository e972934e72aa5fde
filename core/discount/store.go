package discount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Code) error {
	const q = `
	INSERT INTO discount_codes
		(discount_id, code, discount_type, value, minimum_order, max_uses,
		current_uses, valid_from, valid_until, active, created_at, updated_at)
	VALUES
		(:discount_id, :code, :discount_type, :value, :minimum_order, :max_uses,
		:current_uses, :valid_from, :valid_until, :active, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting discount code: %w", err)
	}
	return nil
}

// FetchByCode looks a code up case-insensitively among active codes.
func FetchByCode(ctx context.Context, db sqlx.ExtContext, code string) (*Code, error) {
	const q = `SELECT * FROM discount_codes WHERE lower(code) = lower($1) AND active`

	var c Code
	if err := sqlx.GetContext(ctx, db, &c, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting discount code: %w", err)
	}
	return &c, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Code, error) {
	const q = `SELECT * FROM discount_codes ORDER BY created_at DESC`

	codes := []Code{}
	if err := sqlx.SelectContext(ctx, db, &codes, q); err != nil {
		return nil, fmt.Errorf("selecting discount codes: %w", err)
	}
	return codes, nil
}

// Validate runs the full validation sequence for a raw code string
// against an order amount.
func Validate(ctx context.Context, db sqlx.ExtContext, rawCode string, amount decimal.Decimal) (Application, error) {
	if rawCode == "" {
		return Application{}, ErrMissingCode
	}

	c, err := FetchByCode(ctx, db, rawCode)
	if err != nil {
		return Application{}, err
	}

	return Check(c, rawCode, amount, time.Now().UTC())
}

// OrderDiscount is the immutable snapshot of one discount applied to one
// order. The unique constraint on order_id enforces at most one per order.
type OrderDiscount struct {
	ID             string          `json:"id" db:"order_discount_id"`
	OrderID        string          `json:"orderId" db:"order_id"`
	DiscountID     string          `json:"discountId" db:"discount_id"`
	OriginalAmount decimal.Decimal `json:"originalAmount" db:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"finalAmount" db:"final_amount"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

// Apply persists the snapshot and bumps the usage counter inside the
// caller's transaction. The increment is a single conditional update so
// two near-simultaneous applications cannot overrun the usage cap; losing
// the race surfaces as ErrExhausted and aborts the whole transaction.
func Apply(ctx context.Context, tx sqlx.ExtContext, orderID string, app Application) (OrderDiscount, error) {
	od := OrderDiscount{
		ID:             validate.GenerateID(),
		OrderID:        orderID,
		DiscountID:     app.CodeID,
		OriginalAmount: app.OriginalAmount,
		DiscountAmount: app.DiscountAmount,
		FinalAmount:    app.FinalAmount,
		CreatedAt:      time.Now().UTC(),
	}

	const ins = `
	INSERT INTO order_discounts
		(order_discount_id, order_id, discount_id, original_amount, discount_amount, final_amount, created_at)
	VALUES
		(:order_discount_id, :order_id, :discount_id, :original_amount, :discount_amount, :final_amount, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, ins, od); err != nil {
		return OrderDiscount{}, fmt.Errorf("inserting order discount: %w", err)
	}

	const bump = `
	UPDATE discount_codes SET
		current_uses = current_uses + 1,
		updated_at = $2
	WHERE discount_id = $1
		AND active
		AND (max_uses IS NULL OR current_uses < max_uses)`

	res, err := tx.ExecContext(ctx, bump, app.CodeID, time.Now().UTC())
	if err != nil {
		return OrderDiscount{}, fmt.Errorf("incrementing discount usage: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return OrderDiscount{}, fmt.Errorf("checking discount usage update: %w", err)
	}
	if n != 1 {
		return OrderDiscount{}, ErrExhausted
	}

	return od, nil
}

func FetchOrderDiscount(ctx context.Context, db sqlx.ExtContext, orderID string) (OrderDiscount, error) {
	const q = `SELECT * FROM order_discounts WHERE order_id = $1`

	var od OrderDiscount
	if err := sqlx.GetContext(ctx, db, &od, q, orderID); err != nil {
		return OrderDiscount{}, fmt.Errorf("selecting order discount[%s]: %w", orderID, err)
	}
	return od, nil
}
