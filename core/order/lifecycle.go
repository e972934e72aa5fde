package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/createproresume/resume-service/core/discount"
	"github.com/createproresume/resume-service/core/referral"
	"github.com/createproresume/resume-service/database"
	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// prepare writes a freshly priced order, its discount snapshot and its
// initial tracking entry in one transaction. A failed discount
// application (e.g. the code ran out between validation and submission)
// aborts the whole order.
func prepare(ctx context.Context, db *sqlx.DB, ord Order, app *discount.Application) error {
	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := Create(ctx, tx, ord); err != nil {
			return err
		}

		if app != nil {
			if _, err := discount.Apply(ctx, tx, ord.ID, *app); err != nil {
				return fmt.Errorf("applying discount %q: %w", app.Code, err)
			}
		}

		tr := Tracking{
			ID:          validate.GenerateID(),
			OrderID:     ord.ID,
			Status:      StatusPending,
			Description: "Order received and awaiting payment",
			CreatedBy:   "system",
			Notified:    true,
			CreatedAt:   ord.CreatedAt,
		}
		return CreateTracking(ctx, tx, tr)
	})

	if err != nil {
		return fmt.Errorf("creating the order bound to payment[%s]: %w", ord.CheckoutSessionID, err)
	}
	return nil
}

// fulfill is the payment-confirmed transition. The gateway hands back the
// checkout session id; the bound order moves to paid and, when still
// pending, into in_progress. A referral discount used on the order earns
// the referrer half of it, credited in the same transaction. Re-delivered
// gateway callbacks are no-ops.
func fulfill(ctx context.Context, db *sqlx.DB, sessionID string) (Order, error) {
	ord, err := FetchBySession(ctx, db, sessionID)
	if err != nil {
		return Order{}, fmt.Errorf("fetching the order bound to payment[%s]: %w", sessionID, err)
	}

	if ord.PaymentStatus == PaymentPaid {
		return ord, nil
	}

	if !ord.PaymentStatus.CanTransition(PaymentPaid) {
		return Order{}, fmt.Errorf("order[%s] has payment status %s, cannot mark paid", ord.ID, ord.PaymentStatus)
	}

	now := time.Now().UTC()
	ord.PaymentStatus = PaymentPaid
	if ord.Status == StatusPending {
		ord.Status = StatusInProgress
	}
	ord.UpdatedAt = now

	// The order only starts when the payment promoted it; a payment
	// landing on a cancelled or already-completed order just records
	// the money.
	desc := "Payment confirmed"
	if ord.Status == StatusInProgress {
		desc = "Payment confirmed, our writers have started on your documents"
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := Update(ctx, tx, ord); err != nil {
			return err
		}

		tr := Tracking{
			ID:          validate.GenerateID(),
			OrderID:     ord.ID,
			Status:      ord.Status,
			Description: desc,
			CreatedBy:   "system",
			Notified:    true,
			CreatedAt:   now,
		}
		if err := CreateTracking(ctx, tx, tr); err != nil {
			return err
		}

		if ord.ReferralCode != "" && ord.ReferralDiscount.IsPositive() {
			ref, err := referral.FetchByCode(ctx, tx, ord.ReferralCode)
			if err != nil {
				if errors.Is(err, referral.ErrNotFound) {
					return nil
				}
				return err
			}

			share := referral.RewardShare(ord.ReferralDiscount)
			if _, err := referral.Credit(ctx, tx, ref, ord.ID, share); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return Order{}, fmt.Errorf("fulfilling the order[%s] bound to payment[%s]: %w", ord.ID, sessionID, err)
	}
	return ord, nil
}

// setStatus is the admin-driven transition. A same-status update is a
// recognized no-op: no write, no tracking entry, no notification.
func setStatus(ctx context.Context, db *sqlx.DB, ord Order, to Status, note string, actor string) (Order, bool, error) {
	if ord.Status == to {
		return ord, false, nil
	}

	if !ord.Status.CanTransition(to) {
		return Order{}, false, TransitionError{From: ord.Status, To: to}
	}

	now := time.Now().UTC()
	ord.Status = to
	ord.UpdatedAt = now
	if to == StatusCompleted && ord.CompletedAt == nil {
		ord.CompletedAt = &now
	}

	if note == "" {
		note = "Status updated to " + string(to)
	}

	err := database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := Update(ctx, tx, ord); err != nil {
			return err
		}

		tr := Tracking{
			ID:          validate.GenerateID(),
			OrderID:     ord.ID,
			Status:      to,
			Description: note,
			CreatedBy:   actor,
			Notified:    true,
			CreatedAt:   now,
		}
		return CreateTracking(ctx, tx, tr)
	})
	if err != nil {
		return Order{}, false, fmt.Errorf("updating status of order[%s]: %w", ord.ID, err)
	}
	return ord, true, nil
}

// referralDiscount resolves how much a referral code takes off a given
// amount: the referral's reward amount, clamped so the total cannot go
// negative. Unknown codes and the referrer's own code contribute
// nothing rather than failing the order.
func referralDiscount(ctx context.Context, db sqlx.ExtContext, code string, buyerEmail string, amount decimal.Decimal) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}

	ref, err := referral.FetchByCode(ctx, db, code)
	if err != nil {
		if errors.Is(err, referral.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	if ref.SelfReferral(buyerEmail) {
		return decimal.Zero, nil
	}

	disc := ref.RewardAmount.Round(2)
	if disc.GreaterThan(amount) {
		disc = amount
	}
	return disc, nil
}
