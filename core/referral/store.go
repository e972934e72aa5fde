package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/createproresume/resume-service/random"
	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func Create(ctx context.Context, db sqlx.ExtContext, ref Referral) error {
	const q = `
	INSERT INTO referrals
		(referral_id, referrer_email, referrer_name, referred_email, referred_name,
		code, reward_amount, status, created_at, updated_at)
	VALUES
		(:referral_id, :referrer_email, :referrer_name, :referred_email, :referred_name,
		:code, :reward_amount, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ref); err != nil {
		return fmt.Errorf("inserting referral: %w", err)
	}
	return nil
}

// FetchPair finds an existing referral for a (referrer, referred) email
// pair regardless of case.
func FetchPair(ctx context.Context, db sqlx.ExtContext, referrerEmail, referredEmail string) (Referral, error) {
	const q = `
	SELECT * FROM referrals
	WHERE lower(referrer_email) = lower($1) AND lower(referred_email) = lower($2)`

	var ref Referral
	if err := sqlx.GetContext(ctx, db, &ref, q, referrerEmail, referredEmail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Referral{}, ErrNotFound
		}
		return Referral{}, fmt.Errorf("selecting referral pair: %w", err)
	}
	return ref, nil
}

func FetchByCode(ctx context.Context, db sqlx.ExtContext, code string) (Referral, error) {
	const q = `SELECT * FROM referrals WHERE code = $1`

	var ref Referral
	if err := sqlx.GetContext(ctx, db, &ref, q, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Referral{}, ErrNotFound
		}
		return Referral{}, fmt.Errorf("selecting referral by code: %w", err)
	}
	return ref, nil
}

// GenerateCode draws 8-character uppercase codes until one is free.
// Collisions are vanishingly rare, so a short retry budget is plenty.
func GenerateCode(ctx context.Context, db sqlx.ExtContext) (string, error) {
	for i := 0; i < 10; i++ {
		code := random.Code(codeLength)

		if _, err := FetchByCode(ctx, db, code); err != nil {
			if errors.Is(err, ErrNotFound) {
				return code, nil
			}
			return "", err
		}
	}
	return "", errors.New("could not generate a unique referral code")
}

// Credit records the reward a referrer earned from one confirmed order:
// a reward row, the referrer's running balance and the referral status
// all move together inside the caller's transaction.
func Credit(ctx context.Context, tx sqlx.ExtContext, ref Referral, orderID string, amount decimal.Decimal) (Reward, error) {
	now := time.Now().UTC()

	rw := Reward{
		ID:         validate.GenerateID(),
		ReferralID: ref.ID,
		OrderID:    orderID,
		Amount:     amount,
		CreatedAt:  now,
	}

	const ins = `
	INSERT INTO referral_rewards (reward_id, referral_id, order_id, amount, paid, created_at)
	VALUES (:reward_id, :referral_id, :order_id, :amount, :paid, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, ins, rw); err != nil {
		return Reward{}, fmt.Errorf("inserting referral reward: %w", err)
	}

	const upsert = `
	INSERT INTO referral_balances (referrer_email, balance, updated_at)
	VALUES (lower($1), $2, $3)
	ON CONFLICT (referrer_email)
	DO UPDATE SET balance = referral_balances.balance + $2, updated_at = $3`

	if _, err := tx.ExecContext(ctx, upsert, ref.ReferrerEmail, amount, now); err != nil {
		return Reward{}, fmt.Errorf("crediting referrer balance: %w", err)
	}

	const up = `UPDATE referrals SET status = $2, updated_at = $3 WHERE referral_id = $1`

	if _, err := tx.ExecContext(ctx, up, ref.ID, StatusCompleted, now); err != nil {
		return Reward{}, fmt.Errorf("updating referral status: %w", err)
	}

	return rw, nil
}

func FetchBalance(ctx context.Context, db sqlx.ExtContext, referrerEmail string) (decimal.Decimal, error) {
	const q = `SELECT balance FROM referral_balances WHERE referrer_email = lower($1)`

	var balance decimal.Decimal
	if err := sqlx.GetContext(ctx, db, &balance, q, referrerEmail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("selecting referrer balance: %w", err)
	}
	return balance, nil
}

func FetchReward(ctx context.Context, db sqlx.ExtContext, rewardID string) (Reward, error) {
	const q = `SELECT * FROM referral_rewards WHERE reward_id = $1`

	var rw Reward
	if err := sqlx.GetContext(ctx, db, &rw, q, rewardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Reward{}, ErrNotFound
		}
		return Reward{}, fmt.Errorf("selecting reward[%s]: %w", rewardID, err)
	}
	return rw, nil
}

// MarkRewardPaid settles one reward; when no unpaid rewards remain the
// referral itself moves to rewarded.
func MarkRewardPaid(ctx context.Context, tx sqlx.ExtContext, rw Reward) error {
	const up = `UPDATE referral_rewards SET paid = TRUE WHERE reward_id = $1`

	if _, err := tx.ExecContext(ctx, up, rw.ID); err != nil {
		return fmt.Errorf("marking reward paid: %w", err)
	}

	const settle = `
	UPDATE referrals SET status = $2, updated_at = $3
	WHERE referral_id = $1
		AND NOT EXISTS (
			SELECT 1 FROM referral_rewards
			WHERE referral_id = $1 AND NOT paid AND reward_id <> $4
		)`

	if _, err := tx.ExecContext(ctx, settle, rw.ReferralID, StatusRewarded, time.Now().UTC(), rw.ID); err != nil {
		return fmt.Errorf("settling referral: %w", err)
	}
	return nil
}
