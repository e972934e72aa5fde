package referral

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	// StatusPending: invitation sent, referred person has not paid yet.
	StatusPending Status = "pending"

	// StatusCompleted: the referred person's payment confirmed and the
	// referrer earned a reward.
	StatusCompleted Status = "completed"

	// StatusRewarded: every earned reward has been paid out.
	StatusRewarded Status = "rewarded"
)

const codeLength = 8

// DefaultReward is the fixed amount assigned when a referral is created.
var DefaultReward = decimal.NewFromInt(25)

var (
	ErrDuplicate = errors.New("you have already referred this person")
	ErrNotFound  = errors.New("referral not found")
)

// Referral links a referrer with a referred prospective customer through
// a generated code. A referrer may refer the same target only once.
type Referral struct {
	ID            string          `json:"id" db:"referral_id"`
	ReferrerEmail string          `json:"referrerEmail" db:"referrer_email"`
	ReferrerName  string          `json:"referrerName" db:"referrer_name"`
	ReferredEmail string          `json:"referredEmail" db:"referred_email"`
	ReferredName  string          `json:"referredName" db:"referred_name"`
	Code          string          `json:"code" db:"code"`
	RewardAmount  decimal.Decimal `json:"rewardAmount" db:"reward_amount"`
	Status        Status          `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

type ReferralNew struct {
	ReferrerEmail string `json:"referrerEmail" validate:"required,email"`
	ReferrerName  string `json:"referrerName" validate:"required"`
	ReferredEmail string `json:"referredEmail" validate:"required,email"`
	ReferredName  string `json:"referredName"`
}

// Reward is one credit earned by a referrer when a referred customer's
// payment confirmed.
type Reward struct {
	ID         string          `json:"id" db:"reward_id"`
	ReferralID string          `json:"referralId" db:"referral_id"`
	OrderID    string          `json:"orderId" db:"order_id"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Paid       bool            `json:"paid" db:"paid"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}

// RewardShare computes the referrer's cut of a referral discount: half of
// what the referred customer saved, rounded to cents.
func RewardShare(referralDiscount decimal.Decimal) decimal.Decimal {
	return referralDiscount.Mul(decimal.NewFromFloat(0.5)).Round(2)
}

// SelfReferral reports whether an email belongs to the code's own
// referrer. A referrer cannot discount their own order with their own
// code, which would also pay them a reward out of their own pocket.
func (r Referral) SelfReferral(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), strings.TrimSpace(r.ReferrerEmail))
}

// isDuplicate detects the unique-pair index violation, so a duplicate
// racing past the lookup surfaces as the same conflict as one the
// lookup caught.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "referrals_pair_idx")
}
