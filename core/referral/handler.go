package referral

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/createproresume/resume-service/api/background"
	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/database"
	"github.com/createproresume/resume-service/email"
	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
)

// HandleCreate registers a referral and emails both parties. Duplicate
// (referrer, referred) pairs are rejected; the invitation emails are
// best-effort and never fail the creation.
func HandleCreate(db *sqlx.DB, mailer *email.Mailer, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var rn ReferralNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding referral: %w", err))
		}

		if err := validate.Check(rn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		rn.ReferrerEmail = validate.NormEmail(rn.ReferrerEmail)
		rn.ReferredEmail = validate.NormEmail(rn.ReferredEmail)

		if rn.ReferrerEmail == rn.ReferredEmail {
			err := errors.New("you cannot refer yourself")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := FetchPair(ctx, db, rn.ReferrerEmail, rn.ReferredEmail); err == nil {
			return weberr.NewError(ErrDuplicate, ErrDuplicate.Error(), http.StatusConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		var ref Referral
		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			code, err := GenerateCode(ctx, tx)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			ref = Referral{
				ID:            validate.GenerateID(),
				ReferrerEmail: rn.ReferrerEmail,
				ReferrerName:  rn.ReferrerName,
				ReferredEmail: rn.ReferredEmail,
				ReferredName:  rn.ReferredName,
				Code:          code,
				RewardAmount:  DefaultReward,
				Status:        StatusPending,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			return Create(ctx, tx, ref)
		})
		if err != nil {
			if isDuplicate(err) {
				return weberr.NewError(ErrDuplicate, ErrDuplicate.Error(), http.StatusConflict)
			}
			return fmt.Errorf("creating referral: %w", err)
		}

		info := email.ReferralInfo{
			ReferrerName:  ref.ReferrerName,
			ReferrerEmail: ref.ReferrerEmail,
			ReferredName:  ref.ReferredName,
			ReferredEmail: ref.ReferredEmail,
			Code:          ref.Code,
			Reward:        ref.RewardAmount.StringFixed(2),
			OrderURL:      mailer.SiteURL + "/order?ref=" + ref.Code,
		}

		bg.Add(func() error {
			subject, body := email.ReferralInvite(info)
			return mailer.Send(info.ReferredEmail, subject, body)
		})
		bg.Add(func() error {
			subject, body := email.ReferralThanks(info)
			return mailer.Send(info.ReferrerEmail, subject, body)
		})

		return web.Respond(ctx, w, ref, http.StatusCreated)
	}
}

func HandleBalance(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		addr := web.Query(r, "email")
		if addr == "" {
			return weberr.BadRequest(errors.New("email query parameter is required"))
		}

		balance, err := FetchBalance(ctx, db, addr)
		if err != nil {
			return err
		}

		resp := struct {
			Email   string `json:"email"`
			Balance string `json:"balance"`
		}{
			Email:   validate.NormEmail(addr),
			Balance: balance.StringFixed(2),
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// HandleMarkRewardPaid settles one referral reward after the admin has
// paid the referrer out.
func HandleMarkRewardPaid(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		rw, err := FetchReward(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if rw.Paid {
			return web.Respond(ctx, w, rw, http.StatusOK)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			return MarkRewardPaid(ctx, tx, rw)
		})
		if err != nil {
			return err
		}

		rw.Paid = true
		return web.Respond(ctx, w, rw, http.StatusOK)
	}
}
