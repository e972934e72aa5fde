package discount

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/core/service"
	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SessionKey holds the validated discount selection between the
// apply-discount call and the order submission.
const SessionKey = "discount_application"

type ApplyRequest struct {
	Code      string `json:"code"`
	ServiceID string `json:"serviceId" validate:"required"`
	Tier      string `json:"tier" validate:"required"`
}

// HandleApply validates a code for the selected service and tier and, on
// success, stashes the application in the customer's session so the order
// submission can pick it up.
func HandleApply(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req ApplyRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding discount request: %w", err))
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		amount, err := service.ResolvePrice(ctx, db, req.ServiceID, req.Tier)
		if err != nil {
			if errors.Is(err, service.ErrServiceNotFound) {
				return weberr.NotFound(err)
			}
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		app, err := Validate(ctx, db, strings.TrimSpace(req.Code), amount)
		if err != nil {
			var bm BelowMinimumError
			switch {
			case errors.Is(err, ErrMissingCode), errors.Is(err, ErrNotFound),
				errors.Is(err, ErrExhausted), errors.As(err, &bm):
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			return err
		}

		stash, err := json.Marshal(app)
		if err != nil {
			return fmt.Errorf("encoding discount application: %w", err)
		}
		session.Put(ctx, SessionKey, string(stash))

		return web.Respond(ctx, w, app, http.StatusOK)
	}
}

// FromSession pops a previously applied discount out of the session.
// A missing or garbled stash means no discount.
func FromSession(ctx context.Context, session *scs.SessionManager) (Application, bool) {
	stash := session.PopString(ctx, SessionKey)
	if stash == "" {
		return Application{}, false
	}

	var app Application
	if err := json.Unmarshal([]byte(stash), &app); err != nil {
		return Application{}, false
	}
	return app, true
}

type CodeNew struct {
	Code         string          `json:"code" validate:"required,min=3,max=20"`
	Type         Type            `json:"discountType" validate:"required,oneof=percentage fixed"`
	Value        decimal.Decimal `json:"value"`
	MinimumOrder decimal.Decimal `json:"minimumOrder"`
	MaxUses      *int            `json:"maxUses" validate:"omitempty,gte=1"`
	ValidFrom    time.Time       `json:"validFrom"`
	ValidUntil   time.Time       `json:"validUntil" validate:"required"`
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CodeNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding discount code: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if !cn.Value.IsPositive() {
			err := errors.New("discount value must be positive")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if cn.Type == TypePercentage && cn.Value.GreaterThan(decimal.NewFromInt(100)) {
			err := errors.New("percentage discounts cannot exceed 100")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		if cn.ValidFrom.IsZero() {
			cn.ValidFrom = now
		}

		c := Code{
			ID:           validate.GenerateID(),
			Code:         strings.ToUpper(strings.TrimSpace(cn.Code)),
			Type:         cn.Type,
			Value:        cn.Value.Round(2),
			MinimumOrder: cn.MinimumOrder.Round(2),
			MaxUses:      cn.MaxUses,
			ValidFrom:    cn.ValidFrom.UTC(),
			ValidUntil:   cn.ValidUntil.UTC(),
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := Create(ctx, db, c); err != nil {
			if strings.Contains(err.Error(), "discount_codes_code_idx") {
				dup := errors.New("a discount code with this name already exists")
				return weberr.NewError(dup, dup.Error(), http.StatusConflict)
			}
			return err
		}
		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		codes, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, codes, http.StatusOK)
	}
}
