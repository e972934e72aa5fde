package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/createproresume/resume-service/api/web"
	"github.com/createproresume/resume-service/api/weberr"
	"github.com/createproresume/resume-service/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		svcs, err := FetchActive(ctx, db)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, svcs, http.StatusOK)
	}
}

// HandlePricing returns the three tier prices of one service, the data
// the order form needs to show a live total.
func HandlePricing(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		svc, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		pricing := map[Tier]decimal.Decimal{
			TierBasic:    svc.PriceBasic,
			TierStandard: svc.PriceStandard,
			TierPremium:  svc.PricePremium,
		}
		return web.Respond(ctx, w, pricing, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var sn ServiceNew
		if err := web.Decode(w, r, &sn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding service: %w", err))
		}

		if err := validate.Check(sn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		for _, p := range []decimal.Decimal{sn.PriceBasic, sn.PriceStandard, sn.PricePremium} {
			if p.IsNegative() {
				err := errors.New("tier prices cannot be negative")
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
		}

		now := time.Now().UTC()
		svc := Service{
			ID:               validate.GenerateID(),
			Name:             sn.Name,
			Description:      sn.Description,
			PriceBasic:       sn.PriceBasic.Round(2),
			PriceStandard:    sn.PriceStandard.Round(2),
			PricePremium:     sn.PricePremium.Round(2),
			FeaturesBasic:    sn.FeaturesBasic,
			FeaturesStandard: sn.FeaturesStandard,
			FeaturesPremium:  sn.FeaturesPremium,
			Active:           true,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := Create(ctx, db, svc); err != nil {
			return err
		}
		return web.Respond(ctx, w, svc, http.StatusCreated)
	}
}

// HandleUpdate edits name, description and the active flag only. Tier
// prices are immutable once a service can be referenced by orders.
func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		var su ServiceUp
		if err := web.Decode(w, r, &su); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding service update: %w", err))
		}

		svc, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrServiceNotFound) {
				return weberr.NotFound(err)
			}
			return err
		}

		if su.Name != nil {
			svc.Name = *su.Name
		}
		if su.Description != nil {
			svc.Description = *su.Description
		}
		if su.Active != nil {
			svc.Active = *su.Active
		}
		svc.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, svc); err != nil {
			return err
		}
		return web.Respond(ctx, w, svc, http.StatusOK)
	}
}
