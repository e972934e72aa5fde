package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func Create(ctx context.Context, db sqlx.ExtContext, svc Service) error {
	const q = `
	INSERT INTO services
		(service_id, name, description, price_basic, price_standard, price_premium,
		features_basic, features_standard, features_premium, active, created_at, updated_at)
	VALUES
		(:service_id, :name, :description, :price_basic, :price_standard, :price_premium,
		:features_basic, :features_standard, :features_premium, :active, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, svc); err != nil {
		return fmt.Errorf("inserting service: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, svc Service) error {
	const q = `
	UPDATE services SET
		name = :name,
		description = :description,
		active = :active,
		updated_at = :updated_at
	WHERE service_id = :service_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, svc); err != nil {
		return fmt.Errorf("updating service[%s]: %w", svc.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Service, error) {
	const q = `SELECT * FROM services WHERE service_id = $1`

	var svc Service
	if err := sqlx.GetContext(ctx, db, &svc, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Service{}, ErrServiceNotFound
		}
		return Service{}, fmt.Errorf("selecting service[%s]: %w", id, err)
	}
	return svc, nil
}

func FetchActive(ctx context.Context, db sqlx.ExtContext) ([]Service, error) {
	const q = `SELECT * FROM services WHERE active ORDER BY created_at`

	svcs := []Service{}
	if err := sqlx.SelectContext(ctx, db, &svcs, q); err != nil {
		return nil, fmt.Errorf("selecting active services: %w", err)
	}
	return svcs, nil
}

// ResolvePrice maps a (service, tier) pair to the tier's base price.
// It fails for unknown or deactivated services and unrecognized tiers.
func ResolvePrice(ctx context.Context, db sqlx.ExtContext, serviceID string, tier string) (decimal.Decimal, error) {
	t, err := ParseTier(tier)
	if err != nil {
		return decimal.Zero, err
	}

	svc, err := Fetch(ctx, db, serviceID)
	if err != nil {
		return decimal.Zero, err
	}

	return svc.Price(t)
}
