package service

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is one of the three priced levels of a service offering.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

var (
	ErrInvalidTier     = errors.New("tier must be one of basic, standard or premium")
	ErrServiceNotFound = errors.New("service not found")
	ErrInactive        = errors.New("service is not available")
)

func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierBasic:
		return TierBasic, nil
	case TierStandard:
		return TierStandard, nil
	case TierPremium:
		return TierPremium, nil
	}
	return "", ErrInvalidTier
}

// Service is a sellable offering. Services referenced by orders are never
// deleted, only deactivated, so historical orders keep resolving.
type Service struct {
	ID               string          `json:"id" db:"service_id"`
	Name             string          `json:"name" db:"name"`
	Description      string          `json:"description" db:"description"`
	PriceBasic       decimal.Decimal `json:"priceBasic" db:"price_basic"`
	PriceStandard    decimal.Decimal `json:"priceStandard" db:"price_standard"`
	PricePremium     decimal.Decimal `json:"pricePremium" db:"price_premium"`
	FeaturesBasic    string          `json:"featuresBasic" db:"features_basic"`
	FeaturesStandard string          `json:"featuresStandard" db:"features_standard"`
	FeaturesPremium  string          `json:"featuresPremium" db:"features_premium"`
	Active           bool            `json:"active" db:"active"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
}

type ServiceNew struct {
	Name             string          `json:"name" validate:"required"`
	Description      string          `json:"description" validate:"required"`
	PriceBasic       decimal.Decimal `json:"priceBasic"`
	PriceStandard    decimal.Decimal `json:"priceStandard"`
	PricePremium     decimal.Decimal `json:"pricePremium"`
	FeaturesBasic    string          `json:"featuresBasic"`
	FeaturesStandard string          `json:"featuresStandard"`
	FeaturesPremium  string          `json:"featuresPremium"`
}

type ServiceUp struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

// Price resolves the base price of one tier of this service.
func (s Service) Price(tier Tier) (decimal.Decimal, error) {
	if !s.Active {
		return decimal.Zero, ErrInactive
	}

	switch tier {
	case TierBasic:
		return s.PriceBasic, nil
	case TierStandard:
		return s.PriceStandard, nil
	case TierPremium:
		return s.PricePremium, nil
	}
	return decimal.Zero, ErrInvalidTier
}

// Features splits a comma-joined feature list the way the catalog
// stores it.
func Features(list string) []string {
	if list == "" {
		return nil
	}

	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
