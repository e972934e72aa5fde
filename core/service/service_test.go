package service

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in   string
		want Tier
		ok   bool
	}{
		{"basic", TierBasic, true},
		{"Standard", TierStandard, true},
		{" premium ", TierPremium, true},
		{"deluxe", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if tt.ok && err != nil {
			t.Errorf("ParseTier(%q): unexpected error %v", tt.in, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParseTier(%q): expected an error", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseTier(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrice(t *testing.T) {
	svc := Service{
		PriceBasic:    decimal.RequireFromString("99.00"),
		PriceStandard: decimal.RequireFromString("199.00"),
		PricePremium:  decimal.RequireFromString("299.00"),
		Active:        true,
	}

	p, err := svc.Price(TierStandard)
	if err != nil {
		t.Fatalf("pricing an active service: %v", err)
	}
	if !p.Equal(svc.PriceStandard) {
		t.Errorf("got %s, want %s", p, svc.PriceStandard)
	}

	if _, err := svc.Price(Tier("deluxe")); !errors.Is(err, ErrInvalidTier) {
		t.Errorf("unknown tier: got %v, want ErrInvalidTier", err)
	}

	svc.Active = false
	if _, err := svc.Price(TierBasic); !errors.Is(err, ErrInactive) {
		t.Errorf("inactive service: got %v, want ErrInactive", err)
	}
}

func TestFeatures(t *testing.T) {
	got := Features("1 page resume, 2 revisions , ,cover letter")
	want := []string{"1 page resume", "2 revisions", "cover letter"}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("feature list mismatch (-want +got):\n%s", diff)
	}

	if Features("") != nil {
		t.Error("empty list should yield nil")
	}
}
