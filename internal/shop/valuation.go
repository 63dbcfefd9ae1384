package shop

import (
	"context"
	"fmt"
	"strings"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

// ValuationSettings are the caller's store parameters for turning market prices into a purchase cap and
// a recommended sale price. Amounts are yen, rates are fractions.
type ValuationSettings struct {
	Provider              string  `json:"provider"`
	DisplayAdjustPct      float64 `json:"display_adjust_pct"`
	BuyCapPct             float64 `json:"buy_cap_pct"`
	RecommendedFromCapYen int64   `json:"recommended_from_cap_yen"`
	RiskBufferYen         int64   `json:"risk_buffer_yen"`
	RoundUnitYen          int64   `json:"round_unit_yen"`
	DefaultExtraCostYen   int64   `json:"default_extra_cost_yen"`
	MinProfitYen          int64   `json:"min_profit_yen"`
	MinProfitRate         float64 `json:"min_profit_rate"`
}

type ValuationSettingsUpdate struct {
	Provider              *string  `json:"provider,omitempty"`
	DisplayAdjustPct      *float64 `json:"display_adjust_pct,omitempty"`
	BuyCapPct             *float64 `json:"buy_cap_pct,omitempty"`
	RecommendedFromCapYen *int64   `json:"recommended_from_cap_yen,omitempty"`
	RiskBufferYen         *int64   `json:"risk_buffer_yen,omitempty"`
	RoundUnitYen          *int64   `json:"round_unit_yen,omitempty"`
	DefaultExtraCostYen   *int64   `json:"default_extra_cost_yen,omitempty"`
	MinProfitYen          *int64   `json:"min_profit_yen,omitempty"`
	MinProfitRate         *float64 `json:"min_profit_rate,omitempty"`
}

type ValuationRequest struct {
	Make    string `json:"make"`
	Model   string `json:"model"`
	Grade   string `json:"grade"`
	Year    int    `json:"year"`
	Mileage int    `json:"mileage"`
}

type Valuation struct {
	MarketLow          int64   `json:"market_low"`
	MarketMedian       int64   `json:"market_median"`
	MarketHigh         int64   `json:"market_high"`
	BuyCapPrice        int64   `json:"buy_cap_price"`
	RecommendedPrice   int64   `json:"recommended_price"`
	ExpectedProfit     int64   `json:"expected_profit"`
	ExpectedProfitRate float64 `json:"expected_profit_rate"`
}

const (
	minValuationYear = 1950
	maxValuationYear = 2100
)

func (r *ValuationRequest) normalize() error {
	r.Make = strings.TrimSpace(r.Make)
	r.Model = strings.TrimSpace(r.Model)
	r.Grade = strings.TrimSpace(r.Grade)
	switch {
	case r.Make == "" || r.Model == "" || r.Grade == "":
		return fmt.Errorf("%w: make, model and grade are required", ErrInvalidInput)
	case r.Year < minValuationYear || r.Year > maxValuationYear:
		return fmt.Errorf("%w: year must be between %d and %d", ErrInvalidInput, minValuationYear, maxValuationYear)
	case r.Mileage < 0:
		return fmt.Errorf("%w: mileage must not be negative", ErrInvalidInput)
	}
	return nil
}

// ValuationSettings returns the store's settings, created with defaults on first access.
func (s *Service) ValuationSettings(ctx context.Context) (*ValuationSettings, error) {
	vs, err := apiclient.Get[ValuationSettings](ctx, s.client, "/valuation/settings", nil, schemas.ValuationSettings)
	if err != nil {
		return nil, err
	}
	return &vs, nil
}

func (s *Service) UpdateValuationSettings(ctx context.Context, in ValuationSettingsUpdate) (*ValuationSettings, error) {
	if in.RoundUnitYen != nil && *in.RoundUnitYen <= 0 {
		return nil, fmt.Errorf("%w: round_unit_yen must be greater than 0", ErrInvalidInput)
	}
	vs, err := apiclient.Put[ValuationSettings](ctx, s.client, "/valuation/settings", in, schemas.ValuationSettings)
	if err != nil {
		return nil, err
	}
	return &vs, nil
}

// CalculateValuation prices a vehicle that is not in stock yet. ValuateCar covers stocked cars.
func (s *Service) CalculateValuation(ctx context.Context, in ValuationRequest) (*Valuation, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	v, err := apiclient.Post[Valuation](ctx, s.client, "/valuation/calculate", in, schemas.Valuation)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
