package shop

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

// Car is a vehicle in stock. Car ids are opaque strings.
type Car struct {
	ID                string  `json:"id"`
	StockNo           string  `json:"stock_no"`
	CarNumber         *string `json:"car_number,omitempty"`
	Status            *string `json:"status,omitempty"`
	Maker             *string `json:"maker,omitempty"`
	Model             *string `json:"model,omitempty"`
	Grade             *string `json:"grade,omitempty"`
	Year              *int    `json:"year,omitempty"`
	Mileage           *int    `json:"mileage,omitempty"`
	Color             *string `json:"color,omitempty"`
	VIN               *string `json:"vin,omitempty"`
	PurchasePrice     *int64  `json:"purchase_price,omitempty"`
	ExpectedSellPrice *int64  `json:"expected_sell_price,omitempty"`
	ActualSellPrice   *int64  `json:"actual_sell_price,omitempty"`
	PurchaseDate      *Date   `json:"purchase_date,omitempty"`
	SellDate          *Date   `json:"sell_date,omitempty"`
	Location          *string `json:"location,omitempty"`
	Memo              *string `json:"memo,omitempty"`
}

type CarInput struct {
	StockNo           string  `json:"stock_no"`
	CarNumber         *string `json:"car_number,omitempty"`
	Status            *string `json:"status,omitempty"`
	Maker             *string `json:"maker,omitempty"`
	Model             *string `json:"model,omitempty"`
	Grade             *string `json:"grade,omitempty"`
	Year              *int    `json:"year,omitempty"`
	Mileage           *int    `json:"mileage,omitempty"`
	Color             *string `json:"color,omitempty"`
	VIN               *string `json:"vin,omitempty"`
	PurchasePrice     *int64  `json:"purchase_price,omitempty"`
	ExpectedSellPrice *int64  `json:"expected_sell_price,omitempty"`
	PurchaseDate      *Date   `json:"purchase_date,omitempty"`
	Location          *string `json:"location,omitempty"`
	Memo              *string `json:"memo,omitempty"`
}

func (s *Service) ListCars(ctx context.Context, opts ListOptions) ([]Car, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	opts.apply(q)
	return apiclient.Get[[]Car](ctx, s.client, "/cars", q, schemas.CarList)
}

// CreateCar registers a car. The server answers 201 with the stored car.
func (s *Service) CreateCar(ctx context.Context, in CarInput) (*Car, error) {
	in.StockNo = strings.TrimSpace(in.StockNo)
	if in.StockNo == "" {
		return nil, fmt.Errorf("%w: stock_no is required", ErrInvalidInput)
	}
	car, err := apiclient.Post[Car](ctx, s.client, "/cars", in, schemas.Car)
	if err != nil {
		return nil, err
	}
	return &car, nil
}

// ValuateCar asks the server to price the car from its maker, model, year and mileage and returns the
// updated car.
func (s *Service) ValuateCar(ctx context.Context, id string) (*Car, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: car id is required", ErrInvalidInput)
	}
	car, err := apiclient.Post[Car](ctx, s.client, resourcePath("/cars", id)+"/valuation", nil, schemas.Car)
	if err != nil {
		return nil, err
	}
	return &car, nil
}
