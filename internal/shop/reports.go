package shop

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

// SalesMode selects whether sales figures exclude or include tax.
type SalesMode string

const (
	SalesExclusive SalesMode = "exclusive"
	SalesInclusive SalesMode = "inclusive"
)

type ReportOptions struct {
	Range     DateRange
	StoreID   *uuid.UUID
	SalesMode SalesMode
}

func (o ReportOptions) query() (url.Values, error) {
	if err := o.Range.Validate(); err != nil {
		return nil, err
	}
	switch o.SalesMode {
	case "", SalesExclusive, SalesInclusive:
	default:
		return nil, fmt.Errorf("%w: unknown sales mode %q", ErrInvalidInput, o.SalesMode)
	}

	q := url.Values{}
	q.Set("date_from", o.Range.From.String())
	q.Set("date_to", o.Range.To.String())
	setStoreID(q, o.StoreID)
	if o.SalesMode != "" {
		q.Set("sales_mode", string(o.SalesMode))
	}
	return q, nil
}

type ProfitSummary struct {
	DateFrom   Date    `json:"date_from"`
	DateTo     Date    `json:"date_to"`
	Sales      int64   `json:"sales"`
	Cost       int64   `json:"cost"`
	Profit     int64   `json:"profit"`
	MarginRate float64 `json:"margin_rate"`
}

type DashboardSummary struct {
	ProfitSummary
	IssuedCount    int   `json:"issued_count"`
	InventoryValue int64 `json:"inventory_value"`
}

// ProfitSummary returns sales of issued invoices against recorded costs for the range.
func (s *Service) ProfitSummary(ctx context.Context, opts ReportOptions) (*ProfitSummary, error) {
	q, err := opts.query()
	if err != nil {
		return nil, err
	}
	sum, err := apiclient.Get[ProfitSummary](ctx, s.client, "/reports/profit-summary", q, schemas.ProfitSummary)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// DashboardSummary adds the issued invoice count and the current inventory value to the profit summary.
func (s *Service) DashboardSummary(ctx context.Context, opts ReportOptions) (*DashboardSummary, error) {
	q, err := opts.query()
	if err != nil {
		return nil, err
	}
	sum, err := apiclient.Get[DashboardSummary](ctx, s.client, "/dashboard/summary", q, schemas.DashboardSummary)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

type ProfitRow struct {
	Sales  int64 `json:"sales"`
	Cost   int64 `json:"cost"`
	Profit int64 `json:"profit"`
}

type DailyProfitRow struct {
	Day Date `json:"day"`
	ProfitRow
}

// MonthlyProfitRow is keyed by the first day of the month.
type MonthlyProfitRow struct {
	Month Date `json:"month"`
	ProfitRow
}

type WorkProfitRow struct {
	WorkID   uuid.UUID `json:"work_id"`
	WorkName string    `json:"work_name"`
	ProfitRow
}

type ItemCostRow struct {
	ItemID   uuid.UUID `json:"item_id"`
	ItemName string    `json:"item_name"`
	Qty      float64   `json:"qty"`
	Cost     int64     `json:"cost"`
}

// Report is the envelope shared by the tabular reports.
type Report[R any] struct {
	DateFrom Date `json:"date_from"`
	DateTo   Date `json:"date_to"`
	Rows     []R  `json:"rows"`
}

func getReport[R any](ctx context.Context, s *Service, path string, q url.Values, schema string) (*Report[R], error) {
	rep, err := apiclient.Get[Report[R]](ctx, s.client, path, q, schema)
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

// ProfitDaily returns one row per day with issued invoices or recorded costs. Days with neither are absent.
func (s *Service) ProfitDaily(ctx context.Context, opts ReportOptions) (*Report[DailyProfitRow], error) {
	q, err := opts.query()
	if err != nil {
		return nil, err
	}
	return getReport[DailyProfitRow](ctx, s, "/reports/profit-daily", q, schemas.ProfitDaily)
}

func (s *Service) ProfitMonthly(ctx context.Context, opts ReportOptions) (*Report[MonthlyProfitRow], error) {
	q, err := opts.query()
	if err != nil {
		return nil, err
	}
	return getReport[MonthlyProfitRow](ctx, s, "/reports/profit-monthly", q, schemas.ProfitMonthly)
}

// ProfitByWork splits each invoice's material cost across its works in proportion to their sales.
func (s *Service) ProfitByWork(ctx context.Context, opts ReportOptions) (*Report[WorkProfitRow], error) {
	q, err := opts.query()
	if err != nil {
		return nil, err
	}
	return getReport[WorkProfitRow](ctx, s, "/reports/profit-by-work", q, schemas.ProfitByWork)
}

// CostByItem totals issued stock per inventory item, highest cost first. Sales mode does not apply.
func (s *Service) CostByItem(ctx context.Context, opts ReportOptions) (*Report[ItemCostRow], error) {
	q, err := opts.query()
	if err != nil {
		return nil, err
	}
	q.Del("sales_mode")
	return getReport[ItemCostRow](ctx, s, "/reports/cost-by-item", q, schemas.CostByItem)
}
