package shop

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

type BillingKind string

const (
	KindEstimate BillingKind = "estimate"
	KindInvoice  BillingKind = "invoice"
)

type BillingStatus string

const (
	StatusDraft  BillingStatus = "draft"
	StatusIssued BillingStatus = "issued"
	StatusVoid   BillingStatus = "void"
)

// BillingDoc is an estimate or invoice. Lines are only populated by GetBilling.
type BillingDoc struct {
	ID           uuid.UUID      `json:"id"`
	StoreID      *string        `json:"store_id,omitempty"`
	Kind         BillingKind    `json:"kind"`
	Status       BillingStatus  `json:"status"`
	CustomerName *string        `json:"customer_name,omitempty"`
	Subtotal     int64          `json:"subtotal"`
	TaxTotal     int64          `json:"tax_total"`
	Total        int64          `json:"total"`
	IssuedAt     *string        `json:"issued_at,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	Lines        []BillingLine  `json:"lines,omitempty"`
}

type BillingLine struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	Unit      *string `json:"unit,omitempty"`
	UnitPrice *int64  `json:"unit_price,omitempty"`
	CostPrice *int64  `json:"cost_price,omitempty"`
	Amount    *int64  `json:"amount,omitempty"`
	SortOrder int     `json:"sort_order"`
}

type BillingFilter struct {
	ListOptions
	Status BillingStatus
	Kind   BillingKind
}

func (f BillingFilter) query() (url.Values, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	switch f.Status {
	case "", StatusDraft, StatusIssued, StatusVoid:
	default:
		return nil, fmt.Errorf("%w: unknown billing status %q", ErrInvalidInput, f.Status)
	}
	switch f.Kind {
	case "", KindEstimate, KindInvoice:
	default:
		return nil, fmt.Errorf("%w: unknown billing kind %q", ErrInvalidInput, f.Kind)
	}

	q := url.Values{}
	f.apply(q)
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Kind != "" {
		q.Set("kind", string(f.Kind))
	}
	return q, nil
}

// ListBilling returns billing documents, newest first, without their lines.
func (s *Service) ListBilling(ctx context.Context, filter BillingFilter) ([]BillingDoc, error) {
	q, err := filter.query()
	if err != nil {
		return nil, err
	}
	return apiclient.Get[[]BillingDoc](ctx, s.client, "/billing", q, schemas.BillingList)
}

func (s *Service) GetBilling(ctx context.Context, id uuid.UUID) (*BillingDoc, error) {
	doc, err := apiclient.Get[BillingDoc](ctx, s.client, resourcePath("/billing", id.String()), nil, schemas.BillingDoc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
