package shop

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

type Expense struct {
	ID            uuid.UUID       `json:"id"`
	StoreID       uuid.UUID       `json:"store_id"`
	ExpenseDate   Date            `json:"expense_date"`
	Category      string          `json:"category"`
	Title         string          `json:"title"`
	Vendor        *string         `json:"vendor,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod *string         `json:"payment_method,omitempty"`
	Note          *string         `json:"note,omitempty"`
}

type ExpenseList struct {
	Items []Expense `json:"items"`
	Total int       `json:"total"`
}

// ExpenseInput creates an expense. StoreID is only needed by users not bound to a store.
type ExpenseInput struct {
	StoreID       *uuid.UUID      `json:"store_id,omitempty"`
	ExpenseDate   Date            `json:"expense_date"`
	Category      string          `json:"category"`
	Title         string          `json:"title"`
	Vendor        *string         `json:"vendor,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod *string         `json:"payment_method,omitempty"`
	Note          *string         `json:"note,omitempty"`
}

func (in ExpenseInput) validate() error {
	switch {
	case in.ExpenseDate.IsZero():
		return fmt.Errorf("%w: expense_date is required", ErrInvalidInput)
	case strings.TrimSpace(in.Category) == "":
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case in.Amount.IsNegative():
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	return nil
}

// ExpenseUpdate changes only the fields that are set.
type ExpenseUpdate struct {
	ExpenseDate   *Date            `json:"expense_date,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Title         *string          `json:"title,omitempty"`
	Vendor        *string          `json:"vendor,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	Note          *string          `json:"note,omitempty"`
}

// ExpenseFilter narrows expense listings and exports. Query matches title, vendor and note.
type ExpenseFilter struct {
	ListOptions
	Query    string
	Start    Date
	End      Date
	Category string
	StoreID  *uuid.UUID
}

func (f ExpenseFilter) query() (url.Values, error) {
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidDateRange, f.End, f.Start)
	}
	q := url.Values{}
	if s := strings.TrimSpace(f.Query); s != "" {
		q.Set("q", s)
	}
	if !f.Start.IsZero() {
		q.Set("start", f.Start.String())
	}
	if !f.End.IsZero() {
		q.Set("end", f.End.String())
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	setStoreID(q, f.StoreID)
	return q, nil
}

func (s *Service) ListExpenses(ctx context.Context, filter ExpenseFilter) (*ExpenseList, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	q, err := filter.query()
	if err != nil {
		return nil, err
	}
	filter.apply(q)

	list, err := apiclient.Get[ExpenseList](ctx, s.client, "/expenses", q, schemas.ExpenseList)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *Service) GetExpense(ctx context.Context, id uuid.UUID) (*Expense, error) {
	exp, err := apiclient.Get[Expense](ctx, s.client, resourcePath("/expenses", id.String()), nil, schemas.Expense)
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

func (s *Service) CreateExpense(ctx context.Context, in ExpenseInput) (*Expense, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	exp, err := apiclient.Post[Expense](ctx, s.client, "/expenses", in, schemas.Expense)
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

func (s *Service) UpdateExpense(ctx context.Context, id uuid.UUID, in ExpenseUpdate) (*Expense, error) {
	if in.Amount != nil && in.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}
	exp, err := apiclient.Put[Expense](ctx, s.client, resourcePath("/expenses", id.String()), in, schemas.Expense)
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// DeleteExpense removes an expense. The server answers 204 with no body.
func (s *Service) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	return apiclient.Delete(ctx, s.client, resourcePath("/expenses", id.String()))
}

func exportQuery(filter ExpenseFilter) (url.Values, error) {
	if err := (DateRange{From: filter.Start, To: filter.End}).Validate(); err != nil {
		return nil, err
	}
	return filter.query()
}

// ExpenseExportURL returns the absolute url of the CSV export, e.g. for a download link.
// The export requires both Start and End. Paging options are ignored.
func (s *Service) ExpenseExportURL(filter ExpenseFilter) (string, error) {
	q, err := exportQuery(filter)
	if err != nil {
		return "", err
	}
	return s.client.ResolveURL("/expenses/export?" + q.Encode())
}

// ExportExpenses downloads the CSV export into w and returns the number of bytes written.
// The body is written as received, including the UTF-8 byte order mark the server adds.
func (s *Service) ExportExpenses(ctx context.Context, filter ExpenseFilter, w io.Writer) (int64, error) {
	q, err := exportQuery(filter)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(ctx, http.MethodGet, "/expenses/export", &apiclient.RequestOptions{
		Query:  q,
		Header: http.Header{"Accept": []string{"text/csv"}},
	})
	if err != nil {
		return 0, err
	}
	n, err := w.Write(resp.Raw)
	if err != nil {
		return int64(n), fmt.Errorf("write expense export: %w", err)
	}
	return int64(n), nil
}
