package shop

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

// Work is a billable work item from the store's price list.
type Work struct {
	ID        uuid.UUID       `json:"id"`
	StoreID   uuid.UUID       `json:"store_id"`
	Code      *string         `json:"code,omitempty"`
	Name      string          `json:"name"`
	Unit      *string         `json:"unit,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Note      *string         `json:"note,omitempty"`
}

type WorkInput struct {
	StoreID   uuid.UUID       `json:"store_id"`
	Code      *string         `json:"code,omitempty"`
	Name      string          `json:"name"`
	Unit      *string         `json:"unit,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Note      *string         `json:"note,omitempty"`
}

type WorkUpdate struct {
	Code      *string          `json:"code,omitempty"`
	Name      *string          `json:"name,omitempty"`
	Unit      *string          `json:"unit,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Note      *string          `json:"note,omitempty"`
}

type WorkFilter struct {
	ListOptions
	Query string
}

// ListWorks returns work items ordered by name. Query is a substring match on the name.
func (s *Service) ListWorks(ctx context.Context, filter WorkFilter) ([]Work, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	filter.apply(q)
	if v := strings.TrimSpace(filter.Query); v != "" {
		q.Set("q", v)
	}
	return apiclient.Get[[]Work](ctx, s.client, "/works", q, schemas.WorkList)
}

func (s *Service) GetWork(ctx context.Context, id uuid.UUID) (*Work, error) {
	w, err := apiclient.Get[Work](ctx, s.client, resourcePath("/works", id.String()), nil, schemas.Work)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Service) CreateWork(ctx context.Context, in WorkInput) (*Work, error) {
	switch {
	case in.StoreID == uuid.Nil:
		return nil, fmt.Errorf("%w: store_id is required", ErrInvalidInput)
	case strings.TrimSpace(in.Name) == "":
		return nil, fmt.Errorf("%w: work name is required", ErrInvalidInput)
	case in.UnitPrice.IsNegative():
		return nil, fmt.Errorf("%w: unit_price must not be negative", ErrInvalidInput)
	}
	w, err := apiclient.Post[Work](ctx, s.client, "/works", in, schemas.Work)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Service) UpdateWork(ctx context.Context, id uuid.UUID, in WorkUpdate) (*Work, error) {
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: unit_price must not be negative", ErrInvalidInput)
	}
	w, err := apiclient.Put[Work](ctx, s.client, resourcePath("/works", id.String()), in, schemas.Work)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Service) DeleteWork(ctx context.Context, id uuid.UUID) error {
	_, err := apiclient.Request[map[string]any](ctx, s.client, http.MethodDelete, resourcePath("/works", id.String()), nil, schemas.Deleted)
	return err
}

// WorkMaterial is one line of a work's bill of materials: QtyPerWork of an inventory item is issued each
// time the work is billed.
type WorkMaterial struct {
	ID         uuid.UUID       `json:"id"`
	StoreID    uuid.UUID       `json:"store_id"`
	WorkID     uuid.UUID       `json:"work_id"`
	ItemID     uuid.UUID       `json:"item_id"`
	QtyPerWork decimal.Decimal `json:"qty_per_work"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type WorkMaterialInput struct {
	StoreID    uuid.UUID       `json:"store_id"`
	ItemID     uuid.UUID       `json:"item_id"`
	QtyPerWork decimal.Decimal `json:"qty_per_work"`
}

func materialsPath(workID uuid.UUID) string {
	return resourcePath("/works", workID.String()) + "/materials"
}

func (s *Service) ListWorkMaterials(ctx context.Context, workID uuid.UUID) ([]WorkMaterial, error) {
	return apiclient.Get[[]WorkMaterial](ctx, s.client, materialsPath(workID), nil, schemas.WorkMaterialList)
}

// AddWorkMaterial attaches an item to the work. The server answers 409 when the item is already attached.
func (s *Service) AddWorkMaterial(ctx context.Context, workID uuid.UUID, in WorkMaterialInput) (*WorkMaterial, error) {
	switch {
	case workID == uuid.Nil:
		return nil, fmt.Errorf("%w: work id is required", ErrInvalidInput)
	case in.StoreID == uuid.Nil:
		return nil, fmt.Errorf("%w: store_id is required", ErrInvalidInput)
	case in.ItemID == uuid.Nil:
		return nil, fmt.Errorf("%w: item_id is required", ErrInvalidInput)
	case !in.QtyPerWork.IsPositive():
		return nil, fmt.Errorf("%w: qty_per_work must be greater than 0", ErrInvalidInput)
	}
	body := struct {
		WorkMaterialInput
		WorkID uuid.UUID `json:"work_id"`
	}{in, workID}
	m, err := apiclient.Post[WorkMaterial](ctx, s.client, materialsPath(workID), body, schemas.WorkMaterial)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) UpdateWorkMaterial(ctx context.Context, workID, materialID uuid.UUID, qtyPerWork decimal.Decimal) (*WorkMaterial, error) {
	if !qtyPerWork.IsPositive() {
		return nil, fmt.Errorf("%w: qty_per_work must be greater than 0", ErrInvalidInput)
	}
	body := map[string]decimal.Decimal{"qty_per_work": qtyPerWork}
	m, err := apiclient.Put[WorkMaterial](ctx, s.client, resourcePath(materialsPath(workID), materialID.String()), body, schemas.WorkMaterial)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) RemoveWorkMaterial(ctx context.Context, workID, materialID uuid.UUID) error {
	_, err := apiclient.Request[map[string]any](ctx, s.client, http.MethodDelete, resourcePath(materialsPath(workID), materialID.String()), nil, schemas.Deleted)
	return err
}
