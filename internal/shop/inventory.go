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

// InventoryItem is a stocked part or consumable. Quantities are decimal so fractional units (litres) are exact.
// Timestamps are kept as sent; the server may omit the zone.
type InventoryItem struct {
	ID        uuid.UUID       `json:"id"`
	StoreID   uuid.UUID       `json:"store_id"`
	SKU       *string         `json:"sku,omitempty"`
	Name      string          `json:"name"`
	Unit      *string         `json:"unit,omitempty"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	QtyOnHand decimal.Decimal `json:"qty_on_hand"`
	Note      *string         `json:"note,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type InventoryItemInput struct {
	StoreID   uuid.UUID       `json:"store_id"`
	SKU       *string         `json:"sku,omitempty"`
	Name      string          `json:"name"`
	Unit      *string         `json:"unit,omitempty"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	QtyOnHand decimal.Decimal `json:"qty_on_hand"`
	Note      *string         `json:"note,omitempty"`
}

type InventoryItemUpdate struct {
	SKU       *string          `json:"sku,omitempty"`
	Name      *string          `json:"name,omitempty"`
	Unit      *string          `json:"unit,omitempty"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	QtyOnHand *decimal.Decimal `json:"qty_on_hand,omitempty"`
	Note      *string          `json:"note,omitempty"`
}

type InventoryFilter struct {
	ListOptions
	Query string
}

// StockMoveType is the direction of a stock movement.
type StockMoveType string

const (
	MoveIn     StockMoveType = "in"
	MoveOut    StockMoveType = "out"
	MoveAdjust StockMoveType = "adjust"
)

func (t StockMoveType) Valid() bool {
	switch t {
	case MoveIn, MoveOut, MoveAdjust:
		return true
	}
	return false
}

type StockMove struct {
	ID        uuid.UUID       `json:"id"`
	StoreID   uuid.UUID       `json:"store_id"`
	ItemID    uuid.UUID       `json:"item_id"`
	MoveType  StockMoveType   `json:"move_type"`
	Qty       decimal.Decimal `json:"qty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	RefType   *string         `json:"ref_type,omitempty"`
	RefID     *uuid.UUID      `json:"ref_id,omitempty"`
	Note      *string         `json:"note,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// StockMoveInput records a manual receipt, issue or stocktake adjustment.
// A nil UnitCost lets the server use the item's cost price.
type StockMoveInput struct {
	StoreID  uuid.UUID        `json:"store_id"`
	ItemID   uuid.UUID        `json:"item_id"`
	MoveType StockMoveType    `json:"move_type"`
	Qty      decimal.Decimal  `json:"qty"`
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
	RefType  *string          `json:"ref_type,omitempty"`
	RefID    *uuid.UUID       `json:"ref_id,omitempty"`
	Note     *string          `json:"note,omitempty"`
}

type StockMoveFilter struct {
	ListOptions
	ItemID *uuid.UUID
}

func checkPrices(prices map[string]*decimal.Decimal) error {
	for name, p := range prices {
		if p != nil && p.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, name)
		}
	}
	return nil
}

// ListInventoryItems returns the caller's store items. Query is a substring match on the name.
func (s *Service) ListInventoryItems(ctx context.Context, filter InventoryFilter) ([]InventoryItem, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	filter.apply(q)
	if v := strings.TrimSpace(filter.Query); v != "" {
		q.Set("q", v)
	}
	return apiclient.Get[[]InventoryItem](ctx, s.client, "/inventory/items", q, schemas.InventoryItemList)
}

func (s *Service) GetInventoryItem(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	item, err := apiclient.Get[InventoryItem](ctx, s.client, resourcePath("/inventory/items", id.String()), nil, schemas.InventoryItem)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) CreateInventoryItem(ctx context.Context, in InventoryItemInput) (*InventoryItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.StoreID == uuid.Nil:
		return nil, fmt.Errorf("%w: store_id is required", ErrInvalidInput)
	case in.Name == "":
		return nil, fmt.Errorf("%w: item name is required", ErrInvalidInput)
	}
	if err := checkPrices(map[string]*decimal.Decimal{
		"cost_price": &in.CostPrice,
		"sale_price": &in.SalePrice,
	}); err != nil {
		return nil, err
	}
	item, err := apiclient.Post[InventoryItem](ctx, s.client, "/inventory/items", in, schemas.InventoryItem)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) UpdateInventoryItem(ctx context.Context, id uuid.UUID, in InventoryItemUpdate) (*InventoryItem, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: item name must not be blank", ErrInvalidInput)
	}
	if err := checkPrices(map[string]*decimal.Decimal{
		"cost_price": in.CostPrice,
		"sale_price": in.SalePrice,
	}); err != nil {
		return nil, err
	}
	item, err := apiclient.Put[InventoryItem](ctx, s.client, resourcePath("/inventory/items", id.String()), in, schemas.InventoryItem)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) DeleteInventoryItem(ctx context.Context, id uuid.UUID) error {
	_, err := apiclient.Request[map[string]any](ctx, s.client, http.MethodDelete, resourcePath("/inventory/items", id.String()), nil, schemas.Deleted)
	return err
}

// ListStockMoves returns movements newest first, optionally for a single item.
func (s *Service) ListStockMoves(ctx context.Context, filter StockMoveFilter) ([]StockMove, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	filter.apply(q)
	if filter.ItemID != nil && *filter.ItemID != uuid.Nil {
		q.Set("item_id", filter.ItemID.String())
	}
	return apiclient.Get[[]StockMove](ctx, s.client, "/inventory/moves", q, schemas.StockMoveList)
}

// CreateStockMove posts a manual movement. The server updates qty_on_hand in the same transaction.
func (s *Service) CreateStockMove(ctx context.Context, in StockMoveInput) (*StockMove, error) {
	switch {
	case in.StoreID == uuid.Nil:
		return nil, fmt.Errorf("%w: store_id is required", ErrInvalidInput)
	case in.ItemID == uuid.Nil:
		return nil, fmt.Errorf("%w: item_id is required", ErrInvalidInput)
	case !in.MoveType.Valid():
		return nil, fmt.Errorf("%w: unknown move type %q", ErrInvalidInput, in.MoveType)
	case !in.Qty.IsPositive():
		return nil, fmt.Errorf("%w: qty must be greater than 0", ErrInvalidInput)
	}
	if err := checkPrices(map[string]*decimal.Decimal{"unit_cost": in.UnitCost}); err != nil {
		return nil, err
	}
	move, err := apiclient.Post[StockMove](ctx, s.client, "/inventory/moves", in, schemas.StockMove)
	if err != nil {
		return nil, err
	}
	return &move, nil
}
