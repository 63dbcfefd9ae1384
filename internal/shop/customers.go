package shop

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

type Customer struct {
	ID            uuid.UUID `json:"id"`
	StoreID       uuid.UUID `json:"store_id"`
	Name          string    `json:"name"`
	NameKana      *string   `json:"name_kana,omitempty"`
	Honorific     *string   `json:"honorific,omitempty"`
	PostalCode    *string   `json:"postal_code,omitempty"`
	Address1      *string   `json:"address1,omitempty"`
	Address2      *string   `json:"address2,omitempty"`
	Tel           *string   `json:"tel,omitempty"`
	Email         *string   `json:"email,omitempty"`
	ContactPerson *string   `json:"contact_person,omitempty"`
	InvoiceNumber *string   `json:"invoice_number,omitempty"`
	PaymentTerms  *string   `json:"payment_terms,omitempty"`
}

// CustomerInput is used for both create and update. On update unset fields are left unchanged.
type CustomerInput struct {
	StoreID       *uuid.UUID `json:"store_id,omitempty"`
	Name          *string    `json:"name,omitempty"`
	NameKana      *string    `json:"name_kana,omitempty"`
	Honorific     *string    `json:"honorific,omitempty"`
	PostalCode    *string    `json:"postal_code,omitempty"`
	Address1      *string    `json:"address1,omitempty"`
	Address2      *string    `json:"address2,omitempty"`
	Tel           *string    `json:"tel,omitempty"`
	Email         *string    `json:"email,omitempty"`
	ContactPerson *string    `json:"contact_person,omitempty"`
	InvoiceNumber *string    `json:"invoice_number,omitempty"`
	PaymentTerms  *string    `json:"payment_terms,omitempty"`
}

// ListCustomers returns the customers of the caller's store, newest first.
func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return apiclient.Get[[]Customer](ctx, s.client, "/customers", nil, schemas.CustomerList)
}

func (s *Service) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	c, err := apiclient.Get[Customer](ctx, s.client, resourcePath("/customers", id.String()), nil, schemas.Customer)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	c, err := apiclient.Post[Customer](ctx, s.client, "/customers", in, schemas.Customer)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id uuid.UUID, in CustomerInput) (*Customer, error) {
	// the store of an existing customer cannot change
	in.StoreID = nil
	c, err := apiclient.Put[Customer](ctx, s.client, resourcePath("/customers", id.String()), in, schemas.Customer)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	_, err := apiclient.Request[map[string]any](ctx, s.client, http.MethodDelete, resourcePath("/customers", id.String()), nil, schemas.Deleted)
	return err
}
