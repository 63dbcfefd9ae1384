package shop

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

// StoreProfile holds the address, registered invoice number and bank details printed on documents.
type StoreProfile struct {
	PostalCode        *string `json:"postal_code,omitempty"`
	Address1          *string `json:"address1,omitempty"`
	Address2          *string `json:"address2,omitempty"`
	Tel               *string `json:"tel,omitempty"`
	Email             *string `json:"email,omitempty"`
	InvoiceNumber     *string `json:"invoice_number,omitempty"`
	BankName          *string `json:"bank_name,omitempty"`
	BankBranch        *string `json:"bank_branch,omitempty"`
	BankAccountType   *string `json:"bank_account_type,omitempty"`
	BankAccountNumber *string `json:"bank_account_number,omitempty"`
	BankAccountHolder *string `json:"bank_account_holder,omitempty"`
}

type Store struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	StoreProfile
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type StoreInput struct {
	Name string `json:"name"`
	StoreProfile
}

// StoreUpdate changes only the fields that are set.
type StoreUpdate struct {
	Name *string `json:"name,omitempty"`
	StoreProfile
}

const maxStoreNameLength = 255

func checkStoreName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: store name is required", ErrInvalidInput)
	}
	if len([]rune(name)) > maxStoreNameLength {
		return fmt.Errorf("%w: store name must be at most %d characters", ErrInvalidInput, maxStoreNameLength)
	}
	return nil
}

// ListStores returns the stores visible to the caller, which for a store user is only their own.
func (s *Service) ListStores(ctx context.Context, opts ListOptions) ([]Store, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	opts.apply(q)
	return apiclient.Get[[]Store](ctx, s.client, "/stores", q, schemas.StoreList)
}

func (s *Service) GetStore(ctx context.Context, id uuid.UUID) (*Store, error) {
	st, err := apiclient.Get[Store](ctx, s.client, resourcePath("/stores", id.String()), nil, schemas.Store)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) CreateStore(ctx context.Context, in StoreInput) (*Store, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStoreName(in.Name); err != nil {
		return nil, err
	}
	st, err := apiclient.Post[Store](ctx, s.client, "/stores", in, schemas.Store)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) UpdateStore(ctx context.Context, id uuid.UUID, in StoreUpdate) (*Store, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := checkStoreName(name); err != nil {
			return nil, err
		}
		in.Name = &name
	}
	st, err := apiclient.Put[Store](ctx, s.client, resourcePath("/stores", id.String()), in, schemas.Store)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
