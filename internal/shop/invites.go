package shop

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/yy184292-glitch/vlp-saas-sub000/internal/apiclient"
	"github.com/yy184292-glitch/vlp-saas-sub000/internal/schemas"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Seats reports how many active users a store has against its plan limit.
type Seats struct {
	StoreID     uuid.UUID `json:"store_id"`
	PlanCode    string    `json:"plan_code"`
	SeatLimit   int       `json:"seat_limit"`
	ActiveUsers int       `json:"active_users"`
}

func (s Seats) Available() int {
	if n := s.SeatLimit - s.ActiveUsers; n > 0 {
		return n
	}
	return 0
}

type Invite struct {
	ID        uuid.UUID `json:"id"`
	StoreID   uuid.UUID `json:"store_id"`
	Code      string    `json:"code"`
	Role      Role      `json:"role"`
	MaxUses   int       `json:"max_uses"`
	UsedCount int       `json:"used_count"`
	ExpiresAt *string   `json:"expires_at,omitempty"`
}

// InviteInput creates an invite code. Zero values take the server defaults
// (staff, one use, no expiry, ten characters).
type InviteInput struct {
	Role       Role       `json:"role,omitempty"`
	MaxUses    int        `json:"max_uses,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CodeLength int        `json:"code_length,omitempty"`
}

const (
	maxInviteUses       = 50
	minInviteCodeLength = 6
	maxInviteCodeLength = 24
)

func (in InviteInput) validate() error {
	if in.Role != "" && !in.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if in.MaxUses < 0 || in.MaxUses > maxInviteUses {
		return fmt.Errorf("%w: max_uses must be between 0 (server default) and %d", ErrInvalidInput, maxInviteUses)
	}
	if in.CodeLength != 0 && (in.CodeLength < minInviteCodeLength || in.CodeLength > maxInviteCodeLength) {
		return fmt.Errorf("%w: code_length must be between %d and %d", ErrInvalidInput, minInviteCodeLength, maxInviteCodeLength)
	}
	return nil
}

func (s *Service) Seats(ctx context.Context) (*Seats, error) {
	seats, err := apiclient.Get[Seats](ctx, s.client, "/invites/seats", nil, schemas.Seats)
	if err != nil {
		return nil, err
	}
	return &seats, nil
}

// ListInvites requires the admin or manager role.
func (s *Service) ListInvites(ctx context.Context, opts ListOptions) ([]Invite, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	opts.apply(q)
	return apiclient.Get[[]Invite](ctx, s.client, "/invites", q, schemas.InviteList)
}

// CreateInvite requires the admin or manager role.
func (s *Service) CreateInvite(ctx context.Context, in InviteInput) (*Invite, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	inv, err := apiclient.Post[Invite](ctx, s.client, "/invites", in, schemas.Invite)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
