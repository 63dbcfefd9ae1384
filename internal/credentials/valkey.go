package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

const valkeyKeyPrefix = "vlp:credential:"

// NewValkeyClient connects using a redis:// or rediss:// uri.
func NewValkeyClient(uri string) (valkey.Client, error) {
	if uri == "" {
		return nil, errors.New("valkey credential store requires a uri")
	}

	options, err := valkey.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid valkey uri: %w", err)
	}

	client, err := valkey.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}
	return client, nil
}

// ValkeyStore keeps the credential under vlp:credential:<slot>.
// JWT credentials expire from the store when the token does.
type ValkeyStore struct {
	client     valkey.Client
	key        string
	now        func() time.Time
	ownsClient bool
}

var _ Store = (*ValkeyStore)(nil)

func NewValkeyStore(client valkey.Client, slot string) *ValkeyStore {
	return &ValkeyStore{
		client: client,
		key:    valkeyKeyPrefix + slot,
		now:    time.Now,
	}
}

func (s *ValkeyStore) Get(ctx context.Context) (string, error) {
	token, err := s.client.Do(ctx, s.client.B().Get().Key(s.key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", s.key, err)
	}
	return token, nil
}

func (s *ValkeyStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}

	var err error
	if exp, ok := TokenExpiry(token); ok {
		ttl := int64(exp.Sub(s.now()).Seconds())
		if ttl <= 0 {
			// already expired, nothing worth keeping
			return s.Clear(ctx)
		}
		err = s.client.Do(ctx, s.client.B().Set().Key(s.key).Value(token).ExSeconds(ttl).Build()).Error()
	} else {
		err = s.client.Do(ctx, s.client.B().Set().Key(s.key).Value(token).Build()).Error()
	}
	if err != nil {
		return fmt.Errorf("set credential %q: %w", s.key, err)
	}
	return nil
}

func (s *ValkeyStore) Clear(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key).Build()).Error(); err != nil {
		return fmt.Errorf("clear credential %q: %w", s.key, err)
	}
	return nil
}

// Close closes the client when the store created it.
func (s *ValkeyStore) Close() error {
	if s.ownsClient {
		s.client.Close()
	}
	return nil
}
