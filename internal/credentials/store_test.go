package credentials

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Set(ctx, "abc"))
	token, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, store.Clear(ctx))
	token, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr error
	}{
		{
			name: "memory",
			cfg:  StoreConfig{Backend: BackendMemory},
		},
		{
			name: "empty backend defaults to memory",
			cfg:  StoreConfig{},
		},
		{
			name: "sqlite file",
			cfg:  StoreConfig{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "creds.db")},
		},
		{
			name:    "unknown backend",
			cfg:     StoreConfig{Backend: "localstorage"},
			wantErr: ErrUnknownBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = Close(store) })

			require.NoError(t, store.Set(ctx, "token-"+tt.name))
			got, err := store.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, "token-"+tt.name, got)
		})
	}
}

func TestOpenMissingSettings(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, StoreConfig{Backend: BackendSQLite})
	assert.Error(t, err)

	_, err = Open(ctx, StoreConfig{Backend: BackendPostgres})
	assert.Error(t, err)

	_, err = Open(ctx, StoreConfig{Backend: BackendValkey})
	assert.Error(t, err)
}

func TestSQLiteFilePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	cfg := StoreConfig{
		Backend:    BackendSQLite,
		Slot:       "owner",
		SQLitePath: filepath.Join(t.TempDir(), "creds.db"),
		Key:        "correct horse battery staple",
	}

	first, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "persisted"))
	require.NoError(t, Close(first))

	second, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(second) })

	got, err := second.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	tests := []struct {
		name   string
		token  string
		wantOK bool
		isJWT  bool
	}{
		{"empty", "", false, false},
		{"opaque", "not-a-jwt", false, false},
		{"jwt with exp", signedToken(t, exp), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TokenExpiry(tt.token)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, got.Equal(exp), "exp = %v, want %v", got, exp)
			}
			assert.Equal(t, tt.isJWT, IsJWT(tt.token))
		})
	}
}
