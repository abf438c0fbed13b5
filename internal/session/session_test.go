package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func validToken(t *testing.T) string {
	return mintToken(t, jwt.MapClaims{
		"user_id":   "u-1",
		"email":     "ada@example.com",
		"full_name": "Ada",
		"role":      "user",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
}

func TestDecodeToken(t *testing.T) {
	tests := []struct {
		name       string
		token      func(t *testing.T) string
		wantErr    bool
		wantUserId string
	}{
		{name: "user_id claim", token: validToken, wantUserId: "u-1"},
		{name: "sub fallback", token: func(t *testing.T) string {
			return mintToken(t, jwt.MapClaims{"sub": "u-2"})
		}, wantUserId: "u-2"},
		{name: "numeric id", token: func(t *testing.T) string {
			return mintToken(t, jwt.MapClaims{"id": float64(7)})
		}, wantUserId: "7"},
		{name: "garbage", token: func(t *testing.T) string { return "not.a.jwt" }, wantErr: true},
		{name: "empty", token: func(t *testing.T) string { return "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := DecodeToken(tt.token(t))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidToken)
				assert.True(t, apperr.IsUnauthorized(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUserId, id.UserId)
		})
	}
}

func TestGuardSetSessionPersistsAndNotifies(t *testing.T) {
	store := NewMemoryStore()
	g := NewGuard(store, logger.NewNopLogger())

	var seen []Session
	unsubscribe := g.OnChange(func(s Session) { seen = append(seen, s) })
	defer unsubscribe()

	token := validToken(t)
	require.NoError(t, g.SetSession(context.Background(), token))

	got, ok := g.CurrentToken()
	assert.True(t, ok)
	assert.Equal(t, token, got)

	id, ok := g.Identity()
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada", id.FullName)

	persisted, found, err := store.Load(context.Background(), StorageKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, token, persisted)

	require.Len(t, seen, 1)
	assert.True(t, seen[0].IsAuthenticated)
	assert.Equal(t, "u-1", seen[0].Identity.UserId)
}

func TestGuardSetSessionRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{name: "undecodable", token: func(t *testing.T) string { return "abc" }},
		{name: "expired", token: func(t *testing.T) string {
			return mintToken(t, jwt.MapClaims{"user_id": "u-1", "exp": time.Now().Add(-time.Minute).Unix()})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			g := NewGuard(store, logger.NewNopLogger())
			require.NoError(t, g.SetSession(context.Background(), validToken(t)))

			err := g.SetSession(context.Background(), tt.token(t))

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.False(t, g.IsAuthenticated())
			_, found, _ := store.Load(context.Background(), StorageKey)
			assert.False(t, found)
		})
	}
}

func TestGuardClearSession(t *testing.T) {
	store := NewMemoryStore()
	g := NewGuard(store, logger.NewNopLogger())
	require.NoError(t, g.SetSession(context.Background(), validToken(t)))

	notified := 0
	g.OnChange(func(s Session) {
		notified++
		assert.False(t, s.IsAuthenticated)
		assert.Nil(t, s.Identity)
	})

	g.ClearSession(context.Background())
	g.ClearSession(context.Background())

	assert.False(t, g.IsAuthenticated())
	assert.Equal(t, 1, notified)
	_, found, _ := store.Load(context.Background(), StorageKey)
	assert.False(t, found)

	err := g.RequireAuth()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestGuardRestore(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		stored    func(t *testing.T) (string, bool)
		wantAuth  bool
		wantStore bool
	}{
		{name: "nothing stored", stored: func(t *testing.T) (string, bool) { return "", false }},
		{name: "valid token", stored: func(t *testing.T) (string, bool) {
			return mintToken(t, jwt.MapClaims{"user_id": "u-1", "exp": now.Add(time.Hour).Unix()}), true
		}, wantAuth: true, wantStore: true},
		{name: "garbage is discarded", stored: func(t *testing.T) (string, bool) { return "%%%", true }},
		{name: "expired is discarded", stored: func(t *testing.T) (string, bool) {
			return mintToken(t, jwt.MapClaims{"user_id": "u-1", "exp": now.Add(-time.Hour).Unix()}), true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			if v, ok := tt.stored(t); ok {
				require.NoError(t, store.Save(ctx, StorageKey, v))
			}

			g := NewGuard(store, logger.NewNopLogger(), WithClock(func() time.Time { return now }))
			s := g.Restore(ctx)

			assert.Equal(t, tt.wantAuth, s.IsAuthenticated)
			_, found, _ := store.Load(ctx, StorageKey)
			assert.Equal(t, tt.wantStore, found)
		})
	}
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Load(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestGuardRestoreStoreFailureStartsCleared(t *testing.T) {
	g := NewGuard(&failingStore{MemoryStore: *NewMemoryStore()}, logger.NewNopLogger())
	s := g.Restore(context.Background())
	assert.False(t, s.IsAuthenticated)
}

func TestGuardUnsubscribe(t *testing.T) {
	g := NewGuard(NewMemoryStore(), logger.NewNopLogger())
	calls := 0
	unsubscribe := g.OnChange(func(Session) { calls++ })
	unsubscribe()

	require.NoError(t, g.SetSession(context.Background(), validToken(t)))
	assert.Zero(t, calls)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	_, found, err := store.Load(ctx, StorageKey)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, StorageKey, "tok"))
	require.NoError(t, store.Save(ctx, "other", "x"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened := NewFileStore(path)
	v, found, err := reopened.Load(ctx, StorageKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tok", v)

	require.NoError(t, reopened.Delete(ctx, StorageKey))
	_, found, _ = reopened.Load(ctx, StorageKey)
	assert.False(t, found)
	v, found, _ = reopened.Load(ctx, "other")
	assert.True(t, found)
	assert.Equal(t, "x", v)
}

func TestFileStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewFileStore(path)
	_, _, err := store.Load(ctx, StorageKey)
	require.Error(t, err)

	require.NoError(t, store.Delete(ctx, StorageKey))
	_, found, err := store.Load(ctx, StorageKey)
	require.NoError(t, err)
	assert.False(t, found)
}
