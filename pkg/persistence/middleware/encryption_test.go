package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/aretw0/quarry/pkg/adapters/memory"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/persistence/middleware"
	"github.com/aretw0/quarry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secure(t *testing.T, next ports.SessionStore, cfg middleware.EncryptionConfig) ports.SessionStore {
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return middleware.Chain(next, mw)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, secure(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	s := domain.NewSession("test-session", false)
	s.Enter(domain.PhaseDataIngest)
	s.Transcript.Append(domain.RoleUser, "my salary column is secret")
	require.NoError(t, store.Save(ctx, "test-session", s))

	raw, err := underlying.Load(ctx, "test-session")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)
	assert.Empty(t, raw.Transcript, "transcript must not reach the backing store")
	assert.Equal(t, domain.PhaseDataIngest, raw.Phase)

	loaded, err := store.Load(ctx, "test-session")
	require.NoError(t, err)
	require.Len(t, loaded.Transcript, 1)
	assert.Equal(t, "my salary column is secret", loaded.Transcript[0].Content)
	assert.Empty(t, loaded.Sealed)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	require.NoError(t, secure(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey}).
		Save(ctx, "s1", domain.NewSession("s1", false)))

	rotated := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", loaded.ID)

	withoutFallback := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey})
	_, err = withoutFallback.Load(ctx, "s1")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainSession(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, "plain", domain.NewSession("plain", false)))

	_, err := secure(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)}).Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)
}

func TestEncryptionMiddleware_PropagatesNotFound(t *testing.T) {
	_, err := secure(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}).
		Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionConfig(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)

	key := generateKey(t)
	parsed, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)
	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}
