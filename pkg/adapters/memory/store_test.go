package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/quarry/pkg/adapters/memory"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSessionStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	s := domain.NewSession("iso", false)
	s.Vocabulary = []string{"age"}
	require.NoError(t, store.Save(ctx, "iso", s))

	s.Vocabulary[0] = "mutated"
	s.Target["age"] = domain.AtLeast(1)

	loaded, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, []string{"age"}, loaded.Vocabulary)
	assert.Empty(t, loaded.Target)

	loaded.Vocabulary[0] = "again"
	reloaded, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "age", reloaded.Vocabulary[0])
}
