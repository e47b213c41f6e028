package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/quarry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, true)
		session.Enter(domain.PhaseDataIngest)
		session.QueryType = domain.QueryRecommend
		session.Vocabulary = []string{"age", "income"}
		session.Target["income"] = domain.DirectiveConstraint(domain.Maximize)
		session.UserConstraints["age"] = domain.AtLeast(18)
		session.FixedColumns["gender"] = domain.ExactText("Male")
		session.Overlay = domain.OverlayTargetForm
		session.Transcript.Append(domain.RoleUser, "recommend")

		err := store.Save(ctx, sessionID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.PhaseDataIngest, loaded.Phase)
		assert.Equal(t, domain.OverlayTargetForm, loaded.Overlay)
		assert.Equal(t, domain.QueryRecommend, loaded.QueryType)
		assert.Equal(t, session.Vocabulary, loaded.Vocabulary)
		assert.Equal(t, session.Target, loaded.Target)
		assert.Equal(t, session.UserConstraints, loaded.UserConstraints)
		assert.Equal(t, session.FixedColumns, loaded.FixedColumns)
		assert.Equal(t, session.Transcript, loaded.Transcript)
		assert.Equal(t, session.History, loaded.History)
		assert.True(t, loaded.SubsetSampling)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSession(sessionID, false))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1, false))
		_ = store.Save(ctx, id2, domain.NewSession(id2, false))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
