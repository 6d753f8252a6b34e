package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk-ai/agenthub/internal/model"
	"github.com/fintalk-ai/agenthub/internal/store"
)

func testDescriptor(id, name string) model.AgentDescriptor {
	return model.AgentDescriptor{
		ID:           id,
		Name:         name,
		Type:         model.TypeConversational,
		Instructions: "Eres un asistente bancario.",
		Tools: []model.ToolDescriptor{
			{Name: "facts", Kind: model.KindAPIIntegration, Endpoint: "http://localhost:8321"},
		},
	}
}

// runStoreSuite exercises the Store contract against any implementation.
func runStoreSuite(t *testing.T, s store.Store) {
	ctx := context.Background()

	// Empty catalog.
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Get(ctx, "asst_missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "asst_missing"), store.ErrNotFound)

	// Put and Get.
	require.NoError(t, s.Put(ctx, testDescriptor("asst_1", "Mobilito")))
	got, err := s.Get(ctx, "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "Mobilito", got.Name)
	assert.Equal(t, model.TypeConversational, got.Type)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, model.KindAPIIntegration, got.Tools[0].Kind)
	assert.False(t, got.CreatedAt.IsZero())

	// Put is an upsert keyed by ID.
	time.Sleep(5 * time.Millisecond)
	updated := testDescriptor("asst_1", "Mobilito v2")
	require.NoError(t, s.Put(ctx, updated))
	got2, err := s.Get(ctx, "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "Mobilito v2", got2.Name)

	// List orders by creation time.
	require.NoError(t, s.Put(ctx, testDescriptor("asst_2", "Asesor")))
	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "asst_1", list[0].ID)
	assert.Equal(t, "asst_2", list[1].ID)

	// Delete.
	require.NoError(t, s.Delete(ctx, "asst_1"))
	_, err = s.Get(ctx, "asst_1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Invalid descriptors are rejected.
	bad := testDescriptor("asst_3", "x")
	bad.Type = "robot"
	assert.Error(t, s.Put(ctx, bad))
}

func TestMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	runStoreSuite(t, s)
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := store.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	runStoreSuite(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, testDescriptor("asst_1", "Mobilito")))
	require.NoError(t, s.Close())

	s2, err := store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "Mobilito", got.Name)
}
