package mongodb

import (
	"context"
	"os"
	"testing"

	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/session/domain/repository"
	"tenant-portal/internal/shared/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB snapshot store test")
	}
	ctx := context.Background()
	client, err := database.Connect(ctx, uri, nil)
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	cfg := database.DefaultTenantConfig()
	cfg.DatabasePrefix = "portal_test_"
	tm := database.NewTenantManager(client, cfg, nil)
	defer func() {
		_ = tm.DropTenant(ctx, "acme")
		_ = tm.Close(ctx)
	}()

	store, err := NewSnapshotStore(tm, "acme", "sessions", nil)
	require.NoError(t, err)

	_, err = store.Load(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)

	snap := &model.Snapshot{Token: "tok", User: &model.User{ID: 1, Role: "admin"}}
	require.NoError(t, store.Save(ctx, "k", snap))
	snap.Token = "tok-2"
	require.NoError(t, store.Save(ctx, "k", snap), "save upserts")

	got, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.Token)
	assert.Equal(t, "admin", got.User.Role)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Load(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
}

func TestNewSnapshotStore_RejectsInvalidTenant(t *testing.T) {
	tm := database.NewTenantManager(nil, nil, nil)
	_, err := NewSnapshotStore(tm, "bad/tenant", "sessions", nil)
	assert.Error(t, err)
}
