package repository

import (
	"context"
	"errors"

	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/tenant"
)

// ErrSnapshotNotFound is returned by a SnapshotStore when nothing was persisted under a key
var ErrSnapshotNotFound = errors.New("session snapshot not found")

// SnapshotStore persists session snapshots under an explicit key
type SnapshotStore interface {
	Load(ctx context.Context, key string) (*model.Snapshot, error)
	Save(ctx context.Context, key string, snapshot *model.Snapshot) error
	Delete(ctx context.Context, key string) error
}

// WatchableStore is implemented by stores that can report external rewrites
// of a snapshot, e.g. another process logging out.
type WatchableStore interface {
	SnapshotStore
	Watch(ctx context.Context, key string, onChange func()) error
}

// BackendAPI is the part of the product backend the session talks to
type BackendAPI interface {
	Login(ctx context.Context, kind tenant.LoginKind, email, password string) (*model.LoginResult, error)
	CompanyProfile(ctx context.Context) (*model.CompanyProfile, error)
}
