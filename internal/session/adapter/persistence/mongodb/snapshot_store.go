package mongodb

import (
	"context"
	"errors"
	"fmt"

	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/session/domain/repository"
	"tenant-portal/internal/shared/database"
	"tenant-portal/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// snapshotDocument is the stored shape of a snapshot
type snapshotDocument struct {
	Key      string          `bson:"_id"`
	Snapshot *model.Snapshot `bson:"snapshot"`
}

// SnapshotStore persists session snapshots in the tenant's own database
type SnapshotStore struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// NewSnapshotStore resolves the tenant database through tm and binds the store to collection
func NewSnapshotStore(tm *database.TenantManager, tenantID, collection string, log logger.Logger) (*SnapshotStore, error) {
	if log == nil {
		log = logger.NewNop()
	}
	db, err := tm.DatabaseFor(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant database: %w", err)
	}
	return &SnapshotStore{
		collection: db.Collection(collection),
		logger:     log.WithComponent("session_mongo_store"),
	}, nil
}

// Load returns the snapshot stored under key
func (s *SnapshotStore) Load(ctx context.Context, key string) (*model.Snapshot, error) {
	var doc snapshotDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrSnapshotNotFound
	}
	if err != nil {
		s.logger.Errorf("Failed to load snapshot %s: %v", key, err)
		return nil, err
	}
	if doc.Snapshot == nil {
		return nil, repository.ErrSnapshotNotFound
	}
	return doc.Snapshot, nil
}

// Save upserts the snapshot stored under key
func (s *SnapshotStore) Save(ctx context.Context, key string, snapshot *model.Snapshot) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": key},
		snapshotDocument{Key: key, Snapshot: snapshot},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		s.logger.Errorf("Failed to save snapshot %s: %v", key, err)
	}
	return err
}

// Delete removes the snapshot stored under key
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
