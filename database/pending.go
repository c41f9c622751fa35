package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"friendbook/models"
)

// PendingStore holds registrations waiting for OTP confirmation.
type PendingStore struct {
	col *mongo.Collection
}

func NewPendingStore(db *mongo.Database) *PendingStore {
	return &PendingStore{col: db.Collection(PendingCollection)}
}

// Upsert replaces any pending attempt for the same email. CreatedAt is reset,
// so every attempt gets a full expiry window.
func (s *PendingStore) Upsert(ctx context.Context, p *models.PendingRegistration) error {
	p.CreatedAt = now()
	opts := options.Replace().SetUpsert(true)
	if _, err := s.col.ReplaceOne(ctx, bson.M{"email": p.Email}, p, opts); err != nil {
		return fmt.Errorf("upsert pending: %w", translate(err))
	}
	return nil
}

// FindByEmail returns the pending record, expired or not. The TTL monitor
// only sweeps once a minute, so callers check CreatedAt themselves.
func (s *PendingStore) FindByEmail(ctx context.Context, email string) (*models.PendingRegistration, error) {
	var p models.PendingRegistration
	if err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *PendingStore) Delete(ctx context.Context, email string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"email": email}); err != nil {
		return fmt.Errorf("delete pending: %w", err)
	}
	return nil
}
