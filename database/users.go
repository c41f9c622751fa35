package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"friendbook/models"
)

// UserStore persists verified accounts.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection(UsersCollection)}
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	ts := now()
	u.CreatedAt, u.UpdatedAt = ts, ts

	if _, err := s.col.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// VerifyByToken marks the token's owner verified and clears the token.
func (s *UserStore) VerifyByToken(ctx context.Context, token string) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": now()},
		"$unset": bson.M{"emailVerificationToken": ""},
	}

	var u models.User
	err := s.col.FindOneAndUpdate(ctx, bson.M{"emailVerificationToken": token}, update, opts).Decode(&u)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UpdateImages sets whichever image fields are non-empty.
func (s *UserStore) UpdateImages(ctx context.Context, id primitive.ObjectID, images models.ProfileImages) (*models.User, error) {
	set := bson.M{"updatedAt": now()}
	if images.ProfilePicture != "" {
		set["profilePicture"] = images.ProfilePicture
	}
	if images.CoverPhoto != "" {
		set["coverPhoto"] = images.CoverPhoto
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	if err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindDisplays loads the display identity of every existing user in ids.
// Missing users are simply absent from the result.
func (s *UserStore) FindDisplays(ctx context.Context, ids []primitive.ObjectID) (models.Displays, error) {
	displays := make(models.Displays, len(ids))
	if len(ids) == 0 {
		return displays, nil
	}

	opts := options.Find().SetProjection(bson.M{"firstName": 1, "lastName": 1, "profilePicture": 1})
	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find displays: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode displays: %w", err)
	}
	for _, u := range users {
		displays[u.ID] = u.Display()
	}
	return displays, nil
}
