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

// PostStore persists posts with their embedded comments and like sets.
// Likes and comments are changed with single-document atomic updates, never
// by rewriting the whole document.
type PostStore struct {
	col *mongo.Collection
}

func NewPostStore(db *mongo.Database) *PostStore {
	return &PostStore{col: db.Collection(PostsCollection)}
}

func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Media == nil {
		p.Media = []string{}
	}
	if p.Likes == nil {
		p.Likes = []primitive.ObjectID{}
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts

	if _, err := s.col.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert post: %w", translate(err))
	}
	return nil
}

// List returns every post, newest first.
func (s *PostStore) List(ctx context.Context) ([]models.Post, error) {
	return s.find(ctx, bson.M{})
}

// ListByUser returns the user's posts, newest first.
func (s *PostStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Post, error) {
	return s.find(ctx, bson.M{"user": userID})
}

func (s *PostStore) find(ctx context.Context, filter bson.M) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

func (s *PostStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var p models.Post
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ToggleLike adds userID to the like set, or removes it when already present,
// in one pipeline update.
func (s *PostStore) ToggleLike(ctx context.Context, id, userID primitive.ObjectID) (*models.Post, error) {
	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likes", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$in", Value: bson.A{userID, likes}}},
				bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: likes},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
				}}},
				bson.D{{Key: "$concatArrays", Value: bson.A{likes, bson.A{userID}}}},
			}}}},
			{Key: "updatedAt", Value: now()},
		}}},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

// AddComment inserts c at the head of the comment list.
func (s *PostStore) AddComment(ctx context.Context, id primitive.ObjectID, c models.Comment) (*models.Post, error) {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts

	update := bson.M{
		"$push": bson.M{"comments": bson.M{"$each": bson.A{c}, "$position": 0}},
		"$set":  bson.M{"updatedAt": ts},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

// Update applies an owner edit. New media replaces the set wholesale.
func (s *PostStore) Update(ctx context.Context, id primitive.ObjectID, changes models.PostChanges) (*models.Post, error) {
	set := bson.M{"updatedAt": now()}
	if changes.Content != "" {
		set["content"] = changes.Content
	}
	if len(changes.Media) > 0 {
		set["media"] = changes.Media
		set["mediaType"] = changes.MediaType
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// RemoveMedia pulls url from the media list.
func (s *PostStore) RemoveMedia(ctx context.Context, id primitive.ObjectID, url string) (*models.Post, error) {
	update := bson.M{
		"$pull": bson.M{"media": url},
		"$set":  bson.M{"updatedAt": now()},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (s *PostStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostStore) findOneAndUpdate(ctx context.Context, filter bson.M, update interface{}) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Post
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}
