package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaKind tags the whole media set of a post.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type Post struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	User      primitive.ObjectID   `bson:"user" json:"user"`
	Content   string               `bson:"content" json:"content"`
	Media     []string             `bson:"media" json:"media"`
	MediaType MediaKind            `bson:"mediaType" json:"mediaType"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments  []Comment            `bson:"comments" json:"comments"`
	Shares    int                  `bson:"shares" json:"shares"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// IsOwnedBy reports whether userID may mutate the post.
func (p *Post) IsOwnedBy(userID primitive.ObjectID) bool {
	return p.User == userID
}

// LikedBy reports whether userID is in the like set.
func (p *Post) LikedBy(userID primitive.ObjectID) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// HasMedia reports whether url is one of the post's media paths.
func (p *Post) HasMedia(url string) bool {
	for _, m := range p.Media {
		if m == url {
			return true
		}
	}
	return false
}

// PostChanges is an owner edit. Zero values leave the field untouched.
type PostChanges struct {
	Content   string
	Media     []string
	MediaType MediaKind
}

func (c PostChanges) Empty() bool {
	return c.Content == "" && len(c.Media) == 0
}
