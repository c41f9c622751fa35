package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserDisplay is the subset of a user denormalized into post and comment
// responses.
type UserDisplay struct {
	ID             string `bson:"-" json:"_id"`
	FirstName      string `bson:"firstName" json:"firstName"`
	LastName       string `bson:"lastName" json:"lastName"`
	ProfilePicture string `bson:"profilePicture" json:"profilePicture"`
}

// DeletedUser stands in for a referenced user that no longer exists.
var DeletedUser = UserDisplay{
	ID:             "deleted",
	FirstName:      "Deleted",
	LastName:       "User",
	ProfilePicture: DefaultProfilePicture,
}

func (u User) Display() UserDisplay {
	d := UserDisplay{
		ID:             u.ID.Hex(),
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
	}
	if d.ProfilePicture == "" {
		d.ProfilePicture = DefaultProfilePicture
	}
	return d
}

// Displays maps user ids to their display identity.
type Displays map[primitive.ObjectID]UserDisplay

// Lookup returns the display identity of id or the DeletedUser placeholder.
func (d Displays) Lookup(id primitive.ObjectID) UserDisplay {
	if u, ok := d[id]; ok {
		return u
	}
	return DeletedUser
}

type CommentView struct {
	ID        primitive.ObjectID `json:"_id"`
	User      UserDisplay        `json:"user"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

type PostView struct {
	ID        primitive.ObjectID   `json:"_id"`
	User      UserDisplay          `json:"user"`
	Content   string               `json:"content"`
	Media     []string             `json:"media"`
	MediaType MediaKind            `json:"mediaType"`
	Likes     []primitive.ObjectID `json:"likes"`
	Comments  []CommentView        `json:"comments"`
	Shares    int                  `json:"shares"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// UserIDs returns every user referenced by the posts, owners and commenters,
// without duplicates.
func UserIDs(posts ...Post) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, p := range posts {
		add(p.User)
		for _, c := range p.Comments {
			add(c.User)
		}
	}
	return ids
}

// View resolves the post's user references against displays.
func (p Post) View(displays Displays) PostView {
	v := PostView{
		ID:        p.ID,
		User:      displays.Lookup(p.User),
		Content:   p.Content,
		Media:     p.Media,
		MediaType: p.MediaType,
		Likes:     p.Likes,
		Comments:  make([]CommentView, 0, len(p.Comments)),
		Shares:    p.Shares,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if v.Media == nil {
		v.Media = []string{}
	}
	if v.Likes == nil {
		v.Likes = []primitive.ObjectID{}
	}
	for _, c := range p.Comments {
		v.Comments = append(v.Comments, CommentView{
			ID:        c.ID,
			User:      displays.Lookup(c.User),
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return v
}
