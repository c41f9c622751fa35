package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultProfilePicture is served for users that never uploaded a picture.
const DefaultProfilePicture = "/uploads/user-photo.jpg"

type User struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	FirstName              string             `bson:"firstName" json:"firstName"`
	LastName               string             `bson:"lastName" json:"lastName"`
	Email                  string             `bson:"email" json:"email"`
	Password               string             `bson:"password" json:"-"`
	IsVerified             bool               `bson:"isVerified" json:"isVerified"`
	EmailVerificationToken *string            `bson:"emailVerificationToken,omitempty" json:"-"`
	ProfilePicture         string             `bson:"profilePicture" json:"profilePicture"`
	CoverPhoto             string             `bson:"coverPhoto,omitempty" json:"coverPhoto,omitempty"`
	CreatedAt              time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt              time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// WithDefaults fills in the default profile picture.
func (u User) WithDefaults() User {
	if u.ProfilePicture == "" {
		u.ProfilePicture = DefaultProfilePicture
	}
	return u
}

// PendingRegistration is a not-yet-verified signup. Mongo purges it 5 minutes
// after CreatedAt.
type PendingRegistration struct {
	Email          string    `bson:"email" json:"email"`
	FirstName      string    `bson:"firstName" json:"firstName"`
	LastName       string    `bson:"lastName" json:"lastName"`
	Password       string    `bson:"password" json:"-"`
	OTP            string    `bson:"otp" json:"-"`
	ProfilePicture string    `bson:"profilePicture" json:"profilePicture"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
}

// ProfileImages carries the optional image fields of a profile update.
type ProfileImages struct {
	ProfilePicture string
	CoverPhoto     string
}

func (p ProfileImages) Empty() bool {
	return p.ProfilePicture == "" && p.CoverPhoto == ""
}
