package models

import "time"

type TargetType string

const (
	TargetFile   TargetType = "file"
	TargetFolder TargetType = "folder"
)

func (t TargetType) Valid() bool {
	return t == TargetFile || t == TargetFolder
}

// ShareLink grants unauthenticated read access to one file or folder.
type ShareLink struct {
	Token       string     `bson:"_id" json:"token"`
	OwnerID     string     `bson:"owner_id" json:"-"`
	TargetType  TargetType `bson:"target_type" json:"target_type"`
	TargetID    string     `bson:"target_id" json:"target_id"`
	ExpiresAt   *time.Time `bson:"expires_at" json:"expires_at,omitempty"`
	MaxAccess   *int64     `bson:"max_access" json:"max_access,omitempty"`
	AccessCount int64      `bson:"access_count" json:"access_count"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
}

func (s *ShareLink) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

func (s *ShareLink) LimitReached() bool {
	return s.MaxAccess != nil && s.AccessCount >= *s.MaxAccess
}

// Usable reports whether an access at now would be granted.
func (s *ShareLink) Usable(now time.Time) bool {
	return !s.Expired(now) && !s.LimitReached()
}
