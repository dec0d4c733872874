package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	StorageUsed  int64     `bson:"storage_used" json:"storage_used"`   // bytes
	StorageLimit int64     `bson:"storage_limit" json:"storage_limit"` // bytes
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// QuotaStatus is the storage accounting snapshot handed to clients.
type QuotaStatus struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// PublicOwner is the minimal owner info exposed through a share link.
type PublicOwner struct {
	Name string `json:"name"`
}
