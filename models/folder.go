package models

import "time"

type Folder struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	ParentID  *string   `bson:"parent_id" json:"parent_id"` // nil = root
	OwnerID   string    `bson:"owner_id" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsRoot reports whether the folder sits directly under the owner's root.
func (f *Folder) IsRoot() bool {
	return f.ParentID == nil
}

// FolderView is the presentation record for a folder inside a listing.
type FolderView struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ParentFolderID   *string   `json:"parent_folder_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	ChildFileCount   int64     `json:"child_file_count"`
	ChildFolderCount int64     `json:"child_folder_count"`
	ShareToken       string    `json:"share_token,omitempty"`
}

func NewFolderView(f *Folder) FolderView {
	return FolderView{
		ID:             f.ID,
		Name:           f.Name,
		ParentFolderID: f.ParentID,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// BreadcrumbEntry is one ancestor on the path from root to a folder.
type BreadcrumbEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
