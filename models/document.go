package models

import "time"

// StorageTier identifies which storage tiers currently hold a document.
type StorageTier string

const (
	TierLocal  StorageTier = "local"
	TierRemote StorageTier = "remote"
	TierBoth   StorageTier = "both"
)

// Document describes one source PDF in the corpus. Filename is the unique
// key across tiers; DisplayName defaults to Filename and can be renamed
// independently.
type Document struct {
	Filename     string      `bson:"filename" json:"filename"`
	DisplayName  string      `bson:"display_name" json:"display_name"`
	Size         int64       `bson:"size" json:"size"`
	LastModified time.Time   `bson:"last_modified" json:"last_modified"`
	Tier         StorageTier `bson:"tier" json:"tier"`
}

// FileMeta is the persisted display-name record for a document. Kept
// separate from tier presence: renaming never touches stored bytes.
type FileMeta struct {
	Filename    string    `bson:"filename" json:"filename"`
	DisplayName string    `bson:"display_name" json:"display_name"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}
