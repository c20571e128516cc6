package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Citation attributes part of an answer to a source page.
type Citation struct {
	Source string `bson:"source" json:"source"`
	Page   int    `bson:"page" json:"page"`
}

// Turn is one message in a user's conversation log. Append-only; never
// mutated or deleted by normal operation.
type Turn struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID    string             `bson:"user_id" json:"user_id"`
	Role      string             `bson:"role" json:"role"` // "user" or "assistant"
	Content   string             `bson:"content" json:"content"`
	Mode      string             `bson:"mode,omitempty" json:"mode,omitempty"`
	Citations []Citation         `bson:"citations,omitempty" json:"citations,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type QueryRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Question string `json:"question" binding:"required,min=1,max=2000"`
	Mode     string `json:"mode,omitempty"`
}

type QueryResponse struct {
	Content   string     `json:"content"`
	Citations []Citation `json:"citations"`
}

type HistoryRequest struct {
	UserID string `json:"user_id" binding:"required"`
}
