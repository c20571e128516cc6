package conversation

import (
	"context"

	"tutorbot-backend/models"
)

// Store persists the per-user conversation log. Turns are append-only:
// nothing edits or deletes history.
type Store interface {
	// AppendExchange appends turns for one user atomically with respect
	// to other appends for the same user, preserving call order.
	AppendExchange(ctx context.Context, userID string, turns ...models.Turn) error

	// History returns the most recent turns for the user, oldest first.
	// limit <= 0 means no limit.
	History(ctx context.Context, userID string, limit int) ([]models.Turn, error)

	Healthy(ctx context.Context) error
}
