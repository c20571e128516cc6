package conversation

import (
	"context"
	"sync"
	"time"

	"tutorbot-backend/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is the in-process Store used in tests and single-node
// development setups without MongoDB.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]models.Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]models.Turn)}
}

func (s *MemoryStore) AppendExchange(ctx context.Context, userID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for i := range turns {
		turns[i].UserID = userID
		if turns[i].ID.IsZero() {
			turns[i].ID = primitive.NewObjectID()
		}
		if turns[i].Timestamp.IsZero() {
			turns[i].Timestamp = now.Add(time.Duration(i) * time.Millisecond)
		}
	}
	s.turns[userID] = append(s.turns[userID], turns...)
	return nil
}

func (s *MemoryStore) History(ctx context.Context, userID string, limit int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[userID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (s *MemoryStore) Healthy(ctx context.Context) error {
	return nil
}
