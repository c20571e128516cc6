package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tutorbot-backend/internal/retry"
	"tutorbot-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps conversation turns in the conversations collection,
// one document per turn, indexed on (user_id, timestamp).
type MongoStore struct {
	coll   *mongo.Collection
	policy retry.Policy

	// users serializes appends per user so interleaved exchanges from
	// the same user land in call order.
	users sync.Map
}

// userState carries the per-user append lock and the last timestamp
// handed out under it.
type userState struct {
	mu     sync.Mutex
	lastTS time.Time
}

// nextTimestamp returns a timestamp strictly after every one assigned
// before it for this user, even when the wall clock has not advanced
// between appends. Must be called with mu held.
func (st *userState) nextTimestamp(now time.Time) time.Time {
	if !now.After(st.lastTS) {
		now = st.lastTS.Add(time.Millisecond)
	}
	st.lastTS = now
	return now
}

func NewMongoStore(db *mongo.Database, policy retry.Policy) *MongoStore {
	return &MongoStore{coll: db.Collection("conversations"), policy: policy}
}

func (s *MongoStore) state(userID string) *userState {
	st, _ := s.users.LoadOrStore(userID, &userState{})
	return st.(*userState)
}

func (s *MongoStore) AppendExchange(ctx context.Context, userID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	docs := make([]interface{}, len(turns))
	for i := range turns {
		turns[i].UserID = userID
		if turns[i].ID.IsZero() {
			turns[i].ID = primitive.NewObjectID()
		}
		turns[i].Timestamp = st.nextTimestamp(time.Now())
		docs[i] = turns[i]
	}

	err := s.policy.Do(ctx, func(ctx context.Context) error {
		_, err := s.coll.InsertMany(ctx, docs)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: append conversation for %s: %v", models.ErrPersistence, userID, err)
	}
	return nil
}

func (s *MongoStore) History(ctx context.Context, userID string, limit int) ([]models.Turn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: load history for %s: %v", models.ErrPersistence, userID, err)
	}
	defer cursor.Close(ctx)

	var turns []models.Turn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("%w: decode history for %s: %v", models.ErrPersistence, userID, err)
	}

	// Newest-first from the query, oldest-first for callers.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *MongoStore) Healthy(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}
