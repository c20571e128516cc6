package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"tutorbot-backend/models"
)

func TestAppendAndHistoryOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.AppendExchange(ctx, "student-1",
			models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("question %d", i)},
			models.Turn{Role: models.RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
		)
		if err != nil {
			t.Fatalf("AppendExchange: %v", err)
		}
	}

	turns, err := store.History(ctx, "student-1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(turns))
	}
	for i := 0; i < 3; i++ {
		q, a := turns[2*i], turns[2*i+1]
		if q.Role != models.RoleUser || q.Content != fmt.Sprintf("question %d", i) {
			t.Errorf("turn %d: got %s %q", 2*i, q.Role, q.Content)
		}
		if a.Role != models.RoleAssistant || a.Content != fmt.Sprintf("answer %d", i) {
			t.Errorf("turn %d: got %s %q", 2*i+1, a.Role, a.Content)
		}
	}
}

func TestHistoryLimitReturnsSuffix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.AppendExchange(ctx, "student-1",
			models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("q%d", i)},
			models.Turn{Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
		)
		if err != nil {
			t.Fatalf("AppendExchange: %v", err)
		}
	}

	turns, err := store.History(ctx, "student-1", 4)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	// The limit keeps the most recent turns, still oldest first.
	want := []string{"q3", "a3", "q4", "a4"}
	for i, w := range want {
		if turns[i].Content != w {
			t.Errorf("turn %d: got %q, want %q", i, turns[i].Content, w)
		}
	}
}

func TestHistoryIsolatedPerUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.AppendExchange(ctx, "alice", models.Turn{Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendExchange: %v", err)
	}

	turns, err := store.History(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty history for unseen user, got %d turns", len(turns))
	}
}

func TestAppendExchangeConcurrentUsers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const users, exchanges = 8, 20
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", u)
			for i := 0; i < exchanges; i++ {
				err := store.AppendExchange(ctx, userID,
					models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("q%d", i)},
					models.Turn{Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
				)
				if err != nil {
					t.Errorf("AppendExchange: %v", err)
					return
				}
			}
		}(u)
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		turns, err := store.History(ctx, userID, 0)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(turns) != 2*exchanges {
			t.Fatalf("%s: expected %d turns, got %d", userID, 2*exchanges, len(turns))
		}
		for i := 0; i < exchanges; i++ {
			if turns[2*i].Content != fmt.Sprintf("q%d", i) || turns[2*i+1].Content != fmt.Sprintf("a%d", i) {
				t.Fatalf("%s: exchange %d out of order", userID, i)
			}
		}
	}
}

func TestHistoryCopyIsDetached(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.AppendExchange(ctx, "alice", models.Turn{Role: models.RoleUser, Content: "original"}); err != nil {
		t.Fatalf("AppendExchange: %v", err)
	}

	turns, _ := store.History(ctx, "alice", 0)
	turns[0].Content = "mutated"

	again, _ := store.History(ctx, "alice", 0)
	if again[0].Content != "original" {
		t.Error("History returned a shared slice")
	}
}
