package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat-server/internal/store"
	"github.com/vovakirdan/pairchat-server/internal/utils"
)

// newTestStore connects to PAIRCHAT_TEST_MONGO_URI using a throwaway database.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("PAIRCHAT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PAIRCHAT_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	dbName := "pairchat_test_" + utils.NewID()[:8]
	s, err := New(ctx, uri, dbName)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = s.client.Database(dbName).Drop(context.Background())
		_ = s.Close()
	})
	return s
}

func TestMongoStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := &store.User{Username: "alice", PasswordHash: "hash"}
	bob := &store.User{Username: "bob", PasswordHash: "hash"}
	for _, u := range []*store.User{alice, bob} {
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	if _, err := s.GetUserByID(ctx, "not-an-object-id"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bad id, got %v", err)
	}

	peers, err := s.ListUsersExcept(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListUsersExcept: %v", err)
	}
	if len(peers) != 1 || peers[0].ID != bob.ID {
		t.Fatalf("unexpected peers: %+v", peers)
	}

	first := &store.Message{SenderID: alice.ID, ReceiverID: bob.ID, Text: "hi"}
	second := &store.Message{SenderID: bob.ID, ReceiverID: alice.ID, Image: "https://example.test/a.png"}
	for _, m := range []*store.Message{first, second} {
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	history, err := s.ListMessagesBetween(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("ListMessagesBetween: %v", err)
	}
	if len(history) != 2 || history[0].ID != first.ID || history[1].ID != second.ID {
		t.Fatalf("unexpected history: %+v", history)
	}

	counts, err := s.CountUnseenBySender(ctx, bob.ID)
	if err != nil {
		t.Fatalf("CountUnseenBySender: %v", err)
	}
	if counts[alice.ID] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	changed, err := s.MarkMessageSeen(ctx, first.ID)
	if err != nil || !changed {
		t.Fatalf("mark seen: changed=%v err=%v", changed, err)
	}
	changed, err = s.MarkMessageSeen(ctx, first.ID)
	if err != nil || changed {
		t.Fatalf("mark seen twice: changed=%v err=%v", changed, err)
	}

	n, err := s.MarkConversationSeen(ctx, bob.ID, alice.ID)
	if err != nil || n != 1 {
		t.Fatalf("MarkConversationSeen: n=%d err=%v", n, err)
	}
}
