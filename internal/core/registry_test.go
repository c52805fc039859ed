package core

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
)

func TestRegistrySnapshotMatchesLastOperation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	reg := NewRegistry()

	users := []string{"u0", "u1", "u2", "u3", "u4"}
	// model: user -> channel id of the record the registry should hold
	model := make(map[string]string)
	var issued []*Channel

	for step := 0; step < 2000; step++ {
		if rng.Intn(2) == 0 || len(issued) == 0 {
			user := users[rng.Intn(len(users))]
			ch := NewChannel(fmt.Sprintf("c%d", step), user, 1)
			issued = append(issued, ch)
			reg.Register(user, ch)
			model[user] = ch.ID
		} else {
			ch := issued[rng.Intn(len(issued))]
			_, removed := reg.Unregister(ch.ID)
			wantRemoved := model[ch.UserID] == ch.ID
			if removed != wantRemoved {
				t.Fatalf("step %d: unregister %s removed=%v, want %v", step, ch.ID, removed, wantRemoved)
			}
			if wantRemoved {
				delete(model, ch.UserID)
			}
		}

		want := make([]string, 0, len(model))
		for user := range model {
			want = append(want, user)
		}
		sort.Strings(want)
		if got := reg.Snapshot(); !sameUsers(got, want) {
			t.Fatalf("step %d: snapshot %v, want %v", step, got, want)
		}
	}
}

func TestRegistryRegisterOverwritesWithoutTeardown(t *testing.T) {
	reg := NewRegistry()
	first := NewChannel("c1", "alice", 1)
	second := NewChannel("c2", "alice", 1)

	if prev := reg.Register("alice", first); prev != nil {
		t.Fatalf("expected no previous channel, got %+v", prev)
	}
	if prev := reg.Register("alice", second); prev != first {
		t.Fatalf("expected first channel to be returned as replaced")
	}

	if _, ok := reg.Unregister(first.ID); ok {
		t.Fatalf("unregister of evicted channel must be a no-op")
	}
	ch, ok := reg.Lookup("alice")
	if !ok || ch != second {
		t.Fatalf("expected second channel to remain registered")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one record, got %d", reg.Len())
	}
}

func TestChannelSendDropsWhenFull(t *testing.T) {
	ch := NewChannel("c1", "alice", 1)
	if !ch.Send(&Event{Kind: EventOnlineUsers}) {
		t.Fatalf("first send should fit the outbox")
	}
	if ch.Send(&Event{Kind: EventOnlineUsers}) {
		t.Fatalf("second send should be dropped")
	}
}
