package presence

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestBindAndLookup(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()

	r.Bind(user, "conn-1")

	connID, ok := r.Lookup(user)
	if !ok {
		t.Fatal("expected user to be online")
	}
	if connID != "conn-1" {
		t.Fatalf("expected conn-1, got %q", connID)
	}
}

func TestLastIdentifyWins(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()

	r.Bind(user, "conn-old")
	r.Bind(user, "conn-new")

	connID, ok := r.Lookup(user)
	if !ok || connID != "conn-new" {
		t.Fatalf("expected conn-new to hold the binding, got %q (ok=%v)", connID, ok)
	}

	// The superseded connection no longer resolves to the user.
	if _, ok := r.UserOf("conn-old"); ok {
		t.Fatal("expected stale connection to be unbound")
	}
	if r.Online() != 1 {
		t.Fatalf("expected 1 online user, got %d", r.Online())
	}
}

func TestStaleUnbindIsNoOp(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()

	r.Bind(user, "conn-old")
	r.Bind(user, "conn-new")

	// The old connection disconnects after being superseded.
	if _, ok := r.Unbind("conn-old"); ok {
		t.Fatal("stale unbind should report no binding")
	}

	connID, ok := r.Lookup(user)
	if !ok || connID != "conn-new" {
		t.Fatalf("newer binding must survive a stale unbind, got %q (ok=%v)", connID, ok)
	}
}

func TestUnbindRemovesBinding(t *testing.T) {
	r := NewRegistry()
	user := uuid.New()

	r.Bind(user, "conn-1")
	gotUser, ok := r.Unbind("conn-1")
	if !ok {
		t.Fatal("expected unbind to report the departed user")
	}
	if gotUser != user {
		t.Fatalf("expected %s, got %s", user, gotUser)
	}

	if _, ok := r.Lookup(user); ok {
		t.Fatal("expected user to be offline after unbind")
	}
	if len(r.Snapshot()) != 0 {
		t.Fatalf("expected empty snapshot, got %v", r.Snapshot())
	}
}

func TestUnbindIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Bind(uuid.New(), "conn-1")
	r.Unbind("conn-1")

	if _, ok := r.Unbind("conn-1"); ok {
		t.Fatal("second unbind should be a no-op")
	}
}

func TestConcurrentIdentify(t *testing.T) {
	r := NewRegistry()
	const n = 100

	users := make([]uuid.UUID, n)
	for i := range users {
		users[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func(u uuid.UUID) {
			defer wg.Done()
			r.Bind(u, uuid.NewString())
		}(user)
	}
	wg.Wait()

	snapshot := r.Snapshot()
	if len(snapshot) != n {
		t.Fatalf("expected %d online users, got %d", n, len(snapshot))
	}

	seen := make(map[uuid.UUID]bool, n)
	for _, id := range snapshot {
		if seen[id] {
			t.Fatalf("duplicate user %s in snapshot", id)
		}
		seen[id] = true
	}
	for _, u := range users {
		if !seen[u] {
			t.Fatalf("user %s missing from snapshot", u)
		}
	}
}

func TestNotifyCoalesces(t *testing.T) {
	r := NewRegistry()

	// Many mutations without a consumer must not block.
	for i := 0; i < 10; i++ {
		r.Bind(uuid.New(), uuid.NewString())
	}

	select {
	case <-r.Notify():
	default:
		t.Fatal("expected a pending change notification")
	}
	select {
	case <-r.Notify():
		t.Fatal("expected notifications to be coalesced")
	default:
	}
}
