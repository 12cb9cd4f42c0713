package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sahilmundada/rathialmuninetwork/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)
	return st
}

func mustCreateUser(t *testing.T, st *SQLiteStore, name string) *models.Profile {
	t.Helper()
	p, err := st.CreateUser(context.Background(), name, "")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func mustAppend(t *testing.T, st *SQLiteStore, sender, receiver uuid.UUID, content string) *models.Message {
	t.Helper()
	msg := &models.Message{SenderID: sender, ReceiverID: receiver, Content: content}
	if err := st.AppendMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestSQLiteUserLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created := mustCreateUser(t, st, "alice")

	got, err := st.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "alice" {
		t.Fatalf("unexpected user: %+v", got)
	}

	missing, err := st.GetUserByID(ctx, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown id, got %+v", missing)
	}

	count, err := st.CountUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 user, got %d", count)
	}
}

func TestSQLiteAppendAssignsIDAndTimestamp(t *testing.T) {
	st := newTestStore(t)
	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")

	msg := &models.Message{
		SenderID:    alice.ID,
		ReceiverID:  bob.ID,
		Content:     "hello",
		Attachments: []string{"https://cdn.example/a.png"},
	}
	if err := st.AppendMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" {
		t.Fatal("expected assigned id")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("expected assigned timestamp")
	}

	got, err := st.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected stored message")
	}
	if got.Content != "hello" || got.Read {
		t.Fatalf("unexpected stored message: %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0] != "https://cdn.example/a.png" {
		t.Fatalf("unexpected attachments: %v", got.Attachments)
	}
}

func TestSQLiteConversationOrderingAndProfiles(t *testing.T) {
	st := newTestStore(t)
	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")
	eve := mustCreateUser(t, st, "eve")

	mustAppend(t, st, alice.ID, bob.ID, "first")
	mustAppend(t, st, bob.ID, alice.ID, "second")
	mustAppend(t, st, alice.ID, bob.ID, "third")
	mustAppend(t, st, alice.ID, eve.ID, "other conversation")

	messages, err := st.ConversationBetween(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Content != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, messages[i].Content)
		}
	}
	if !messages[0].CreatedAt.Before(messages[2].CreatedAt) && messages[0].ID >= messages[2].ID {
		t.Fatal("expected ascending order")
	}
	if messages[1].Sender == nil || messages[1].Sender.Name != "bob" {
		t.Fatalf("expected expanded sender profile: %+v", messages[1].Sender)
	}
	if messages[1].Receiver == nil || messages[1].Receiver.Name != "alice" {
		t.Fatalf("expected expanded receiver profile: %+v", messages[1].Receiver)
	}
}

func TestSQLiteMarkConversationRead(t *testing.T) {
	st := newTestStore(t)
	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")

	mustAppend(t, st, bob.ID, alice.ID, "one")
	mustAppend(t, st, bob.ID, alice.ID, "two")
	// Alice's own message must not be touched by her mark-read.
	outbound := mustAppend(t, st, alice.ID, bob.ID, "reply")

	count, err := st.MarkConversationRead(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 marked read, got %d", count)
	}

	got, err := st.GetMessage(context.Background(), outbound.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Read {
		t.Fatal("reader's own outbound message must stay unread")
	}

	// Idempotent: nothing left to mark.
	count, err = st.MarkConversationRead(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected 0 on repeat, got %d", count)
	}
}

func TestSQLiteRecentConversations(t *testing.T) {
	st := newTestStore(t)
	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")
	eve := mustCreateUser(t, st, "eve")

	mustAppend(t, st, bob.ID, alice.ID, "bob old")
	mustAppend(t, st, bob.ID, alice.ID, "bob latest")
	time.Sleep(5 * time.Millisecond)
	mustAppend(t, st, alice.ID, eve.ID, "to eve")

	summaries, err := st.RecentConversations(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(summaries))
	}

	// Most recent conversation first.
	if summaries[0].Counterpart.ID != eve.ID {
		t.Fatalf("expected eve first, got %s", summaries[0].Counterpart.Name)
	}
	if summaries[0].UnreadCount != 0 {
		t.Fatalf("own outbound message must not count as unread: %d", summaries[0].UnreadCount)
	}

	if summaries[1].Counterpart.ID != bob.ID {
		t.Fatalf("expected bob second, got %s", summaries[1].Counterpart.Name)
	}
	if summaries[1].LastMessage.Content != "bob latest" {
		t.Fatalf("expected latest message, got %q", summaries[1].LastMessage.Content)
	}
	if summaries[1].UnreadCount != 2 {
		t.Fatalf("expected 2 unread from bob, got %d", summaries[1].UnreadCount)
	}
	if summaries[1].Counterpart.Name != "bob" {
		t.Fatalf("expected expanded counterpart profile, got %+v", summaries[1].Counterpart)
	}

	empty, err := st.RecentConversations(context.Background(), eve.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 1 || empty[0].Counterpart.ID != alice.ID {
		t.Fatalf("expected eve's single conversation with alice: %+v", empty)
	}
}

func TestSQLiteDeleteMessage(t *testing.T) {
	st := newTestStore(t)
	alice := mustCreateUser(t, st, "alice")
	bob := mustCreateUser(t, st, "bob")
	msg := mustAppend(t, st, alice.ID, bob.ID, "gone soon")

	if err := st.DeleteMessage(context.Background(), msg.ID); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected message removed")
	}

	if err := st.DeleteMessage(context.Background(), msg.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
