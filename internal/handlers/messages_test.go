package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/sahilmundada/rathialmuninetwork/internal/api/middleware"
	"github.com/sahilmundada/rathialmuninetwork/internal/chat"
	"github.com/sahilmundada/rathialmuninetwork/internal/models"
	"github.com/sahilmundada/rathialmuninetwork/internal/presence"
)

// fakeStore is a minimal in-memory DataStore for handler tests.
type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.Profile
	messages []models.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[uuid.UUID]models.Profile)}
}

func (s *fakeStore) Close()                         {}
func (s *fakeStore) Ping(ctx context.Context) error { return nil }

func (s *fakeStore) CreateUser(ctx context.Context, name, avatarURL string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Profile{ID: uuid.New(), Name: name, AvatarURL: avatarURL, CreatedAt: time.Now().UTC()}
	s.users[p.ID] = p
	return &p, nil
}

func (s *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.users[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *fakeStore) CountUsers(ctx context.Context) (int64, error) {
	return int64(len(s.users)), nil
}

func (s *fakeStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = ulid.Make().String()
	msg.CreatedAt = time.Now().UTC()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *fakeStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			m := s.messages[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ConversationBetween(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkConversationRead(ctx context.Context, readerID, counterpartID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.SenderID == counterpartID && m.ReceiverID == readerID && !m.Read {
			m.Read = true
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) RecentConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	return nil, nil
}

func (s *fakeStore) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return nil
		}
	}
	return errors.New("record not found")
}

func newTestHandler(t *testing.T) (*Handler, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	hub := chat.NewHub(st, presence.NewRegistry(), zerolog.Nop())
	return NewHandler(st, nil, hub, zerolog.Nop()), st
}

func addUser(t *testing.T, st *fakeStore, name string) uuid.UUID {
	t.Helper()
	p, err := st.CreateUser(context.Background(), name, "")
	if err != nil {
		t.Fatal(err)
	}
	return p.ID
}

// authedRequest builds a request carrying the authenticated user id, the way
// the auth middleware injects it.
func authedRequest(method, target string, body string, userID uuid.UUID) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, userID)
	return r.WithContext(ctx)
}

func TestSendMessageHandler(t *testing.T) {
	h, st := newTestHandler(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"receiverId":"` + bob.String() + `","content":"hello"}`, http.StatusCreated},
		{"invalid json", `{`, http.StatusBadRequest},
		{"bad receiver id", `{"receiverId":"nope","content":"x"}`, http.StatusBadRequest},
		{"unknown receiver", `{"receiverId":"` + uuid.NewString() + `","content":"x"}`, http.StatusNotFound},
		{"self send", `{"receiverId":"` + alice.String() + `","content":"x"}`, http.StatusBadRequest},
		{"empty body", `{"receiverId":"` + bob.String() + `"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := authedRequest("POST", "/messages/send", tt.body, alice)
			h.SendMessage(w, r)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}

	// The valid send persisted exactly one message.
	if len(st.messages) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(st.messages))
	}
}

func TestSendMessageResponseCarriesPersistedRecord(t *testing.T) {
	h, st := newTestHandler(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	w := httptest.NewRecorder()
	r := authedRequest("POST", "/messages/send", `{"receiverId":"`+bob.String()+`","content":"hello"}`, alice)
	h.SendMessage(w, r)

	var msg models.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Fatalf("response must carry the persisted id and timestamp: %+v", msg)
	}
	if msg.SenderID != alice || msg.ReceiverID != bob {
		t.Fatalf("unexpected participants: %+v", msg)
	}
	if msg.Sender == nil || msg.Sender.Name != "alice" {
		t.Fatalf("expected expanded sender profile in response: %+v", msg.Sender)
	}
	if msg.Receiver == nil || msg.Receiver.Name != "bob" {
		t.Fatalf("expected expanded receiver profile in response: %+v", msg.Receiver)
	}
}

func TestMarkMessagesReadHandler(t *testing.T) {
	h, st := newTestHandler(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	for i := 0; i < 2; i++ {
		if err := st.AppendMessage(context.Background(), &models.Message{SenderID: bob, ReceiverID: alice, Content: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	w := httptest.NewRecorder()
	r := authedRequest("PUT", "/messages/read/"+bob.String(), "", alice)
	r = withURLParam(r, "senderID", bob.String())
	h.MarkMessagesRead(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp MarkReadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 marked read, got %d", resp.Count)
	}
}

func TestDeleteMessageAuthorization(t *testing.T) {
	h, st := newTestHandler(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	msg := &models.Message{SenderID: alice, ReceiverID: bob, Content: "mine"}
	if err := st.AppendMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	// Only the sender may delete.
	w := httptest.NewRecorder()
	r := withURLParam(authedRequest("DELETE", "/messages/"+msg.ID, "", bob), "messageID", msg.ID)
	h.DeleteMessage(w, r)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", w.Code)
	}
	if len(st.messages) != 1 {
		t.Fatal("failed authorization must not change state")
	}

	w = httptest.NewRecorder()
	r = withURLParam(authedRequest("DELETE", "/messages/"+msg.ID, "", alice), "messageID", msg.ID)
	h.DeleteMessage(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", w.Code)
	}
	if len(st.messages) != 0 {
		t.Fatal("expected message removed")
	}

	w = httptest.NewRecorder()
	r = withURLParam(authedRequest("DELETE", "/messages/"+msg.ID, "", alice), "messageID", msg.ID)
	h.DeleteMessage(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing message, got %d", w.Code)
	}
}

func TestGetConversationMarksRead(t *testing.T) {
	h, st := newTestHandler(t)
	alice := addUser(t, st, "alice")
	bob := addUser(t, st, "bob")

	if err := st.AppendMessage(context.Background(), &models.Message{SenderID: bob, ReceiverID: alice, Content: "unread"}); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	r := withURLParam(authedRequest("GET", "/messages/conversation/"+bob.String(), "", alice), "userID", bob.String())
	h.GetConversation(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var messages []models.Message
	if err := json.Unmarshal(w.Body.Bytes(), &messages); err != nil {
		t.Fatal(err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	// Side effect: the stored copy is now read.
	if !st.messages[0].Read {
		t.Fatal("expected stored message marked read after conversation fetch")
	}
}

func TestGetUserHandler(t *testing.T) {
	h, st := newTestHandler(t)
	alice := addUser(t, st, "alice")

	w := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest("GET", "/users/"+alice.String(), nil), "id", alice.String())
	h.GetUser(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Name != "alice" || resp.Online {
		t.Fatalf("unexpected response: %+v", resp)
	}

	w = httptest.NewRecorder()
	r = withURLParam(httptest.NewRequest("GET", "/users/nope", nil), "id", "nope")
	h.GetUser(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	unknown := uuid.NewString()
	r = withURLParam(httptest.NewRequest("GET", "/users/"+unknown, nil), "id", unknown)
	h.GetUser(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", w.Code)
	}
}

// withURLParam attaches a chi route parameter to the request.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
