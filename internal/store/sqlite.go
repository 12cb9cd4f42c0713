package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/sahilmundada/rathialmuninetwork/internal/models"
)

// SQLiteStore handles SQLite database operations. It backs single-node and
// development deployments and shares the DataStore contract with Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/relay.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/relay.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || '-4' || substr(hex(randomblob(2)),2) || '-' || substr('89ab',abs(random()) % 4 + 1, 1) || substr(hex(randomblob(2)),2) || '-' || hex(randomblob(6)))),
		name TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL REFERENCES users(id),
		receiver_id TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL DEFAULT '',
		attachments TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		read INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(receiver_id, read);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, avatarURL string) (*models.Profile, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, avatar_url, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), name, avatarURL, now)
	if err != nil {
		return nil, err
	}
	return &models.Profile{ID: id, Name: name, AvatarURL: avatarURL, CreatedAt: now}, nil
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when no such user
// exists.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	user := &models.Profile{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, avatar_url, created_at
		FROM users WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&user.Name,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CountUsers returns the total number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendMessage persists a new message, assigning its ULID and creation
// timestamp.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}

	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, attachments, created_at, read)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID.String(), msg.ReceiverID.String(), msg.Content, string(attachments), msg.CreatedAt, msg.Read)
	return err
}

// scanMessage reads one message row (without profile columns).
func scanMessage(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var senderID, receiverID, attachments string
	err := scan(
		&msg.ID,
		&senderID,
		&receiverID,
		&msg.Content,
		&attachments,
		&msg.CreatedAt,
		&msg.Read,
	)
	if err != nil {
		return nil, err
	}
	if msg.SenderID, err = uuid.Parse(senderID); err != nil {
		return nil, err
	}
	if msg.ReceiverID, err = uuid.Parse(receiverID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage retrieves a single message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, content, attachments, created_at, read
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ConversationBetween retrieves all messages between two users ordered by
// creation time ascending, with sender and receiver display attributes.
func (s *SQLiteStore) ConversationBetween(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_id, m.receiver_id, m.content, m.attachments, m.created_at, m.read,
		       su.name, su.avatar_url, ru.name, ru.avatar_url
		FROM messages m
		JOIN users su ON su.id = m.sender_id
		JOIN users ru ON ru.id = m.receiver_id
		WHERE (m.sender_id = ? AND m.receiver_id = ?)
		   OR (m.sender_id = ? AND m.receiver_id = ?)
		ORDER BY m.created_at ASC, m.id ASC
	`, a.String(), b.String(), b.String(), a.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var senderID, receiverID, attachments string
		sender := &models.Profile{}
		receiver := &models.Profile{}
		err := rows.Scan(
			&msg.ID,
			&senderID,
			&receiverID,
			&msg.Content,
			&attachments,
			&msg.CreatedAt,
			&msg.Read,
			&sender.Name,
			&sender.AvatarURL,
			&receiver.Name,
			&receiver.AvatarURL,
		)
		if err != nil {
			return nil, err
		}
		if msg.SenderID, err = uuid.Parse(senderID); err != nil {
			return nil, err
		}
		if msg.ReceiverID, err = uuid.Parse(receiverID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
			return nil, err
		}
		sender.ID = msg.SenderID
		receiver.ID = msg.ReceiverID
		msg.Sender = sender
		msg.Receiver = receiver
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkConversationRead flips read on every unread message from counterpartID
// addressed to readerID. Returns the number of rows updated.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, readerID, counterpartID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET read = 1
		WHERE sender_id = ? AND receiver_id = ? AND read = 0
	`, counterpartID.String(), readerID.String())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecentConversations computes, for every distinct counterpart, the most
// recent message and the count of unread messages addressed to userID.
func (s *SQLiteStore) RecentConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	uid := userID.String()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, content, attachments, created_at, read, counterpart
		FROM (
			SELECT t.*, ROW_NUMBER() OVER (
				PARTITION BY t.counterpart
				ORDER BY t.created_at DESC, t.id DESC
			) AS rn
			FROM (
				SELECT m.*,
				       CASE WHEN m.sender_id = ? THEN m.receiver_id ELSE m.sender_id END AS counterpart
				FROM messages m
				WHERE m.sender_id = ? OR m.receiver_id = ?
			) t
		) ranked
		WHERE rn = 1
		ORDER BY created_at DESC, id DESC
	`, uid, uid, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	var counterparts []string
	for rows.Next() {
		var sum models.ConversationSummary
		var senderID, receiverID, attachments, counterpart string
		err := rows.Scan(
			&sum.LastMessage.ID,
			&senderID,
			&receiverID,
			&sum.LastMessage.Content,
			&attachments,
			&sum.LastMessage.CreatedAt,
			&sum.LastMessage.Read,
			&counterpart,
		)
		if err != nil {
			return nil, err
		}
		if sum.LastMessage.SenderID, err = uuid.Parse(senderID); err != nil {
			return nil, err
		}
		if sum.LastMessage.ReceiverID, err = uuid.Parse(receiverID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attachments), &sum.LastMessage.Attachments); err != nil {
			return nil, err
		}
		if sum.Counterpart.ID, err = uuid.Parse(counterpart); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
		counterparts = append(counterparts, counterpart)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	unreadRows, err := s.db.QueryContext(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = ? AND read = 0
		GROUP BY sender_id
	`, uid)
	if err != nil {
		return nil, err
	}
	defer unreadRows.Close()

	unread := make(map[string]int)
	for unreadRows.Next() {
		var sender string
		var count int
		if err := unreadRows.Scan(&sender, &count); err != nil {
			return nil, err
		}
		unread[sender] = count
	}
	if err := unreadRows.Err(); err != nil {
		return nil, err
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(counterparts)), ",")
	args := make([]any, len(counterparts))
	for i, c := range counterparts {
		args[i] = c
	}
	profileRows, err := s.db.QueryContext(ctx, `
		SELECT id, name, avatar_url, created_at
		FROM users WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer profileRows.Close()

	profiles := make(map[string]models.Profile)
	for profileRows.Next() {
		var p models.Profile
		var idStr string
		if err := profileRows.Scan(&idStr, &p.Name, &p.AvatarURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		profiles[idStr] = p
	}
	if err := profileRows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		id := summaries[i].Counterpart.ID.String()
		if p, ok := profiles[id]; ok {
			summaries[i].Counterpart = p
		}
		summaries[i].UnreadCount = unread[id]
	}
	return summaries, nil
}

// DeleteMessage removes a message by ID.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
