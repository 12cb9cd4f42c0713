package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/sahilmundada/rathialmuninetwork/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// RunMigrations creates the schema if it does not exist.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender_id UUID NOT NULL REFERENCES users(id),
			receiver_id UUID NOT NULL REFERENCES users(id),
			content TEXT NOT NULL DEFAULT '',
			attachments TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_pair
			ON messages(sender_id, receiver_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_unread
			ON messages(receiver_id, read);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, avatarURL string) (*models.Profile, error) {
	user := &models.Profile{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, avatar_url)
		VALUES ($1, $2)
		RETURNING id, name, avatar_url, created_at
	`, name, avatarURL).Scan(
		&user.ID,
		&user.Name,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when no such user
// exists, matching the store convention callers branch on.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	user := &models.Profile{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, avatar_url, created_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Name,
		&user.AvatarURL,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CountUsers returns the total number of users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AppendMessage persists a new message, assigning its ULID and creation
// timestamp. The caller's struct is updated with the assigned values.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, attachments, created_at, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Attachments, msg.CreatedAt, msg.Read)
	return err
}

// GetMessage retrieves a single message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, receiver_id, content, attachments, created_at, read
		FROM messages WHERE id = $1
	`, id).Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&msg.Attachments,
		&msg.CreatedAt,
		&msg.Read,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ConversationBetween retrieves all messages between two users ordered by
// creation time ascending, with sender and receiver display attributes.
func (s *PostgresStore) ConversationBetween(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.sender_id, m.receiver_id, m.content, m.attachments, m.created_at, m.read,
		       su.name, su.avatar_url, ru.name, ru.avatar_url
		FROM messages m
		JOIN users su ON su.id = m.sender_id
		JOIN users ru ON ru.id = m.receiver_id
		WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		   OR (m.sender_id = $2 AND m.receiver_id = $1)
		ORDER BY m.created_at ASC, m.id ASC
	`, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		sender := &models.Profile{}
		receiver := &models.Profile{}
		err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&msg.Attachments,
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
func (s *PostgresStore) MarkConversationRead(ctx context.Context, readerID, counterpartID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET read = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND read = FALSE
	`, counterpartID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecentConversations computes, for every distinct counterpart, the most
// recent message and the count of unread messages addressed to userID.
// Ties on created_at break on id descending; ids are ULIDs so the result is
// stable across calls.
func (s *PostgresStore) RecentConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, content, attachments, created_at, read, counterpart
		FROM (
			SELECT t.*, ROW_NUMBER() OVER (
				PARTITION BY t.counterpart
				ORDER BY t.created_at DESC, t.id DESC
			) AS rn
			FROM (
				SELECT m.*,
				       CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS counterpart
				FROM messages m
				WHERE m.sender_id = $1 OR m.receiver_id = $1
			) t
		) ranked
		WHERE rn = 1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	var counterparts []uuid.UUID
	for rows.Next() {
		var sum models.ConversationSummary
		var counterpart uuid.UUID
		err := rows.Scan(
			&sum.LastMessage.ID,
			&sum.LastMessage.SenderID,
			&sum.LastMessage.ReceiverID,
			&sum.LastMessage.Content,
			&sum.LastMessage.Attachments,
			&sum.LastMessage.CreatedAt,
			&sum.LastMessage.Read,
			&counterpart,
		)
		if err != nil {
			return nil, err
		}
		sum.Counterpart.ID = counterpart
		summaries = append(summaries, sum)
		counterparts = append(counterparts, counterpart)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	// Unread counts per counterpart.
	unreadRows, err := s.pool.Query(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND read = FALSE
		GROUP BY sender_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer unreadRows.Close()

	unread := make(map[uuid.UUID]int)
	for unreadRows.Next() {
		var sender uuid.UUID
		var count int
		if err := unreadRows.Scan(&sender, &count); err != nil {
			return nil, err
		}
		unread[sender] = count
	}
	if err := unreadRows.Err(); err != nil {
		return nil, err
	}

	// Counterpart display attributes.
	profileRows, err := s.pool.Query(ctx, `
		SELECT id, name, avatar_url, created_at
		FROM users WHERE id = ANY($1)
	`, counterparts)
	if err != nil {
		return nil, err
	}
	defer profileRows.Close()

	profiles := make(map[uuid.UUID]models.Profile)
	for profileRows.Next() {
		var p models.Profile
		if err := profileRows.Scan(&p.ID, &p.Name, &p.AvatarURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		profiles[p.ID] = p
	}
	if err := profileRows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		id := summaries[i].Counterpart.ID
		if p, ok := profiles[id]; ok {
			summaries[i].Counterpart = p
		}
		summaries[i].UnreadCount = unread[id]
	}
	return summaries, nil
}

// DeleteMessage removes a message by ID.
func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
