package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sahilmundada/rathialmuninetwork/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DataStore defines the interface for the durable message log and the user
// directory view it joins against. Both PostgresStore and SQLiteStore
// implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, name, avatarURL string) (*models.Profile, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	CountUsers(ctx context.Context) (int64, error)

	// Message operations.
	//
	// AppendMessage assigns the id and creation timestamp; the caller's
	// Message is updated in place with the persisted values.
	// ConversationBetween returns the pair-union ordered by creation time
	// ascending with sender/receiver profiles expanded.
	// MarkConversationRead flips read on every unread message from
	// counterpartID addressed to readerID and returns how many it touched.
	AppendMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ConversationBetween(ctx context.Context, a, b uuid.UUID) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, readerID, counterpartID uuid.UUID) (int64, error)
	RecentConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	DeleteMessage(ctx context.Context, id string) error
}
