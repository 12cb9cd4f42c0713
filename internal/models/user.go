package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the minimal display view of a user record. The full user
// document (education, employment, connection graph) is owned by the
// directory service; messaging only needs a name and an avatar.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"profilePicture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
