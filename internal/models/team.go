package models

import (
	"time"

	"github.com/google/uuid"
)

type Team struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Name      string
	OwnerID   uuid.UUID
}

type TeamMember struct {
	TeamID   uuid.UUID
	UserID   uuid.UUID
	Username string
}
