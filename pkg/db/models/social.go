package models

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

type ConversationParticipant struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID `gorm:"column:conversation_id;type:uuid;not null"`
	UserID         uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
}

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID `gorm:"column:conversation_id;type:uuid;not null"`
	SenderID       uuid.UUID `gorm:"column:sender_id;type:uuid;not null"`
	Body           string    `gorm:"column:body;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

type Follow struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FollowerID  uuid.UUID `gorm:"column:follower_id;type:uuid;not null"`
	FollowingID uuid.UUID `gorm:"column:following_id;type:uuid;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

type AnalyticsEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid"`
	EventType string     `gorm:"column:event_type;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}
