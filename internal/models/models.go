package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role values for WAUser.Role.
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// WAUser is a WhatsApp correspondent identified only by a salted hash of
// their number. The number itself is never stored.
type WAUser struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WaIDHash    string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	WaLast4     *string    `gorm:"type:varchar(4)" json:"wa_last4,omitempty"` // support lookups only
	DisplayName string     `gorm:"type:varchar(255)" json:"display_name"`
	Locale      string     `gorm:"type:varchar(10);default:'he-IL'" json:"locale"`
	City        string     `gorm:"type:varchar(120)" json:"city"`
	TZ          string     `gorm:"column:tz;type:varchar(64);default:'Asia/Jerusalem'" json:"tz"`
	ConsentTS   *time.Time `json:"consent_ts,omitempty"`
	DateJoined  time.Time  `gorm:"autoCreateTime" json:"date_joined"`
	LastSeen    *time.Time `gorm:"index" json:"last_seen,omitempty"`
	Role        string     `gorm:"type:varchar(10);default:'user'" json:"role"`
	IsActive    bool       `gorm:"default:true" json:"is_active"`
}

func (WAUser) TableName() string {
	return "wa_users"
}

func (u *WAUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ProcessedMessage records an upstream message id once it has been ingested,
// so redelivered webhooks are recognised.
type ProcessedMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	MessageID  string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"message_id"`
	WaIDHash   string    `gorm:"type:varchar(64);not null;index" json:"-"`
	ReceivedAt time.Time `gorm:"autoCreateTime" json:"received_at"`
}

func (ProcessedMessage) TableName() string {
	return "processed_messages"
}

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&WAUser{},
		&ProcessedMessage{},
	}
}
