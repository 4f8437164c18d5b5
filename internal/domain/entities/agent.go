package entities

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a call-center agent synced from the platform
type Agent struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username    string    `json:"username" gorm:"type:varchar(100);not null;uniqueIndex"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null"`
	Extension   *string   `json:"extension,omitempty" gorm:"type:varchar(20)"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Agent) TableName() string {
	return "agents"
}
