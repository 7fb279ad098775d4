package models

import (
	"gorm.io/gorm"
)

type Registration struct {
	gorm.Model
	RegistrationID string `gorm:"uniqueIndex;not null" json:"registration_id"`
	UserID         uint   `gorm:"uniqueIndex:idx_user_event;not null" json:"user_id"`
	EventID        uint   `gorm:"uniqueIndex:idx_user_event;index;not null" json:"event_id"`
	ParticipantID  string `gorm:"index;not null" json:"participant_id"`
	TeamID         *uint  `gorm:"index" json:"team_id"`
}
