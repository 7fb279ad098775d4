package models

import (
	"time"

	"gorm.io/gorm"
)

type TeamStatus string

const (
	TeamStatusForming    TeamStatus = "forming"
	TeamStatusComplete   TeamStatus = "complete"
	TeamStatusRegistered TeamStatus = "registered"
)

type Team struct {
	gorm.Model
	TeamCode string     `gorm:"uniqueIndex;size:6" json:"team_code"`
	TeamName string     `json:"team_name"`
	EventID  uint       `gorm:"index;not null" json:"event_id"`
	LeaderID uint       `gorm:"index;not null" json:"leader_id"`
	Size     int        `gorm:"not null;default:1" json:"size"`
	Status   TeamStatus `gorm:"index;default:forming" json:"status"`
}

type TeamRole string

const (
	TeamRoleLeader TeamRole = "leader"
	TeamRoleMember TeamRole = "member"
)

// TeamMember is one seat in a team. The (event, user) index keeps a user in at
// most one team per event.
type TeamMember struct {
	ID       uint     `gorm:"primarykey"`
	TeamID   uint     `gorm:"index;not null"`
	EventID  uint     `gorm:"uniqueIndex:idx_event_member;not null"`
	UserID   uint     `gorm:"uniqueIndex:idx_event_member;not null"`
	Role     TeamRole `gorm:"default:member"`
	JoinedAt time.Time
}
