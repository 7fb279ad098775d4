package models

import (
	"time"

	"gorm.io/gorm"
)

// Event holds the team-size bounds consulted by team and registration flows.
// MaxTeamSize == 1 means individual registration only.
type Event struct {
	gorm.Model
	EventCode   string    `gorm:"uniqueIndex" json:"event_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	About       string    `json:"about"`
	Date        time.Time `json:"date"`
	Venue       string    `json:"venue"`
	TotalPrize  string    `json:"total_prize"`
	MinTeamSize int       `gorm:"default:1" json:"min_team_size"`
	MaxTeamSize int       `gorm:"default:1" json:"max_team_size"`
}

func (e Event) AllowsTeams() bool {
	return e.MaxTeamSize > 1
}

// EventCoordinator assigns a coordinator to an event.
type EventCoordinator struct {
	ID        uint `gorm:"primarykey"`
	EventID   uint `gorm:"uniqueIndex:idx_event_coordinator;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_event_coordinator;index;not null"`
	CreatedAt time.Time
}
