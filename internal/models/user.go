package models

import (
	"gorm.io/gorm"
)

type Role string

const (
	RoleStudent     Role = "student"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

type User struct {
	gorm.Model
	Name          string  `json:"name"`
	Email         string  `gorm:"uniqueIndex" json:"email"`
	PasswordHash  string  `json:"-"`
	Mobile        string  `json:"mobile"`
	College       string  `json:"college"`
	Role          Role    `gorm:"index;default:student" json:"role"`
	DiscordID     *string `gorm:"uniqueIndex" json:"discord_id,omitempty"`
	Avatar        string  `json:"avatar,omitempty"`
	StudentID     *string `gorm:"uniqueIndex" json:"student_id,omitempty"`
	ParticipantID *string `gorm:"uniqueIndex" json:"participant_id,omitempty"`
}
