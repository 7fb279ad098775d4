package models

import (
	"time"

	"gorm.io/gorm"
)

type AttendanceStatus string

const (
	AttendanceNotMarked AttendanceStatus = "NotMarked"
	AttendancePresent   AttendanceStatus = "Present"
	AttendanceAbsent    AttendanceStatus = "Absent"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceNotMarked, AttendancePresent, AttendanceAbsent:
		return true
	}
	return false
}

type Attendance struct {
	gorm.Model
	AttendanceID   string           `gorm:"uniqueIndex;not null" json:"attendance_id"`
	RegistrationID uint             `gorm:"uniqueIndex;not null" json:"registration_id"`
	Status         AttendanceStatus `gorm:"default:NotMarked" json:"status"`
	MarkedBy       *uint            `json:"marked_by"`
	MarkedAt       *time.Time       `json:"marked_at"`
}
