// Package attendance records who showed up. Every registration owns exactly
// one attendance row; marking it again overwrites the previous mark.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/database"
	"github.com/gdg-garage/eventra-api/internal/events"
	"github.com/gdg-garage/eventra-api/internal/idgen"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/gdg-garage/eventra-api/internal/registrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	ids *idgen.Generator
	log *zap.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, ids *idgen.Generator, log *zap.Logger) *Service {
	return &Service{db: db, ids: ids, log: log.Named("attendance"), now: time.Now}
}

// Mark sets the attendance status of a registration. Only coordinators
// assigned to the registration's event may mark it.
func (s *Service) Mark(ctx context.Context, coordinatorID, registrationID uint, status models.AttendanceStatus) (*models.Attendance, error) {
	if !status.Valid() {
		return nil, apperr.ErrInvalidStatus
	}

	var att models.Attendance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reg models.Registration
		if err := tx.First(&reg, registrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrRegistrationNotFound
			}
			return err
		}

		ok, err := events.IsAssigned(tx, reg.EventID, coordinatorID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrAccessDenied
		}

		now := s.now()
		err = tx.Where("registration_id = ?", reg.ID).Take(&att).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			id, err := s.ids.WithDB(tx).Next(ctx, idgen.Attendance)
			if err != nil {
				return err
			}
			att = models.Attendance{
				AttendanceID:   id,
				RegistrationID: reg.ID,
				Status:         status,
				MarkedBy:       &coordinatorID,
				MarkedAt:       &now,
			}
			err = tx.Create(&att).Error
			if database.IsUniqueViolation(err) {
				return apperr.ErrAlreadyRegistered.WithMessage("Attendance already exists for this registration")
			}
			return err
		case err != nil:
			return err
		}

		att.Status = status
		att.MarkedBy = &coordinatorID
		att.MarkedAt = &now
		return tx.Model(&att).Updates(map[string]any{
			"status":    status,
			"marked_by": coordinatorID,
			"marked_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("attendance marked",
		zap.String("attendance_id", att.AttendanceID),
		zap.String("status", string(status)),
		zap.Uint("marked_by", coordinatorID))
	return &att, nil
}

type Totals struct {
	TotalRegistered      int     `json:"total_registered"`
	Present              int     `json:"present"`
	Absent               int     `json:"absent"`
	NotMarked            int     `json:"not_marked"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

type Summary struct {
	Event      registrations.EventSummary  `json:"event"`
	Summary    Totals                      `json:"summary"`
	Attendance []registrations.Participant `json:"attendance"`
}

// EventSummary reports per-participant status and totals for an event.
func (s *Service) EventSummary(ctx context.Context, eventID uint, caller models.User) (*Summary, error) {
	db := s.db.WithContext(ctx)
	event, err := events.Load(db, eventID)
	if err != nil {
		return nil, err
	}
	if err := events.CanView(db, eventID, caller); err != nil {
		return nil, err
	}
	records, err := registrations.Participants(db, eventID)
	if err != nil {
		return nil, fmt.Errorf("attendance records: %w", err)
	}

	return &Summary{
		Event: registrations.EventSummary{
			ID:        event.ID,
			EventCode: event.EventCode,
			Title:     event.Title,
			Date:      event.Date,
			Venue:     event.Venue,
		},
		Summary:    tally(records),
		Attendance: records,
	}, nil
}

func tally(records []registrations.Participant) Totals {
	t := Totals{TotalRegistered: len(records)}
	for _, r := range records {
		switch r.AttendanceStatus {
		case models.AttendancePresent:
			t.Present++
		case models.AttendanceAbsent:
			t.Absent++
		default:
			t.NotMarked++
		}
	}
	if t.TotalRegistered > 0 {
		pct := float64(t.Present) / float64(t.TotalRegistered) * 100
		t.AttendancePercentage = math.Round(pct*100) / 100
	}
	return t
}
