// Package registrations enrolls users in events and serves the participant
// listings. Team enrollment goes through RegisterMembers so it can share the
// team manager's transaction.
package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/database"
	"github.com/gdg-garage/eventra-api/internal/events"
	"github.com/gdg-garage/eventra-api/internal/idgen"
	"github.com/gdg-garage/eventra-api/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	ids *idgen.Generator
	log *zap.Logger
}

func NewService(db *gorm.DB, ids *idgen.Generator, log *zap.Logger) *Service {
	return &Service{db: db, ids: ids, log: log.Named("registrations")}
}

type EventSummary struct {
	ID        uint      `json:"id"`
	EventCode string    `json:"event_id"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Venue     string    `json:"venue"`
}

type UserSummary struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Mobile  string `json:"mobile"`
	College string `json:"college"`
}

// Enrollment is the result of a successful individual registration.
type Enrollment struct {
	models.Registration
	AttendanceID string       `json:"attendance_id"`
	Event        EventSummary `json:"event"`
	User         UserSummary  `json:"user"`
}

// RegisterIndividual enrolls a user without a team. Team events only accept
// users whose team has already been registered, which means they are enrolled
// already.
func (s *Service) RegisterIndividual(ctx context.Context, userID, eventID uint) (*Enrollment, error) {
	var (
		event      *models.Event
		reg        *models.Registration
		attendance *models.Attendance
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = events.Load(tx, eventID)
		if err != nil {
			return err
		}

		if event.AllowsTeams() {
			status, found, err := teamStatus(tx, eventID, userID)
			if err != nil {
				return err
			}
			if !found {
				return apperr.TeamRequired(event.MinTeamSize, event.MaxTeamSize)
			}
			if status != models.TeamStatusRegistered {
				return apperr.TeamNotRegistered(string(status))
			}
		}

		var n int64
		if err := tx.Model(&models.Registration{}).
			Where("user_id = ? AND event_id = ?", userID, eventID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrAlreadyRegistered
		}

		reg, attendance, err = s.enroll(ctx, tx, eventID, userID, nil)
		if database.IsUniqueViolation(err) {
			return apperr.ErrAlreadyRegistered
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	s.log.Info("registered",
		zap.String("registration_id", reg.RegistrationID),
		zap.String("participant_id", reg.ParticipantID),
		zap.Uint("event_id", eventID))

	return &Enrollment{
		Registration: *reg,
		AttendanceID: attendance.AttendanceID,
		Event:        eventSummary(*event),
		User:         userSummary(user),
	}, nil
}

// RegisterMembers enrolls every user as a member of teamID inside tx. Any
// existing registration for the event fails the whole batch.
func (s *Service) RegisterMembers(ctx context.Context, tx *gorm.DB, eventID, teamID uint, userIDs []uint) ([]models.Registration, error) {
	var n int64
	if err := tx.Model(&models.Registration{}).
		Where("event_id = ? AND user_id IN ?", eventID, userIDs).
		Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperr.ErrMemberAlreadyRegistered
	}

	out := make([]models.Registration, 0, len(userIDs))
	for _, userID := range userIDs {
		reg, _, err := s.enroll(ctx, tx, eventID, userID, &teamID)
		if database.IsUniqueViolation(err) {
			return nil, apperr.ErrMemberAlreadyRegistered
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, nil
}

// enroll writes one registration and its NotMarked attendance row.
func (s *Service) enroll(ctx context.Context, tx *gorm.DB, eventID, userID uint, teamID *uint) (*models.Registration, *models.Attendance, error) {
	ids := s.ids.WithDB(tx)

	participantID, err := ids.EnsureParticipantID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	regID, err := ids.Next(ctx, idgen.Registration)
	if err != nil {
		return nil, nil, err
	}
	reg := models.Registration{
		RegistrationID: regID,
		UserID:         userID,
		EventID:        eventID,
		ParticipantID:  participantID,
		TeamID:         teamID,
	}
	if err := tx.Create(&reg).Error; err != nil {
		return nil, nil, fmt.Errorf("create registration: %w", err)
	}

	attID, err := ids.Next(ctx, idgen.Attendance)
	if err != nil {
		return nil, nil, err
	}
	attendance := models.Attendance{
		AttendanceID:   attID,
		RegistrationID: reg.ID,
		Status:         models.AttendanceNotMarked,
	}
	if err := tx.Create(&attendance).Error; err != nil {
		return nil, nil, fmt.Errorf("create attendance: %w", err)
	}
	return &reg, &attendance, nil
}

func teamStatus(tx *gorm.DB, eventID, userID uint) (models.TeamStatus, bool, error) {
	var team models.Team
	err := tx.Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.event_id = ? AND team_members.user_id = ?", eventID, userID).
		Take(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return team.Status, true, nil
}

type Teammate struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type TeamInfo struct {
	TeamName  string     `json:"team_name"`
	Teammates []Teammate `json:"teammates"`
}

type MyRegistration struct {
	models.Registration
	Event      *models.Event           `json:"event"`
	Attendance models.AttendanceStatus `json:"attendance"`
	TeamInfo   *TeamInfo               `json:"team_info"`
}

// ListMine returns the user's registrations, newest first.
func (s *Service) ListMine(ctx context.Context, userID uint) ([]MyRegistration, error) {
	db := s.db.WithContext(ctx)

	var regs []models.Registration
	if err := db.Where("user_id = ?", userID).Order("created_at desc, id desc").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	out := make([]MyRegistration, len(regs))
	if len(regs) == 0 {
		return out, nil
	}

	var (
		eventIDs []uint
		regIDs   []uint
		teamIDs  []uint
	)
	for _, r := range regs {
		eventIDs = append(eventIDs, r.EventID)
		regIDs = append(regIDs, r.ID)
		if r.TeamID != nil {
			teamIDs = append(teamIDs, *r.TeamID)
		}
	}

	var evs []models.Event
	if err := db.Where("id IN ?", eventIDs).Find(&evs).Error; err != nil {
		return nil, err
	}
	eventByID := make(map[uint]*models.Event, len(evs))
	for i := range evs {
		eventByID[evs[i].ID] = &evs[i]
	}

	var atts []models.Attendance
	if err := db.Where("registration_id IN ?", regIDs).Find(&atts).Error; err != nil {
		return nil, err
	}
	statusByReg := make(map[uint]models.AttendanceStatus, len(atts))
	for _, a := range atts {
		statusByReg[a.RegistrationID] = a.Status
	}

	teams, err := teamRosters(db, teamIDs)
	if err != nil {
		return nil, err
	}

	for i, r := range regs {
		status, ok := statusByReg[r.ID]
		if !ok {
			status = models.AttendanceNotMarked
		}
		out[i] = MyRegistration{
			Registration: r,
			Event:        eventByID[r.EventID],
			Attendance:   status,
		}
		if r.TeamID == nil {
			continue
		}
		roster, ok := teams[*r.TeamID]
		if !ok {
			continue
		}
		info := &TeamInfo{TeamName: roster.name, Teammates: []Teammate{}}
		for _, m := range roster.members {
			if m.ID != userID {
				info.Teammates = append(info.Teammates, m)
			}
		}
		out[i].TeamInfo = info
	}
	return out, nil
}

type roster struct {
	name    string
	members []Teammate
}

// teamRosters loads team names and members, leader first then join order.
func teamRosters(db *gorm.DB, teamIDs []uint) (map[uint]roster, error) {
	out := make(map[uint]roster)
	if len(teamIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		TeamID   uint
		TeamName string
		UserID   uint
		Name     string
	}
	err := db.Table("team_members").
		Select("team_members.team_id, teams.team_name, users.id AS user_id, users.name").
		Joins("JOIN teams ON teams.id = team_members.team_id").
		Joins("JOIN users ON users.id = team_members.user_id").
		Where("team_members.team_id IN ?", teamIDs).
		Order("team_members.team_id, CASE WHEN team_members.role = 'leader' THEN 0 ELSE 1 END, team_members.joined_at, team_members.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load team rosters: %w", err)
	}
	for _, r := range rows {
		ro := out[r.TeamID]
		ro.name = r.TeamName
		ro.members = append(ro.members, Teammate{ID: r.UserID, Name: r.Name})
		out[r.TeamID] = ro
	}
	return out, nil
}

type Participant struct {
	ID               uint                    `json:"id"`
	RegistrationID   string                  `json:"registration_id"`
	ParticipantID    string                  `json:"participant_id"`
	UserID           uint                    `json:"user_id"`
	Name             string                  `json:"name"`
	Email            string                  `json:"email"`
	Mobile           string                  `json:"mobile"`
	College          string                  `json:"college"`
	TeamID           *uint                   `json:"team_id"`
	AttendanceStatus models.AttendanceStatus `json:"attendance_status"`
	MarkedAt         *time.Time              `json:"marked_at"`
	RegisteredAt     time.Time               `json:"registered_at"`
}

type ParticipantList struct {
	Event        EventSummary  `json:"event"`
	Participants []Participant `json:"participants"`
	Total        int           `json:"total"`
}

// Participants lists everyone registered for eventID in registration order,
// with their attendance status.
func Participants(db *gorm.DB, eventID uint) ([]Participant, error) {
	var rows []Participant
	err := db.Table("registrations").
		Select(`registrations.id, registrations.registration_id, registrations.participant_id,
			registrations.user_id, registrations.team_id, registrations.created_at AS registered_at,
			users.name, users.email, users.mobile, users.college,
			COALESCE(attendances.status, ?) AS attendance_status, attendances.marked_at`, models.AttendanceNotMarked).
		Joins("JOIN users ON users.id = registrations.user_id").
		Joins("LEFT JOIN attendances ON attendances.registration_id = registrations.id AND attendances.deleted_at IS NULL").
		Where("registrations.event_id = ? AND registrations.deleted_at IS NULL", eventID).
		Order("registrations.created_at, registrations.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	if rows == nil {
		rows = []Participant{}
	}
	return rows, nil
}

func (s *Service) ListEventParticipants(ctx context.Context, eventID uint, caller models.User) (*ParticipantList, error) {
	db := s.db.WithContext(ctx)
	event, err := events.Load(db, eventID)
	if err != nil {
		return nil, err
	}
	if err := events.CanView(db, eventID, caller); err != nil {
		return nil, err
	}
	participants, err := Participants(db, eventID)
	if err != nil {
		return nil, err
	}
	return &ParticipantList{
		Event:        eventSummary(*event),
		Participants: participants,
		Total:        len(participants),
	}, nil
}

type Filter struct {
	EventID *uint
	College string
}

type AdminEntry struct {
	ID             uint         `json:"id"`
	RegistrationID string       `json:"registration_id"`
	ParticipantID  string       `json:"participant_id"`
	TeamID         *uint        `json:"team_id"`
	CreatedAt      time.Time    `json:"timestamp"`
	User           UserSummary  `json:"user"`
	Event          EventSummary `json:"event"`
}

// ListAll returns every registration, newest first. College matches as a
// case-insensitive substring.
func (s *Service) ListAll(ctx context.Context, f Filter) ([]AdminEntry, error) {
	q := s.db.WithContext(ctx).Table("registrations").
		Select(`registrations.id, registrations.registration_id, registrations.participant_id,
			registrations.team_id, registrations.created_at, registrations.event_id,
			users.id AS user_id, users.name, users.email, users.mobile, users.college,
			events.event_code, events.title, events.date, events.venue`).
		Joins("JOIN users ON users.id = registrations.user_id").
		Joins("LEFT JOIN events ON events.id = registrations.event_id").
		Where("registrations.deleted_at IS NULL")
	if f.EventID != nil {
		q = q.Where("registrations.event_id = ?", *f.EventID)
	}
	if college := strings.TrimSpace(f.College); college != "" {
		q = q.Where(`LOWER(users.college) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(college))+"%")
	}

	var rows []struct {
		ID             uint
		RegistrationID string
		ParticipantID  string
		TeamID         *uint
		CreatedAt      time.Time
		UserID         uint
		Name           string
		Email          string
		Mobile         string
		College        string
		EventID        uint
		EventCode      *string
		Title          *string
		Date           *time.Time
		Venue          *string
	}
	if err := q.Order("registrations.created_at desc, registrations.id desc").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list all registrations: %w", err)
	}

	out := make([]AdminEntry, len(rows))
	for i, r := range rows {
		out[i] = AdminEntry{
			ID:             r.ID,
			RegistrationID: r.RegistrationID,
			ParticipantID:  r.ParticipantID,
			TeamID:         r.TeamID,
			CreatedAt:      r.CreatedAt,
			User:           UserSummary{ID: r.UserID, Name: r.Name, Email: r.Email, Mobile: r.Mobile, College: r.College},
			Event:          EventSummary{ID: r.EventID, EventCode: deref(r.EventCode), Title: deref(r.Title), Venue: deref(r.Venue)},
		}
		if r.Date != nil {
			out[i].Event.Date = *r.Date
		}
	}
	return out, nil
}

func eventSummary(e models.Event) EventSummary {
	return EventSummary{ID: e.ID, EventCode: e.EventCode, Title: e.Title, Date: e.Date, Venue: e.Venue}
}

func userSummary(u models.User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Mobile: u.Mobile, College: u.College}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
