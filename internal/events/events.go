// Package events is the event directory: event metadata, team-size bounds and
// coordinator assignments. Other services only read from it.
package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/idgen"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db       *gorm.DB
	ids      *idgen.Generator
	log      *zap.Logger
	validate *validator.Validate
}

func NewService(db *gorm.DB, ids *idgen.Generator, log *zap.Logger) *Service {
	return &Service{
		db:       db,
		ids:      ids,
		log:      log.Named("events"),
		validate: validator.New(),
	}
}

type Input struct {
	Title          string    `validate:"required"`
	Description    string    `validate:"required"`
	About          string    `validate:"required"`
	Date           time.Time `validate:"required"`
	Venue          string    `validate:"required"`
	TotalPrize     string
	MinTeamSize    int `validate:"min=1"`
	MaxTeamSize    int `validate:"min=1"`
	CoordinatorIDs []uint
}

// Update carries optional changes; nil fields are left alone.
type Update struct {
	Title          *string
	Description    *string
	About          *string
	Date           *time.Time
	Venue          *string
	TotalPrize     *string
	MinTeamSize    *int `validate:"omitempty,min=1"`
	MaxTeamSize    *int `validate:"omitempty,min=1"`
	CoordinatorIDs *[]uint
}

type Coordinator struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

type EventView struct {
	models.Event
	Coordinators []Coordinator `json:"coordinators"`
}

// Load returns the event or ErrEventNotFound.
func Load(db *gorm.DB, id uint) (*models.Event, error) {
	var event models.Event
	err := db.First(&event, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", id, err)
	}
	return &event, nil
}

// IsAssigned reports whether userID coordinates eventID.
func IsAssigned(db *gorm.DB, eventID, userID uint) (bool, error) {
	var n int64
	err := db.Model(&models.EventCoordinator{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check coordinator: %w", err)
	}
	return n > 0, nil
}

// CanView gates read access to an event's participants: admins always,
// coordinators only when assigned.
func CanView(db *gorm.DB, eventID uint, caller models.User) error {
	switch caller.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleCoordinator:
		ok, err := IsAssigned(db, eventID, caller.ID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.ErrAccessDenied
}

func (s *Service) Create(ctx context.Context, in Input) (*EventView, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.ErrInvalidInput.WithMessage("%v", err)
	}
	if in.MinTeamSize > in.MaxTeamSize {
		return nil, apperr.ErrInvalidTeamSize
	}

	var event models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkCoordinators(tx, in.CoordinatorIDs); err != nil {
			return err
		}
		code, err := s.ids.WithDB(tx).Next(ctx, idgen.Event)
		if err != nil {
			return err
		}
		event = models.Event{
			EventCode:   code,
			Title:       in.Title,
			Description: in.Description,
			About:       in.About,
			Date:        in.Date,
			Venue:       in.Venue,
			TotalPrize:  orDefault(in.TotalPrize, "N/A"),
			MinTeamSize: in.MinTeamSize,
			MaxTeamSize: in.MaxTeamSize,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		return addCoordinators(tx, event.ID, in.CoordinatorIDs)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("event created", zap.Uint("event_id", event.ID), zap.String("event_code", event.EventCode))
	return s.Get(ctx, event.ID)
}

func (s *Service) Update(ctx context.Context, id uint, in Update) (*EventView, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.ErrInvalidInput.WithMessage("%v", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := Load(tx, id)
		if err != nil {
			return err
		}

		prevMin := event.MinTeamSize
		minSize, maxSize := event.MinTeamSize, event.MaxTeamSize
		if in.MinTeamSize != nil {
			minSize = *in.MinTeamSize
		}
		if in.MaxTeamSize != nil {
			maxSize = *in.MaxTeamSize
		}
		if minSize > maxSize {
			return apperr.ErrInvalidTeamSize
		}

		changes := map[string]any{
			"min_team_size": minSize,
			"max_team_size": maxSize,
		}
		setIf(changes, "title", in.Title)
		setIf(changes, "description", in.Description)
		setIf(changes, "about", in.About)
		setIf(changes, "venue", in.Venue)
		setIf(changes, "total_prize", in.TotalPrize)
		if in.Date != nil {
			changes["date"] = *in.Date
		}
		if err := tx.Model(event).Updates(changes).Error; err != nil {
			return fmt.Errorf("update event %d: %w", id, err)
		}
		if minSize != prevMin {
			if err := resettleTeams(tx, id, minSize); err != nil {
				return err
			}
		}

		if in.CoordinatorIDs != nil {
			return replaceCoordinators(tx, id, *in.CoordinatorIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// resettleTeams recomputes forming/complete for the event's unregistered
// teams against a new minimum size.
func resettleTeams(tx *gorm.DB, eventID uint, minSize int) error {
	err := tx.Model(&models.Team{}).
		Where("event_id = ? AND status <> ?", eventID, models.TeamStatusRegistered).
		Update("status", gorm.Expr("CASE WHEN size >= ? THEN ? ELSE ? END",
			minSize, models.TeamStatusComplete, models.TeamStatusForming)).Error
	if err != nil {
		return fmt.Errorf("resettle teams of event %d: %w", eventID, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uint) (*EventView, error) {
	db := s.db.WithContext(ctx)
	event, err := Load(db, id)
	if err != nil {
		return nil, err
	}
	views, err := s.populate(db, []models.Event{*event})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns events by date. A non-empty query keeps only titles that
// fuzzily match it, best match first.
func (s *Service) List(ctx context.Context, query string) ([]EventView, error) {
	db := s.db.WithContext(ctx)
	var all []models.Event
	if err := db.Order("date asc").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	if query != "" {
		titles := make([]string, len(all))
		for i, e := range all {
			titles[i] = e.Title
		}
		ranks := fuzzy.RankFindNormalizedFold(query, titles)
		sort.Stable(ranks)

		matched := make([]models.Event, 0, len(ranks))
		for _, r := range ranks {
			matched = append(matched, all[r.OriginalIndex])
		}
		all = matched
	}
	return s.populate(db, all)
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := Load(tx, id); err != nil {
			return err
		}
		if err := tx.Where("event_id = ?", id).Delete(&models.EventCoordinator{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Event{}, id).Error
	})
	if err != nil {
		return err
	}
	s.log.Info("event deleted", zap.Uint("event_id", id))
	return nil
}

// AssignCoordinators adds coordinators, ignoring ones already assigned.
func (s *Service) AssignCoordinators(ctx context.Context, id uint, userIDs []uint) (*EventView, error) {
	if len(userIDs) == 0 {
		return nil, apperr.ErrInvalidInput.WithMessage("At least one coordinator ID is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := Load(tx, id); err != nil {
			return err
		}
		if err := checkCoordinators(tx, userIDs); err != nil {
			return err
		}
		return addCoordinators(tx, id, userIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ReplaceCoordinators sets the full coordinator list; an empty list clears it.
func (s *Service) ReplaceCoordinators(ctx context.Context, id uint, userIDs []uint) (*EventView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := Load(tx, id); err != nil {
			return err
		}
		return replaceCoordinators(tx, id, userIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) RemoveCoordinator(ctx context.Context, id, userID uint) (*EventView, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := Load(tx, id); err != nil {
			return err
		}
		return tx.Where("event_id = ? AND user_id = ?", id, userID).Delete(&models.EventCoordinator{}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func replaceCoordinators(tx *gorm.DB, eventID uint, userIDs []uint) error {
	if err := checkCoordinators(tx, userIDs); err != nil {
		return err
	}
	if err := tx.Where("event_id = ?", eventID).Delete(&models.EventCoordinator{}).Error; err != nil {
		return err
	}
	return addCoordinators(tx, eventID, userIDs)
}

func addCoordinators(tx *gorm.DB, eventID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]models.EventCoordinator, 0, len(userIDs))
	for _, id := range unique(userIDs) {
		rows = append(rows, models.EventCoordinator{EventID: eventID, UserID: id})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// checkCoordinators requires every id to be an existing coordinator account.
func checkCoordinators(tx *gorm.DB, userIDs []uint) error {
	ids := unique(userIDs)
	if len(ids) == 0 {
		return nil
	}
	var users []models.User
	if err := tx.Select("id", "role").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return err
	}
	for _, u := range users {
		if u.Role != models.RoleCoordinator {
			return apperr.ErrInvalidCoordinator
		}
	}
	if len(users) != len(ids) {
		return apperr.ErrInvalidCoordinator.WithMessage("One or more coordinators not found")
	}
	return nil
}

func (s *Service) populate(db *gorm.DB, list []models.Event) ([]EventView, error) {
	views := make([]EventView, len(list))
	if len(list) == 0 {
		return views, nil
	}
	ids := make([]uint, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}

	var rows []struct {
		EventID uint
		ID      uint
		Name    string
		Email   string
		Mobile  string
	}
	err := db.Table("event_coordinators").
		Select("event_coordinators.event_id, users.id, users.name, users.email, users.mobile").
		Joins("JOIN users ON users.id = event_coordinators.user_id AND users.deleted_at IS NULL").
		Where("event_coordinators.event_id IN ?", ids).
		Order("event_coordinators.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load coordinators: %w", err)
	}

	byEvent := make(map[uint][]Coordinator)
	for _, r := range rows {
		byEvent[r.EventID] = append(byEvent[r.EventID], Coordinator{ID: r.ID, Name: r.Name, Email: r.Email, Mobile: r.Mobile})
	}
	for i, e := range list {
		views[i] = EventView{Event: e, Coordinators: byEvent[e.ID]}
		if views[i].Coordinators == nil {
			views[i].Coordinators = []Coordinator{}
		}
	}
	return views, nil
}

func unique(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func setIf(changes map[string]any, column string, value *string) {
	if value != nil {
		changes[column] = *value
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
