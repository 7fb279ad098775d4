// Package idgen issues the human readable identifiers used across EVENTRA:
// <PREFIX><YEAR>_<5 digit sequence> for students, participants, registrations,
// attendance rows and events, plus 6 character team codes.
//
// Sequences come from a counter row per (namespace, year) that is incremented
// inside the caller's transaction. Every namespace restarts at 1 each year.
package idgen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Namespace string

const (
	Student      Namespace = "STU"
	Participant  Namespace = "PAR"
	Registration Namespace = "REG"
	Attendance   Namespace = "ATT"
	Event        Namespace = "EVT"
)

const (
	DefaultMaxAttempts = 10
	TeamCodeLength     = 6
	teamCodeAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type target struct {
	model  any
	column string
}

// targets is where issued ids of each namespace are stored.
var targets = map[Namespace]target{
	Student:      {&models.User{}, "student_id"},
	Participant:  {&models.User{}, "participant_id"},
	Registration: {&models.Registration{}, "registration_id"},
	Attendance:   {&models.Attendance{}, "attendance_id"},
	Event:        {&models.Event{}, "event_code"},
}

type Generator struct {
	db          *gorm.DB
	maxAttempts int
	now         func() time.Time
	random      io.Reader
}

type Option func(*Generator)

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

func New(db *gorm.DB, opts ...Option) *Generator {
	g := &Generator{
		db:          db,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithDB returns a copy of g that reads and writes through db, usually the
// caller's transaction.
func (g *Generator) WithDB(db *gorm.DB) *Generator {
	c := *g
	c.db = db
	return &c
}

func Format(ns Namespace, year, seq int) string {
	return fmt.Sprintf("%s%d_%05d", ns, year, seq)
}

// Next issues the next identifier of ns for the current year. A candidate that
// already exists in the target table is skipped; after maxAttempts skips the
// namespace is reported exhausted.
func (g *Generator) Next(ctx context.Context, ns Namespace) (string, error) {
	t, ok := targets[ns]
	if !ok {
		return "", fmt.Errorf("idgen: unknown namespace %q", ns)
	}
	year := g.now().Year()
	db := g.db.WithContext(ctx)

	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		seq, err := g.increment(db, ns, year)
		if err != nil {
			return "", err
		}
		candidate := Format(ns, year, seq)

		var n int64
		if err := db.Model(t.model).Unscoped().Where(t.column+" = ?", candidate).Count(&n).Error; err != nil {
			return "", fmt.Errorf("idgen: check %s: %w", candidate, err)
		}
		if n == 0 {
			return candidate, nil
		}
	}
	return "", apperr.ErrIDSpaceExhausted.WithMessage("ID space exhausted for %s%d after %d attempts", ns, year, g.maxAttempts)
}

func (g *Generator) increment(db *gorm.DB, ns Namespace, year int) (int, error) {
	var value int
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Counter{}).
			Where("namespace = ? AND year = ?", string(ns), year).
			UpdateColumn("value", gorm.Expr("value + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			seed, err := issued(tx, ns, year)
			if err != nil {
				return err
			}
			counter := models.Counter{Namespace: string(ns), Year: year, Value: int(seed) + 1}
			res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				value = counter.Value
				return nil
			}
			// another writer seeded the row first
			if err := tx.Model(&models.Counter{}).
				Where("namespace = ? AND year = ?", string(ns), year).
				UpdateColumn("value", gorm.Expr("value + ?", 1)).Error; err != nil {
				return err
			}
		}

		var counter models.Counter
		if err := tx.Where("namespace = ? AND year = ?", string(ns), year).Take(&counter).Error; err != nil {
			return err
		}
		value = counter.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("idgen: increment %s%d: %w", ns, year, err)
	}
	return value, nil
}

// issued counts identifiers already stored for ns in year. It seeds a fresh
// counter so ids created before the counter existed are not reissued.
func issued(db *gorm.DB, ns Namespace, year int) (int64, error) {
	t := targets[ns]
	prefix := fmt.Sprintf("%s%d\\_%%", ns, year)
	var n int64
	err := db.Model(t.model).Unscoped().Where(t.column+` LIKE ? ESCAPE '\'`, prefix).Count(&n).Error
	return n, err
}

// TeamCode draws random codes from [A-Z0-9] until one is not used by any team.
func (g *Generator) TeamCode(ctx context.Context) (string, error) {
	db := g.db.WithContext(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := randomCode(g.random, TeamCodeLength)
		if err != nil {
			return "", fmt.Errorf("idgen: team code: %w", err)
		}
		var n int64
		if err := db.Model(&models.Team{}).Unscoped().Where("team_code = ?", code).Count(&n).Error; err != nil {
			return "", fmt.Errorf("idgen: check team code: %w", err)
		}
		if n == 0 {
			return code, nil
		}
	}
}

// randomCode maps bytes onto the alphabet, rejecting values past the last
// full multiple of its length so every character is equally likely.
func randomCode(r io.Reader, length int) (string, error) {
	const limit = 256 - 256%len(teamCodeAlphabet)
	out := make([]byte, 0, length)
	buf := make([]byte, 1)
	for len(out) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		if int(buf[0]) >= limit {
			continue
		}
		out = append(out, teamCodeAlphabet[int(buf[0])%len(teamCodeAlphabet)])
	}
	return string(out), nil
}

// EnsureParticipantID returns the user's participant id, issuing and storing
// one on first use. Once set it never changes.
func (g *Generator) EnsureParticipantID(ctx context.Context, userID uint) (string, error) {
	return g.ensureUserID(ctx, userID, Participant)
}

// EnsureStudentID is the student id counterpart of EnsureParticipantID.
func (g *Generator) EnsureStudentID(ctx context.Context, userID uint) (string, error) {
	return g.ensureUserID(ctx, userID, Student)
}

func (g *Generator) ensureUserID(ctx context.Context, userID uint, ns Namespace) (string, error) {
	column := targets[ns].column
	db := g.db.WithContext(ctx)

	current, err := userColumn(db, userID, column)
	if err != nil {
		return "", err
	}
	if current != nil {
		return *current, nil
	}

	id, err := g.Next(ctx, ns)
	if err != nil {
		return "", err
	}
	res := db.Model(&models.User{}).
		Where("id = ? AND "+column+" IS NULL", userID).
		Update(column, id)
	if res.Error != nil {
		return "", fmt.Errorf("idgen: store %s: %w", column, res.Error)
	}
	if res.RowsAffected == 1 {
		return id, nil
	}

	// a concurrent request assigned one first
	current, err = userColumn(db, userID, column)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", fmt.Errorf("idgen: %s for user %d vanished", column, userID)
	}
	return *current, nil
}

func userColumn(db *gorm.DB, userID uint, column string) (*string, error) {
	var user models.User
	err := db.Select("id", column).Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("idgen: load user %d: %w", userID, err)
	}
	if column == targets[Student].column {
		return user.StudentID, nil
	}
	return user.ParticipantID, nil
}
