package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/database"
	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/gdg-garage/eventra-api/internal/notifier"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	validate     = validator.New()
	passwordCost = bcrypt.DefaultCost
)

type SignUpInput struct {
	Body struct {
		Name     string `json:"name" doc:"Full name" required:"true" minLength:"1" validate:"required"`
		Email    string `json:"email" doc:"Login email" required:"true" validate:"required,email"`
		Password string `json:"password" doc:"At least 6 characters" required:"true" minLength:"6" validate:"required,min=6"`
		Mobile   string `json:"mobile" doc:"Mobile number" required:"true" validate:"required"`
		College  string `json:"college" doc:"College name" required:"true" validate:"required"`
	}
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" required:"true"`
		Password string `json:"password" required:"true"`
	}
}

type SessionOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Message string      `json:"message"`
		Token   string      `json:"token"`
		User    models.User `json:"user"`
	}
}

// HandleSignUp creates a student account with its student and participant ids
// and starts a session.
func (h *AuthHandler) HandleSignUp(ctx context.Context, input *SignUpInput) (*SessionOutput, error) {
	if err := validate.Struct(input.Body); err != nil {
		return nil, apperr.ErrInvalidInput.WithMessage("%v", err)
	}
	email := strings.ToLower(strings.TrimSpace(input.Body.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Body.Password), passwordCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := models.User{
		Name:         strings.TrimSpace(input.Body.Name),
		Email:        email,
		PasswordHash: string(hash),
		Mobile:       input.Body.Mobile,
		College:      input.Body.College,
		Role:         models.RoleStudent,
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.ErrEmailTaken
			}
			return err
		}
		return h.issueIDs(ctx, tx, &user)
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	h.log.Info("student signed up", zap.Uint("user_id", user.ID), zap.Stringp("student_id", user.StudentID))
	h.welcome(user)

	return h.session(user, "Registration successful")
}

func (h *AuthHandler) HandleLogin(ctx context.Context, input *LoginInput) (*SessionOutput, error) {
	email := strings.ToLower(strings.TrimSpace(input.Body.Email))

	var user models.User
	err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Body.Password)) != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	return h.session(user, "Login successful")
}

type MeInput struct {
	AuthInput
}

type MeOutput struct {
	Body models.User
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *MeInput) (*MeOutput, error) {
	user, err := h.Authorize(ctx, input.AuthInput)
	if err != nil {
		return nil, err
	}
	return &MeOutput{Body: *user}, nil
}

// issueIDs gives a new student account its student and participant ids.
func (h *AuthHandler) issueIDs(ctx context.Context, tx *gorm.DB, user *models.User) error {
	ids := h.ids.WithDB(tx)
	studentID, err := ids.EnsureStudentID(ctx, user.ID)
	if err != nil {
		return err
	}
	participantID, err := ids.EnsureParticipantID(ctx, user.ID)
	if err != nil {
		return err
	}
	user.StudentID = &studentID
	user.ParticipantID = &participantID
	return nil
}

func (h *AuthHandler) welcome(user models.User) {
	if h.notifier == nil {
		return
	}
	notifier.Async(h.log, "student_welcome", func() error {
		return h.notifier.NotifyStudentWelcome(user)
	})
}

func (h *AuthHandler) session(user models.User, message string) (*SessionOutput, error) {
	token, err := h.GenerateToken(user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := &SessionOutput{SetCookie: *h.sessionCookie(token)}
	out.Body.Message = message
	out.Body.Token = token
	out.Body.User = user
	return out, nil
}
