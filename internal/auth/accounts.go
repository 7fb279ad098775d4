package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/gdg-garage/eventra-api/internal/apperr"
	"github.com/gdg-garage/eventra-api/internal/database"
	"github.com/gdg-garage/eventra-api/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const coordinatorPasswordPrefix = "COORD-"

// EnsureAdmin makes sure the configured admin account exists with the
// configured password. An existing account with that email is promoted.
func (h *AuthHandler) EnsureAdmin(ctx context.Context) error {
	if !h.cfg.AdminBootstrapEnabled() {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(h.cfg.AdminEmail))
	hash, err := bcrypt.GenerateFromPassword([]byte(h.cfg.AdminPassword), passwordCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	db := h.db.WithContext(ctx)
	var user models.User
	err = db.Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Name:         h.cfg.AdminName,
			Email:        email,
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		h.log.Info("admin account created", zap.Uint("user_id", user.ID), zap.String("email", email))
		return nil
	case err != nil:
		return fmt.Errorf("find admin: %w", err)
	}

	err = db.Model(&user).Updates(map[string]any{
		"role":          models.RoleAdmin,
		"password_hash": string(hash),
	}).Error
	if err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	h.log.Info("admin account ensured", zap.Uint("user_id", user.ID), zap.String("email", email))
	return nil
}

type CreateCoordinatorInput struct {
	AuthInput
	Body struct {
		Name    string `json:"name" required:"true" minLength:"1" validate:"required"`
		Email   string `json:"email" required:"true" validate:"required,email"`
		Mobile  string `json:"mobile" required:"true" validate:"required"`
		College string `json:"college" required:"true" validate:"required"`
		RollNo  string `json:"roll_no" required:"true" minLength:"1" validate:"required"`
	}
}

type CoordinatorAccount struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Mobile  string `json:"mobile"`
	College string `json:"college"`
	RollNo  string `json:"roll_no"`
}

type CreateCoordinatorOutput struct {
	Body struct {
		Message           string             `json:"message"`
		Coordinator       CoordinatorAccount `json:"coordinator"`
		GeneratedPassword string             `json:"generated_password"`
	}
}

// HandleCreateCoordinator creates a coordinator account with a generated
// password, which is only returned here. The roll number is stored as the
// account's student id.
func (h *AuthHandler) HandleCreateCoordinator(ctx context.Context, input *CreateCoordinatorInput) (*CreateCoordinatorOutput, error) {
	admin, err := h.Authorize(ctx, input.AuthInput, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(input.Body); err != nil {
		return nil, apperr.ErrInvalidInput.WithMessage("%v", err)
	}
	email := strings.ToLower(strings.TrimSpace(input.Body.Email))
	rollNo := strings.TrimSpace(input.Body.RollNo)

	password := coordinatorPasswordPrefix + rand.Text()[:10]
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := models.User{
		Name:         strings.TrimSpace(input.Body.Name),
		Email:        email,
		PasswordHash: string(hash),
		Mobile:       input.Body.Mobile,
		College:      input.Body.College,
		Role:         models.RoleCoordinator,
		StudentID:    &rollNo,
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrEmailTaken
		}
		if err := tx.Model(&models.User{}).Where("student_id = ?", rollNo).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrRollNoTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}
	h.log.Info("coordinator created", zap.Uint("user_id", user.ID), zap.Uint("admin_id", admin.ID))

	out := &CreateCoordinatorOutput{}
	out.Body.Message = "Coordinator created successfully"
	out.Body.Coordinator = CoordinatorAccount{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Mobile:  user.Mobile,
		College: user.College,
		RollNo:  rollNo,
	}
	out.Body.GeneratedPassword = password
	return out, nil
}

type ListUsersInput struct {
	AuthInput
	Role    string `query:"role" enum:"student,coordinator,admin" doc:"Only users with this role"`
	College string `query:"college" doc:"Case-insensitive college substring"`
}

type ListUsersOutput struct {
	Body []models.User
}

// HandleListUsers lists accounts newest first, so admins can look up
// coordinator ids for event assignment.
func (h *AuthHandler) HandleListUsers(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
	if _, err := h.Authorize(ctx, input.AuthInput, models.RoleAdmin); err != nil {
		return nil, err
	}
	q := h.db.WithContext(ctx).Model(&models.User{})
	if input.Role != "" {
		q = q.Where("role = ?", input.Role)
	}
	if college := strings.ToLower(strings.TrimSpace(input.College)); college != "" {
		q = q.Where(`lower(college) LIKE ? ESCAPE '\'`, "%"+escapeLike(college)+"%")
	}
	users := []models.User{}
	if err := q.Order("created_at DESC, id DESC").Find(&users).Error; err != nil {
		return nil, apperr.Internal(err)
	}
	return &ListUsersOutput{Body: users}, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
