package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesOnCode(t *testing.T) {
	err := ErrTeamFull.WithMessage("Team is full (maximum %d members)", 4)
	wrapped := fmt.Errorf("join: %w", err)

	assert.ErrorIs(t, wrapped, ErrTeamFull)
	assert.NotErrorIs(t, wrapped, ErrAlreadyInTeam)
	assert.Equal(t, "Team is full (maximum 4 members)", err.Message)
	assert.Equal(t, "Team is full", ErrTeamFull.Message, "sentinel must not be mutated")
}

func TestStatusByKind(t *testing.T) {
	cases := map[*Error]int{
		ErrEventNotFound:           http.StatusNotFound,
		ErrAlreadyRegistered:       http.StatusBadRequest,
		ErrTeamsNotSupported:       http.StatusBadRequest,
		ErrAccessDenied:            http.StatusForbidden,
		ErrUnauthenticated:         http.StatusUnauthorized,
		ErrIDSpaceExhausted:        http.StatusInternalServerError,
		Internal(errors.New("db")): http.StatusInternalServerError,
	}
	for e, want := range cases {
		assert.Equal(t, want, e.GetStatus(), e.Code)
	}
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	plain := errors.New("disk on fire")
	got := From(plain)
	assert.Equal(t, KindInternal, got.Kind)
	assert.ErrorIs(t, got, plain)

	assert.Same(t, ErrTeamFull, From(fmt.Errorf("x: %w", ErrTeamFull)))
	assert.Equal(t, KindConflict, KindOf(ErrTeamFull))
}

func TestTeamRequiredDetails(t *testing.T) {
	err := TeamRequired(2, 4)
	assert.True(t, err.RequiresTeam)
	assert.Equal(t, 2, err.MinTeamSize)
	assert.Equal(t, 4, err.MaxTeamSize)
	assert.False(t, ErrTeamRequired.RequiresTeam)

	status := TeamNotRegistered("forming")
	assert.Equal(t, "forming", status.TeamStatus)
	assert.ErrorIs(t, status, ErrTeamNotRegistered)
}
