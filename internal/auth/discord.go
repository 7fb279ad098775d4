package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gdg-garage/eventra-api/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const stateCookieName = "oauth_state"

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Verified bool   `json:"verified"`
}

func (h *AuthHandler) HandleDiscordLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		MaxAge:   600,
		HttpOnly: true,
		Path:     "/auth/discord",
		SameSite: http.SameSiteLaxMode,
	})
	url := h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) HandleDiscordCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	token, err := h.oauthConfig.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("discord token exchange failed", zap.Error(err))
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}
	client := h.oauthConfig.Client(ctx, token)

	if h.cfg.DiscordGuildID != "" {
		isMember, err := guildMember(client, h.cfg.DiscordGuildID)
		if err != nil {
			h.log.Warn("discord guild lookup failed", zap.Error(err))
			http.Error(w, "Failed to get user guilds", http.StatusInternalServerError)
			return
		}
		if !isMember {
			http.Error(w, "Access denied: You are not a member of the required guild.", http.StatusForbidden)
			return
		}
	}

	resp, err := client.Get(DiscordUserAPI)
	if err != nil {
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	var du discordUser
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		http.Error(w, "Failed to decode user info", http.StatusInternalServerError)
		return
	}

	user, created, err := h.linkDiscordUser(ctx, du)
	if err != nil {
		h.log.Error("failed to save discord user", zap.String("discord_id", du.ID), zap.Error(err))
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}
	if created {
		h.welcome(*user)
	}

	jwtToken, err := h.GenerateToken(user.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, h.sessionCookie(jwtToken))

	if h.cfg.FrontendURL != "" {
		http.Redirect(w, r, h.cfg.FrontendURL, http.StatusTemporaryRedirect)
		return
	}
	fmt.Fprintf(w, "Welcome %s! You are logged in.", user.Name)
}

// linkDiscordUser finds the account by Discord id and creates a student
// account when there is none. An existing student account is linked by email
// only when Discord has verified that email and the account has no Discord id
// yet; any other email clash gets the placeholder address instead.
func (h *AuthHandler) linkDiscordUser(ctx context.Context, du discordUser) (*models.User, bool, error) {
	placeholder := du.ID + "@users.discord.invalid"
	email := strings.ToLower(strings.TrimSpace(du.Email))
	if email == "" {
		// users.email is unique, so accounts without one get a placeholder
		email = placeholder
	}
	var (
		user    models.User
		created bool
	)
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("discord_id = ?", du.ID).First(&user).Error
		if err == nil {
			user.Avatar = du.Avatar
			if user.Name == "" {
				user.Name = du.Username
			}
			return tx.Save(&user).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var owner models.User
		err = tx.Where("email = ?", email).First(&owner).Error
		switch {
		case err == nil && linkableByEmail(owner, du):
			discordID := du.ID
			owner.DiscordID = &discordID
			owner.Avatar = du.Avatar
			if owner.Name == "" {
				owner.Name = du.Username
			}
			user = owner
			return tx.Save(&user).Error
		case err == nil:
			h.log.Warn("discord email belongs to another account",
				zap.String("discord_id", du.ID), zap.Uint("user_id", owner.ID), zap.Bool("verified", du.Verified))
			email = placeholder
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		discordID := du.ID
		user = models.User{
			Name:      du.Username,
			Email:     email,
			Role:      models.RoleStudent,
			DiscordID: &discordID,
			Avatar:    du.Avatar,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		created = true
		return h.issueIDs(ctx, tx, &user)
	})
	if err != nil {
		return nil, false, err
	}
	return &user, created, nil
}

func linkableByEmail(owner models.User, du discordUser) bool {
	return du.Verified && owner.DiscordID == nil && owner.Role == models.RoleStudent
}

func guildMember(client *http.Client, guildID string) (bool, error) {
	resp, err := client.Get(DiscordUserGuildsAPI)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var guilds []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&guilds); err != nil {
		return false, err
	}
	for _, g := range guilds {
		if g.ID == guildID {
			return true, nil
		}
	}
	return false, nil
}
