/*
Package handler provides the HTTP handlers and routing setup for the chat
server.
*/
package handler

import (
	"errors"
	"net/http"
	"regexp"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/db"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/app/user"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/auth/jwt"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/errs"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/logx"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/randx"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/req"
	"github.com/Scorpio-Wzt/chatserver-sub000/internal/pkg/resp"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{4,20}$`)

// validPasswordLength checks the rune count bounds shared by register and
// change-password.
func validPasswordLength(password string) bool {
	n := utf8.RuneCountInString(password)
	return n >= 6 && n <= 50
}

// userView shapes an account for API responses.
func userView(u user.User) map[string]any {
	var lastLogin any
	if u.LastLoginAt != nil {
		lastLogin = u.LastLoginAt.Format(time.RFC3339)
	}

	return map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"nickname":    u.Nickname,
		"avatar":      u.Avatar,
		"role":        u.Role,
		"lastLoginAt": lastLogin,
	}
}

type RegisterInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleRegister creates a new customer account and issues a token.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !usernameRegex.MatchString(input.Username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}
		if !validPasswordLength(input.Password) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		nickname, err := randx.UserNickname()
		if err != nil {
			nickname = "User_X"
		}

		created, err := deps.Users.Create(r.Context(), input.Username, string(hashedPassword), nickname)
		if err != nil {
			if db.IsUniqueViolation(err) {
				logx.Warn("registration conflict: username already exists", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrUserAlreadyExists))
				return
			}

			logx.Error(err, "failed to create user in database")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if err := deps.Users.UpdateLastLogin(r.Context(), created.ID); err != nil {
			logx.Error(err, "register: failed to update last_login_at", "user_id", created.ID)
		}

		token, err := jwt.GenerateToken(&jwt.Payload{
			ID:       created.ID,
			Username: created.Username,
			Role:     created.Role,
		}, deps.Config.JWTSecret, jwt.IdentityExpiration)
		if err != nil {
			logx.Error(err, "failed to generate token after registration")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  userView(created),
		})
	}
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates a user, drives the failed-login throttle, and
// issues a token.
//
// Order matters: the frozen check comes before the credential check so a
// frozen account is refused even with the right password, and an unknown
// username never feeds the throttle.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity := jwt.GetPayloadFromContext(r); identity != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, err := deps.Users.GetByUsername(r.Context(), input.Username)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
				return
			}
			logx.Error(err, "login: user fetch failed", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if account.IsFrozen() {
			resp.RespondError(w, r, errs.NewError(errs.ErrAccountFrozen))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			result, throttleErr := deps.Throttle.Fail(r.Context(), input.Username)
			if throttleErr != nil {
				logx.Error(throttleErr, "login: throttle update failed", "username", input.Username)
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
				return
			}

			if result.Locked {
				resp.RespondError(w, r, errs.NewError(errs.ErrAccountFrozen))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrCredentialsRemaining, result.Remaining))
			return
		}

		if err := deps.Throttle.Success(r.Context(), input.Username); err != nil {
			logx.Error(err, "login: throttle reset failed", "username", input.Username)
		}

		if err := deps.Users.UpdateLastLogin(r.Context(), account.ID); err != nil {
			logx.Error(err, "login: failed to update last_login_at", "user_id", account.ID)
		}

		token, err := jwt.GenerateToken(&jwt.Payload{
			ID:       account.ID,
			Username: account.Username,
			Role:     account.Role,
		}, deps.Config.JWTSecret, jwt.IdentityExpiration)
		if err != nil {
			logx.Error(err, "login: jwt generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": token,
			"user":  userView(account),
		})
	}
}

// HandleGetProfile returns the authenticated user's account.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		account, err := deps.Users.GetByID(r.Context(), identity.ID)
		if err != nil {
			logx.Warn("get_profile: user not found", "id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user": userView(account),
		})
	}
}

type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// HandleChangePassword verifies the current password and replaces it.
func HandleChangePassword(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input ChangePasswordInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !validPasswordLength(input.NewPassword) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		account, err := deps.Users.GetByID(r.Context(), identity.ID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.OldPassword)); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrOldPasswordInvalid))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if err := deps.Users.UpdatePassword(r.Context(), account.ID, string(hashedPassword)); err != nil {
			logx.Error(err, "failed to update user password in database", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		newToken, err := jwt.GenerateToken(&jwt.Payload{
			ID:       account.ID,
			Username: account.Username,
			Role:     account.Role,
		}, deps.Config.JWTSecret, jwt.IdentityExpiration)
		if err != nil {
			logx.Error(err, "failed to generate token after password change", "user_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"token": newToken,
		})
	}
}
