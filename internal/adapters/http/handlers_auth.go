package web

import (
	"log/slog"
	"net/http"

	"studentcenter/internal/adapters/http/middleware"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/profile"
)

func accountDeps() orchestrators.AccountDeps {
	return orchestrators.AccountDeps{Tree: stores.Tree, GenerateID: generateID, Now: timeNow}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=60"`
	Surname  string `json:"surname" validate:"required,max=60"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12"`
	Photo    string `json:"photo" validate:"max=2048"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=12"`
}

type meResponse struct {
	User       profile.User `json:"user"`
	IsOperator bool         `json:"isOperator"`
}

// startSession creates a session for u and sets the cookie.
func startSession(w http.ResponseWriter, u profile.User) bool {
	token, err := sessions.Create(u.ID, u.Email)
	if err != nil {
		internalError(w, err)
		return false
	}
	middleware.SetSessionCookie(w, token, cookieOptions())
	return true
}

// handleRegister creates an account and signs it in.
func handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := orchestrators.ExecuteRegister(r.Context(), orchestrators.RegisterInput{
		Name:     req.Name,
		Surname:  req.Surname,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Photo:    req.Photo,
	}, accountDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	if !startSession(w, u) {
		return
	}
	u.PasswordHash = ""
	writeJSON(w, http.StatusCreated, meResponse{User: u, IsOperator: appConfig.IsOperator(u.Email)})
}

// handleLogin checks credentials and sets the session cookie.
// Attempts are throttled per client IP.
func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !loginLimiter.Allow(middleware.ClientIP(r)) {
		slog.Warn("auth_event", "event", "login_throttled", "ip", middleware.ClientIP(r))
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many login attempts, try again later"})
		return
	}
	var req loginRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{Email: req.Email, Password: req.Password}, accountDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	if !startSession(w, u) {
		return
	}
	u.PasswordHash = ""
	writeJSON(w, http.StatusOK, meResponse{User: u, IsOperator: appConfig.IsOperator(u.Email)})
}

// handleLogout ends the current session.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if token := middleware.SessionToken(r); token != "" {
		sessions.Delete(token)
	}
	middleware.ClearSessionCookie(w, cookieOptions())
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the signed-in user.
func handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap, err := stores.Tree.Get(r.Context(), paths.User(currentUserID(r)))
	if err != nil {
		internalError(w, err)
		return
	}
	if !snap.Exists() {
		writeError(w, profile.ErrNotFound)
		return
	}
	var u profile.User
	if err := snap.Decode(&u); err != nil {
		internalError(w, err)
		return
	}
	u.ID = currentUserID(r)
	u.PasswordHash = ""
	writeJSON(w, http.StatusOK, meResponse{User: u, IsOperator: appConfig.IsOperator(u.Email)})
}

// handleChangePassword sets a new password and signs out every other session of the user.
func handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req changePasswordRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, err)
		return
	}
	uid := currentUserID(r)
	err := orchestrators.ExecuteChangePassword(r.Context(), orchestrators.ChangePasswordInput{
		UserID:          uid,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}, accountDeps())
	if err != nil {
		writeError(w, err)
		return
	}
	if n := sessions.DeleteUser(uid, middleware.SessionToken(r)); n > 0 {
		slog.Info("auth_event", "event", "sessions_revoked", "user_id", uid, "count", n)
	}
	w.WriteHeader(http.StatusNoContent)
}
