package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/presina-online/presina-server/internal/auth"
	"github.com/presina-online/presina-server/internal/database"
)

// UserHandler serves account registration and login. Both endpoints are only
// mounted when a database is connected; without one the server is guest-only.
type UserHandler struct {
	Log *logrus.Logger
}

func NewUserHandler(log *logrus.Logger) *UserHandler {
	return &UserHandler{Log: log}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

func setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" || req.Username == "" {
		writeError(w, http.StatusBadRequest, "email, password and username are required")
		return
	}

	u := &database.User{Email: req.Email, Password: req.Password, Username: req.Username}
	if err := database.CreateUser(r.Context(), u); err != nil {
		h.Log.WithFields(logrus.Fields{"email": req.Email, "error": err}).Warn("user registration failed")
		writeError(w, http.StatusConflict, "could not create account")
		return
	}

	token, err := auth.CreateJWT(u.ID.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session token")
		return
	}
	setAuthCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       u.ID,
		"username": u.Username,
		"token":    token,
	})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	token, err := database.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	setAuthCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
