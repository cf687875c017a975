package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	applog "mensago/internal/log"
	"mensago/models"
)

const (
	sessionAuthenticatedKey = "auth:authenticated"
	sessionUserIDKey        = "auth:user:id"
	sessionUserEmailKey     = "auth:user:email"
	sessionUserNameKey      = "auth:user:name"
)

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
)

// Configure installs the shared dependencies used by the HTTP handlers.
func Configure(sm *scs.SessionManager, db *gorm.DB) {
	sessionManager = sm
	database = db
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        uint   `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
}

// readCredentials accepts either a JSON body or a classic form post.
func readCredentials(r *http.Request) (credentialsRequest, error) {
	var payload credentialsRequest
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return payload, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return payload, err
		}
		payload.Name = r.PostFormValue("name")
		payload.Email = r.PostFormValue("email")
		payload.Password = r.PostFormValue("password")
	}
	payload.Name = strings.TrimSpace(payload.Name)
	payload.Email = strings.TrimSpace(payload.Email)
	return payload, nil
}

// Login processes sign-in submissions.
func Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if sessionManager == nil || database == nil {
		applog.Debug(r.Context(), "authentication dependencies unavailable", "hasSession", sessionManager != nil, "hasDatabase", database != nil)
		writeJSONError(w, http.StatusServiceUnavailable, "authentication not available")
		return
	}

	payload, err := readCredentials(r)
	if err != nil {
		applog.Debug(r.Context(), "failed to parse login submission", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, ok := authenticate(r, payload.Email, payload.Password)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	applog.Debug(r.Context(), "authentication succeeded", "email", strings.ToLower(payload.Email))
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		UserID:        user.ID,
		Email:         user.Email,
		Name:          user.Name,
	})
}

// Signup processes new registrations and signs the user in on success.
func Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if sessionManager == nil || database == nil {
		applog.Debug(r.Context(), "registration dependencies unavailable", "hasSession", sessionManager != nil, "hasDatabase", database != nil)
		writeJSONError(w, http.StatusServiceUnavailable, "registration not available")
		return
	}

	payload, err := readCredentials(r)
	if err != nil {
		applog.Debug(r.Context(), "failed to parse signup submission", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if payload.Email == "" || !strings.Contains(payload.Email, "@") {
		writeJSONError(w, http.StatusBadRequest, "a valid email address is required")
		return
	}
	if len(payload.Password) < 8 {
		writeJSONError(w, http.StatusBadRequest, "password must be at least 8 characters long")
		return
	}

	if _, err := findUserByEmail(r, payload.Email); err == nil {
		applog.Debug(r.Context(), "signup attempted with existing email", "email", strings.ToLower(payload.Email))
		writeJSONError(w, http.StatusConflict, "an account with that email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		applog.Error(r.Context(), "failed to check existing user", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create account")
		return
	}

	user, err := createUser(r, payload.Email, payload.Name, payload.Password)
	if err != nil {
		applog.Error(r.Context(), "failed to create user", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create account")
		return
	}

	if err := establishSession(r, user); err != nil {
		applog.Error(r.Context(), "failed to establish session after signup", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "account created but sign-in failed")
		return
	}

	applog.Debug(r.Context(), "signup completed", "userID", user.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{
		Authenticated: true,
		UserID:        user.ID,
		Email:         user.Email,
		Name:          user.Name,
	})
}

// Logout destroys the current session.
func Logout(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost:
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if sessionManager != nil {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to destroy session", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
}

func createUser(r *http.Request, email, name, password string) (*models.User, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        strings.ToLower(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hashed),
	}

	if err := database.WithContext(r.Context()).Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

func findUserByEmail(r *http.Request, email string) (*models.User, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	user := &models.User{}
	err := database.WithContext(r.Context()).Where("lower(email) = ?", strings.ToLower(email)).First(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

// authenticate verifies the provided credentials and populates the session
// if successful.
func authenticate(r *http.Request, email, password string) (*models.User, bool) {
	user, err := findUserByEmail(r, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Error(r.Context(), "failed to load user during login", "error", err)
		}
		return nil, false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, false
	}

	if err := establishSession(r, user); err != nil {
		applog.Error(r.Context(), "failed to establish session", "error", err)
		return nil, false
	}

	return user, true
}

func establishSession(r *http.Request, user *models.User) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionAuthenticatedKey, true)
	sessionManager.Put(r.Context(), sessionUserIDKey, int(user.ID))
	sessionManager.Put(r.Context(), sessionUserEmailKey, user.Email)
	sessionManager.Put(r.Context(), sessionUserNameKey, user.Name)
	return nil
}

// RequireAuthentication ensures the user has an active session before
// accessing the resource.
func RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActiveSession(r) {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActiveSession returns true when the current request has an authenticated session.
func ActiveSession(r *http.Request) bool {
	if sessionManager == nil {
		return false
	}
	return sessionManager.GetBool(r.Context(), sessionAuthenticatedKey) && sessionManager.GetInt(r.Context(), sessionUserIDKey) > 0
}

func currentUserID(r *http.Request) (uint, bool) {
	if sessionManager == nil {
		return 0, false
	}
	id := sessionManager.GetInt(r.Context(), sessionUserIDKey)
	if id <= 0 {
		return 0, false
	}
	return uint(id), true
}
