package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/bookshelf/backend/internal/common"
	"github.com/bookshelf/backend/internal/models"
)

// Limits follow the users table columns; bcrypt ignores input past 72 bytes
// and refuses to hash it.
const (
	maxUsernameLen   = 50
	maxEmailLen      = 255
	maxPasswordBytes = 72
)

// dummyPasswordSource is hashed once and compared against on unknown emails.
const dummyPasswordSource = "bookshelf-dummy-password"

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, hashedPw string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	tokens   *TokenService
	log      *slog.Logger
	hashCost int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewHandler(users UserStore, tokens *TokenService, log *slog.Logger) *Handler {
	return &Handler{users: users, tokens: tokens, log: log, hashCost: bcrypt.DefaultCost}
}

// Register creates a new user and returns a token for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if verr := validateRegisterRequest(req); verr != nil {
		writeJSON(w, http.StatusBadRequest, verr)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.hashCost)
	if err != nil {
		h.log.ErrorContext(r.Context(), "hash password", "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Email, string(hashed))
	if errors.Is(err, common.ErrAlreadyExists) {
		writeMessage(w, http.StatusConflict, "user already exists")
		return
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "create user", "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user.ID)
}

// Login checks credentials and returns a fresh token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, common.ErrNotFound) {
		// burn a comparison so unknown emails take as long as known ones
		bcrypt.CompareHashAndPassword(h.dummyPasswordHash(), []byte(req.Password))
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "lookup user", "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user.ID)
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if errors.Is(err, common.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "get user", "err", err, "user_id", userID)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) dummyPasswordHash() []byte {
	h.dummyOnce.Do(func() {
		h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(dummyPasswordSource), h.hashCost)
	})
	return h.dummyHash
}

// validateRegisterRequest expects username and email already trimmed.
func validateRegisterRequest(req models.RegisterRequest) *models.MessageResponse {
	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		return &models.MessageResponse{Message: "username, email, and password are required"}
	case utf8.RuneCountInString(req.Username) > maxUsernameLen:
		return &models.MessageResponse{Message: "username is too long", Field: "username"}
	case utf8.RuneCountInString(req.Email) > maxEmailLen:
		return &models.MessageResponse{Message: "email is too long", Field: "email"}
	case !emailRegex.MatchString(req.Email):
		return &models.MessageResponse{Message: "invalid email address", Field: "email"}
	case len(req.Password) > maxPasswordBytes:
		return &models.MessageResponse{Message: "password is too long", Field: "password"}
	}
	return nil
}

func (h *Handler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, userID string) {
	token, err := h.tokens.Issue(userID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "issue token", "err", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, status, models.AuthResponse{Token: token, UserID: userID})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.MessageResponse{Message: msg})
}
