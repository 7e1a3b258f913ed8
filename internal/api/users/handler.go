package users

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/good-yellow-bee/followwatch/internal/api/auth"
	"github.com/good-yellow-bee/followwatch/internal/api/middleware"
	"github.com/good-yellow-bee/followwatch/internal/api/response"
	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/internal/models"
	"github.com/good-yellow-bee/followwatch/internal/storage"
)

// Handler handles account endpoints.
type Handler struct {
	users storage.UserRepository
}

// NewHandler creates a new users handler.
func NewHandler(users storage.UserRepository) *Handler {
	return &Handler{users: users}
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	TelegramChatID string `json:"telegram_chat_id"`
}

// UpdateRequest is the body of PUT /users/me. Omitted fields are unchanged.
type UpdateRequest struct {
	TelegramChatID *string `json:"telegram_chat_id"`
	Password       *string `json:"password"`
}

// NewAccount validates the credentials and builds a user ready to be stored.
func NewAccount(username, password, chatID string) (*models.User, error) {
	username = strings.TrimSpace(username)
	chatID = strings.TrimSpace(chatID)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := ValidateTelegramChatID(chatID); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.NewUser(username)
	user.ID = uuid.New().String()
	user.PasswordHash = hash
	user.TelegramChatID = chatID
	return user, nil
}

// Register creates an account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if apiErr := response.Decode(w, r, &req); apiErr != nil {
		response.JSONError(w, apiErr)
		return
	}

	user, err := NewAccount(req.Username, req.Password, req.TelegramChatID)
	if err != nil {
		if isValidation(err) {
			response.JSONError(w, response.NewValidationError(err.Error()))
			return
		}
		response.Fail(r.Context(), w, err, "register user")
		return
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		response.Fail(r.Context(), w, err, "register user")
		return
	}

	logger.InfoCtx(r.Context(), "user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	response.Created(w, user)
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.current(w, r)
	if !ok {
		return
	}
	response.OK(w, user)
}

// UpdateMe changes the authenticated user's chat id or password.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if apiErr := response.Decode(w, r, &req); apiErr != nil {
		response.JSONError(w, apiErr)
		return
	}

	user, ok := h.current(w, r)
	if !ok {
		return
	}

	if req.TelegramChatID != nil {
		chatID := strings.TrimSpace(*req.TelegramChatID)
		if err := ValidateTelegramChatID(chatID); err != nil {
			response.JSONError(w, response.NewValidationError(err.Error()))
			return
		}
		user.TelegramChatID = chatID
	}
	if req.Password != nil {
		if err := auth.ValidatePassword(*req.Password); err != nil {
			response.JSONError(w, response.NewValidationError(err.Error()))
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			response.Fail(r.Context(), w, err, "update user")
			return
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now().UTC()

	if err := h.users.Update(r.Context(), user); err != nil {
		response.Fail(r.Context(), w, err, "update user")
		return
	}
	response.OK(w, user)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := h.users.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		response.Fail(r.Context(), w, err, "load user")
		return nil, false
	}
	if user == nil {
		response.JSONError(w, response.NewNotFound("user not found"))
		return nil, false
	}
	return user, true
}

func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || auth.IsPasswordValidationError(err)
}
