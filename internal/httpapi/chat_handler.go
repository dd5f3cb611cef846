package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"smartai_gateway/internal/gateway"
	"smartai_gateway/internal/models"
	"smartai_gateway/internal/utils"
)

// ChatService is implemented by gateway.Orchestrator.
type ChatService interface {
	Chat(ctx context.Context, req gateway.ChatRequest) *gateway.Result
	CreateSession(ctx context.Context, language, title, userRef string) (*models.ChatSession, error)
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ChatMessage, error)
	CloseSession(ctx context.Context, sessionID uuid.UUID) error
}

// ChatHandler serves the public chat and session endpoints
type ChatHandler struct {
	chat   ChatService
	logger *utils.Logger
}

func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{chat: chat, logger: utils.NewLogger("chat-api")}
}

// CreateSessionRequest is the optional body of POST /api/sessions
type CreateSessionRequest struct {
	Language string `json:"language"`
	Title    string `json:"title"`
	UserRef  string `json:"user_ref"`
}

type CreateSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// invalidInputResult shapes request decoding errors like any other chat failure
func invalidInputResult(err error) *gateway.Result {
	return &gateway.Result{
		Success:          false,
		Charts:           []gateway.Chart{},
		SuggestedActions: []gateway.Action{},
		Error:            err.Error(),
		ErrorCode:        gateway.CodeInvalidInput,
		FallbackMessage:  gateway.FallbackMessage,
	}
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req gateway.ChatRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithJSON(w, http.StatusBadRequest, invalidInputResult(err))
		return
	}

	res := h.chat.Chat(r.Context(), req)
	status := http.StatusOK
	if !res.Success {
		status = res.ErrorCode.HTTPStatus()
	}
	utils.RespondWithJSON(w, status, res)
}

// CreateSession handles POST /api/sessions. The body may be empty.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	// Chunked requests report ContentLength -1, so emptiness is only known after reading.
	if err := utils.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
		utils.RespondWithErrorCode(w, http.StatusBadRequest, string(gateway.CodeInvalidInput), err.Error())
		return
	}

	session, err := h.chat.CreateSession(r.Context(), req.Language, req.Title, req.UserRef)
	if err != nil {
		h.logger.Error("Failed to create session", "error", err)
		utils.RespondWithErrorCode(w, http.StatusInternalServerError, string(gateway.CodeInternal), "Failed to create session")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, CreateSessionResponse{
		Success:   true,
		SessionID: session.ID.String(),
		Message:   "Session created successfully",
	})
}

// History handles GET /api/sessions/{id}/messages?limit=N
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	msgs, err := h.chat.History(r.Context(), sessionID, limit)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"session_id": sessionID.String(),
		"messages":   msgs,
	})
}

// CloseSession handles POST /api/sessions/{id}/close
func (h *ChatHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDVar(w, r)
	if !ok {
		return
	}

	if err := h.chat.CloseSession(r.Context(), sessionID); err != nil {
		h.respondSessionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Session closed",
	})
}

func sessionIDVar(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		code := gateway.CodeSessionNotFound
		utils.RespondWithErrorCode(w, code.HTTPStatus(), string(code), gateway.ErrSessionNotFound.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (h *ChatHandler) respondSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, gateway.ErrSessionNotFound) {
		code := gateway.CodeSessionNotFound
		utils.RespondWithErrorCode(w, code.HTTPStatus(), string(code), err.Error())
		return
	}
	h.logger.Error("Session operation failed", "error", err)
	utils.RespondWithErrorCode(w, http.StatusInternalServerError, string(gateway.CodeInternal), "internal error")
}
