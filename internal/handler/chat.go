package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saadkhi/Side/internal/httputil"
	"github.com/saadkhi/Side/internal/middleware"
	"github.com/saadkhi/Side/internal/model"
	"github.com/saadkhi/Side/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Routes expects the auth middleware to run before it.
func (h *ChatHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Send)
	return r
}

// ConversationRoutes expects the auth middleware to run before it.
func (h *ChatHandler) ConversationRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListConversations)
	r.Get("/{id}/", h.GetConversation)
	r.Delete("/{id}/", h.DeleteConversation)

	return r
}

// POST /api/chat/
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req model.ChatRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.chat.Send(r.Context(), user.ID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/conversations/
func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	convs, err := h.chat.Conversations(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, convs)
}

// GET /api/conversations/{id}/
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.chat.Conversation(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// DELETE /api/conversations/{id}/
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.chat.DeleteConversation(r.Context(), user.ID, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
