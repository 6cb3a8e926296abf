package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akolanti/docchat/internal/adapter"
	"github.com/akolanti/docchat/internal/api"
	"github.com/akolanti/docchat/internal/config"
)

// Chat godoc
// @Summary      Send a chat message
// @Description  Stores the message, answers it from the indexed documents and returns the assistant message with its sources. Omit conversationId to start a conversation.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.ChatRequest    true  "Message and optional conversation id"
// @Success      200      {object}  api.ChatResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      401      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse  "Conversation not found"
// @Router       /chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, _ := config.UserID(r.Context())

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRH().WithTrace(r.Context()).Warn("Bad chat request", "error", err)
		writeBadRequest(w, r, "Bad Request")
		return
	}

	msg, sources, err := h.chat.Send(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(msg, sources))
}

// ListConversations godoc
// @Summary      List conversations
// @Description  Most recently updated first.
// @Tags         Chat
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  api.ConversationList
// @Failure      401  {object}  api.ErrorResponse
// @Router       /conversations [get]
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := config.UserID(r.Context())
	writeJsonResponse(w, http.StatusOK, adapter.ToConversationList(h.chat.List(r.Context(), userID)))
}

// ConversationMessages godoc
// @Summary      Conversation history
// @Tags         Chat
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Conversation ID"
// @Success      200  {object}  api.MessageList
// @Failure      401  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /conversations/{id}/messages [get]
func (h *Handler) ConversationMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, r, "invalid conversation id")
		return
	}
	userID, _ := config.UserID(r.Context())
	msgs, err := h.chat.History(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToMessageList(msgs))
}

// DeleteConversation godoc
// @Summary      Delete a conversation and its messages
// @Tags         Chat
// @Security     BearerAuth
// @Param        id   path      int  true  "Conversation ID"
// @Success      204
// @Failure      401  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /conversations/{id} [delete]
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, r, "invalid conversation id")
		return
	}
	userID, _ := config.UserID(r.Context())
	if err := h.chat.Delete(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
