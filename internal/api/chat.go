package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/brioai/brio/internal/chat"
	"github.com/brioai/brio/internal/web/sse"
)

type chatStreamRequest struct {
	ChatID      string            `json:"chatId"`
	MessageID   string            `json:"messageId"`
	Message     string            `json:"message"`
	ModelID     string            `json:"modelId"`
	Attachments []chat.Attachment `json:"attachments"`
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var body chatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := chat.TurnRequest{
		UserID:      UserID(r.Context()),
		Text:        body.Message,
		Model:       body.ModelID,
		Attachments: body.Attachments,
	}
	if body.ChatID != "" {
		id, err := uuid.Parse(body.ChatID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chat ID")
			return
		}
		req.ChatID = id
	}
	if body.MessageID != "" {
		id, err := uuid.Parse(body.MessageID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid message ID")
			return
		}
		req.MessageID = id
	}

	events, err := s.turns.Stream(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrUnknownModel):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, chat.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, chat.ErrChatNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			s.logger.Error("starting turn failed", "error", err)
			writeError(w, http.StatusInternalServerError, "starting turn failed")
		}
		return
	}

	stream, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for ev := range events {
		if err := stream.Event(string(ev.Type), ev); err != nil {
			// Client went away; the orchestrator stops via request context.
			s.logger.Debug("event stream write failed", "error", err)
			return
		}
	}
}

func (s *Server) handleChatDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chat ID")
		return
	}
	err = s.chats.DeleteChat(r.Context(), id, UserID(r.Context()))
	if errors.Is(err, chat.ErrChatNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting chat failed", "chat", id, "error", err)
		writeError(w, http.StatusInternalServerError, "deleting chat failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
