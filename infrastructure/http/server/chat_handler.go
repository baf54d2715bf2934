package server

import (
	"fmt"
	"net/http"

	"problem-map/auth"
	"problem-map/domain/event"
	"problem-map/errors"
)

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		s.writeError(w, fmt.Errorf("%w: chat_id is required", errors.ErrValidation))
		return
	}
	s.writeJSON(w, http.StatusOK, event.ToMessageViews(s.chatService.GetMessages(chatID)))
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req auth.PostMessageRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.chatService.PostMessage(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, event.ToMessageView(m))
}

func (s *Server) updateMessage(w http.ResponseWriter, r *http.Request) {
	var req auth.UpdateMessageRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	eventID, err := s.chatService.UpdateMessage(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, acceptedResponse{EventID: eventID})
}
