package server

import (
	"fmt"
	"net/http"
	"strconv"

	"problem-map/auth"
	"problem-map/domain/event"
	"problem-map/errors"

	"github.com/gorilla/mux"
)

const defaultSearchLimit = 20

type acceptedResponse struct {
	EventID string `json:"event_id"`
}

func (s *Server) listProblems(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, event.ToProblemViews(s.problemService.List()))
}

func (s *Server) getProblem(w http.ResponseWriter, r *http.Request) {
	p, err := s.problemService.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event.ToProblemView(p))
}

func (s *Server) searchProblems(w http.ResponseWriter, r *http.Request) {
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, fmt.Errorf("%w: limit must be a positive integer", errors.ErrValidation))
			return
		}
		limit = parsed
	}
	found, err := s.problemService.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, event.ToProblemViews(found))
}

// createProblem answers 202: the problem shows up once the applier consumed it.
func (s *Server) createProblem(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req auth.CreateProblemRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.problemService.Create(r.Context(), userID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, event.ToProblemView(p))
}

func (s *Server) updateProblem(w http.ResponseWriter, r *http.Request) {
	var req auth.UpdateProblemRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	eventID, err := s.problemService.Update(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, acceptedResponse{EventID: eventID})
}
