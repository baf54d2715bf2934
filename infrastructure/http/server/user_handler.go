package server

import (
	"net/http"

	"problem-map/auth"
)

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	accounts, err := s.userService.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

// createUser is only routed for admins.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req auth.CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	account, err := s.userService.Create(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, account)
}
