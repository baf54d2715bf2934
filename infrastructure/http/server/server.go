package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"problem-map/auth"
	"problem-map/errors"
	"problem-map/services"

	"github.com/gorilla/mux"
)

type Server struct {
	log                  *slog.Logger
	router               *mux.Router
	authService          services.IAuthService
	userService          services.IUserService
	problemService       services.IProblemService
	chatService          services.IChatService
	issuer               *auth.TokenIssuer
	connectionBufferSize int
	pingPeriod           time.Duration
}

func NewServer(
	log *slog.Logger,
	authService services.IAuthService,
	userService services.IUserService,
	problemService services.IProblemService,
	chatService services.IChatService,
	issuer *auth.TokenIssuer,
	connectionBufferSize int,
) *Server {
	s := &Server{
		log:                  log,
		router:               mux.NewRouter(),
		authService:          authService,
		userService:          userService,
		problemService:       problemService,
		chatService:          chatService,
		issuer:               issuer,
		connectionBufferSize: connectionBufferSize,
		pingPeriod:           pingPeriod,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	routeDefinitions := []struct {
		path         string
		method       string
		handler      http.HandlerFunc
		requiresAuth bool
		role         string
	}{
		{"/api/auth/register", http.MethodPost, s.register, false, ""},
		{"/api/auth/login", http.MethodPost, s.login, false, ""},

		{"/api/users", http.MethodGet, s.listUsers, true, ""},
		{"/api/users", http.MethodPost, s.createUser, true, auth.RoleAdmin},

		// search is declared before {id} so it is not taken for an id
		{"/api/problems/search", http.MethodGet, s.searchProblems, true, ""},
		{"/api/problems/{id}", http.MethodGet, s.getProblem, true, ""},
		{"/api/problems", http.MethodGet, s.listProblems, true, ""},
		{"/api/problems", http.MethodPost, s.createProblem, true, ""},
		{"/api/problems", http.MethodPatch, s.updateProblem, true, ""},

		{"/api/chats", http.MethodGet, s.getMessages, true, ""},
		{"/api/chats", http.MethodPost, s.postMessage, true, ""},
		{"/api/chats", http.MethodPatch, s.updateMessage, true, ""},

		{"/ws", http.MethodGet, s.serveWebsocket, true, ""},
	}

	authenticate := auth.Middleware(s.issuer, s.writeError)
	for _, route := range routeDefinitions {
		var handler http.Handler = route.handler
		if route.role != "" {
			handler = auth.RequireRole(route.role, s.writeError)(handler)
		}
		if route.requiresAuth {
			handler = authenticate(handler)
		}
		s.router.Handle(route.path, handler).Methods(route.method)
	}
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("Shutting down HTTP server")
	return httpServer.Shutdown(shutdownCtx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.MapToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
		message = http.StatusText(status)
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

func decodeBody(r *http.Request, request any) error {
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		return fmt.Errorf("%w: malformed body: %v", errors.ErrValidation, err)
	}
	return nil
}
