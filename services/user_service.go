package services

import (
	"fmt"
	"log/slog"

	"problem-map/auth"
	"problem-map/errors"
	"problem-map/infrastructure/storage"

	"github.com/samber/lo"
)

// UserService manages accounts on behalf of administrators.
type UserService struct {
	log            *slog.Logger
	userRepository storage.IUserRepository
}

func NewUserService(log *slog.Logger, repo storage.IUserRepository) *UserService {
	return &UserService{log: log, userRepository: repo}
}

func (s *UserService) List() ([]auth.Account, error) {
	users, err := s.userRepository.ListUsers()
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u storage.User, _ int) auth.Account { return toAccount(u) }), nil
}

// Create registers an account with the requested role. The caller is expected to be an admin.
func (s *UserService) Create(req auth.CreateUserRequest) (auth.Account, error) {
	if err := auth.ValidateCreateUser(req); err != nil {
		return auth.Account{}, err
	}
	return s.create(req.Email, req.Password, []string{req.Role})
}

// EnsureAdmin creates the bootstrap administrator unless the email is already taken.
func (s *UserService) EnsureAdmin(email, password string) error {
	_, err := s.userRepository.GetUserByEmail(email)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, errors.ErrNotFound):
		return err
	}
	if err := auth.ValidateCreateUser(auth.CreateUserRequest{Email: email, Password: password, Role: auth.RoleAdmin}); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	account, err := s.create(email, password, []string{auth.RoleUser, auth.RoleAdmin})
	if err != nil {
		return err
	}
	s.log.Info("Bootstrap admin created", "user_id", account.ID)
	return nil
}

func (s *UserService) create(email, password string, roles []string) (auth.Account, error) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return auth.Account{}, fmt.Errorf("hashing failed: %w", err)
	}
	if _, err := s.userRepository.CreateUser(email, hashedPassword, roles); err != nil {
		return auth.Account{}, err
	}
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		return auth.Account{}, err
	}
	return toAccount(user), nil
}

func toAccount(u storage.User) auth.Account {
	return auth.Account{ID: u.ID, Email: u.Email, Roles: u.Roles, CreatedAt: u.CreatedAt}
}
