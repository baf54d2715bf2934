package services

import (
	"fmt"

	"problem-map/auth"
	"problem-map/errors"
	"problem-map/infrastructure/storage"
)

type AuthService struct {
	userRepository storage.IUserRepository
	issuer         *auth.TokenIssuer
}

func NewAuthService(repo storage.IUserRepository, issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{userRepository: repo, issuer: issuer}
}

func (s *AuthService) Register(email, password string) (auth.Session, error) {
	// 1. Validate business rules (email format, password complexity)
	// before any expensive cryptographic operation.
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		if errors.Is(err, errors.ErrInvalidPassword) {
			return auth.Session{}, err
		}
		return auth.Session{}, fmt.Errorf("%w: %w", errors.ErrInvalidPassword, err)
	}

	// 2. Hash the password using Argon2id, the repository never sees it in clear
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return auth.Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user, ErrUserAlreadyExists if the email is taken
	userID, err := s.userRepository.CreateUser(email, hashedPassword, []string{auth.RoleUser})
	if err != nil {
		return auth.Session{}, err
	}

	return s.openSession(userID, []string{auth.RoleUser})
}

func (s *AuthService) Login(email, password string) (auth.Session, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration
		return auth.Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return auth.Session{}, errors.ErrInvalidCredentials
	}

	return s.openSession(user.ID, user.Roles)
}

func (s *AuthService) openSession(userID string, roles []string) (auth.Session, error) {
	token, err := s.issuer.GenerateToken(userID, roles)
	if err != nil {
		return auth.Session{}, err
	}
	return auth.Session{UserID: userID, Token: token}, nil
}
