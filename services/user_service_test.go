package services

import (
	"testing"
	"time"

	"problem-map/auth"
	"problem-map/errors"
	"problem-map/infrastructure/storage"
	"problem-map/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestUserService_List(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewUserService(discard, mockRepo)
	created := time.Now().UTC()

	mockRepo.EXPECT().ListUsers().Return([]storage.User{
		{ID: "u-1", Email: "adam@example.com", PasswordHash: "secret-hash", Roles: []string{auth.RoleAdmin}, CreatedAt: created},
	}, nil)

	accounts, err := svc.List()

	// Then the accounts carry no credentials
	req.NoError(err)
	req.Equal([]auth.Account{{ID: "u-1", Email: "adam@example.com", Roles: []string{auth.RoleAdmin}, CreatedAt: created}}, accounts)
}

func TestUserService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewUserService(discard, mockRepo)

	t.Run("creates the account with the requested role", func(t *testing.T) {
		req := require.New(t)
		request := auth.CreateUserRequest{Email: "ed@city.io", Password: "Str0ngPassword!", Role: auth.RoleEditor}
		mockRepo.EXPECT().CreateUser("ed@city.io", gomock.Not(request.Password), []string{auth.RoleEditor}).Return("u-2", nil)
		mockRepo.EXPECT().GetUserByEmail("ed@city.io").Return(storage.User{ID: "u-2", Email: "ed@city.io", Roles: []string{auth.RoleEditor}}, nil)

		account, err := svc.Create(request)

		req.NoError(err)
		req.Equal("u-2", account.ID)
		req.Equal([]string{auth.RoleEditor}, account.Roles)
	})

	t.Run("rejects an unknown role before touching the repository", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Create(auth.CreateUserRequest{Email: "ed@city.io", Password: "Str0ngPassword!", Role: "mayor"})

		req.ErrorIs(err, errors.ErrValidation)
	})

	t.Run("reports a taken email", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().CreateUser("taken@city.io", gomock.Any(), gomock.Any()).Return("", errors.ErrUserAlreadyExists)

		_, err := svc.Create(auth.CreateUserRequest{Email: "taken@city.io", Password: "Str0ngPassword!", Role: auth.RoleUser})

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestUserService_EnsureAdmin(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	svc := NewUserService(discard, mockRepo)

	t.Run("existing account is left alone", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().GetUserByEmail("root@city.io").Return(storage.User{ID: "u-0"}, nil)
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		req.NoError(svc.EnsureAdmin("root@city.io", "Str0ngPassword!"))
	})

	t.Run("missing account is created as admin", func(t *testing.T) {
		req := require.New(t)
		gomock.InOrder(
			mockRepo.EXPECT().GetUserByEmail("root@city.io").Return(storage.User{}, errors.ErrNotFound),
			mockRepo.EXPECT().CreateUser("root@city.io", gomock.Any(), []string{auth.RoleUser, auth.RoleAdmin}).Return("u-0", nil),
			mockRepo.EXPECT().GetUserByEmail("root@city.io").Return(storage.User{ID: "u-0"}, nil),
		)

		req.NoError(svc.EnsureAdmin("root@city.io", "Str0ngPassword!"))
	})
}
