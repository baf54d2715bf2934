package auth

import (
	"fmt"
	"strings"
	"unicode"

	"problem-map/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin editor user"`
}

type CreateProblemRequest struct {
	Title       string   `json:"title" validate:"required,min=5,max=255"`
	Description string   `json:"description" validate:"required,min=20,max=500"`
	Longitude   *float64 `json:"long" validate:"required,gte=-180,lte=180"`
	Latitude    *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
}

type UpdateProblemRequest struct {
	ID          string   `json:"id" validate:"required,uuid"`
	Title       *string  `json:"title" validate:"omitempty,min=5,max=255"`
	Description *string  `json:"description" validate:"omitempty,min=20,max=500"`
	Longitude   *float64 `json:"long" validate:"omitempty,gte=-180,lte=180"`
	Latitude    *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Status      *string  `json:"status" validate:"omitempty,oneof=pending open closed rejected"`
}

type PostMessageRequest struct {
	ChatID  string `json:"chat_id" validate:"required,uuid"`
	Message string `json:"message" validate:"required,max=2000"`
}

type UpdateMessageRequest struct {
	ChatID    string  `json:"chat_id" validate:"required,uuid"`
	MessageID string  `json:"message_id" validate:"required,len=8"`
	Message   *string `json:"message" validate:"omitempty,min=1,max=2000"`
	Rating    *int    `json:"rating" validate:"omitempty"`
	Hidden    *bool   `json:"hidden" validate:"omitempty"`
}

// Validate checks the struct tags of a request and reports every failing field.
func Validate(request any) error {
	err := validate.Struct(request)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	details := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		if fe.Param() != "" {
			details = append(details, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			details = append(details, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", errors.ErrValidation, strings.Join(details, ", "))
}

func ValidateRegister(req RegisterRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

// ValidateCreateUser applies the registration password rules to accounts created by an admin.
func ValidateCreateUser(req CreateUserRequest) error {
	if err := Validate(req); err != nil {
		return err
	}
	if !isPasswordComplex(req.Password) {
		return fmt.Errorf("%w: %w", errors.ErrValidation, errors.ErrInvalidPassword)
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
