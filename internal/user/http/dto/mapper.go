package dto

import (
	"github.com/allisson/piivault/internal/user/domain"
	"github.com/allisson/piivault/internal/user/usecase"
)

// ToRegisterUserInput converts a RegisterUserRequest to use case input.
func ToRegisterUserInput(req RegisterUserRequest) usecase.RegisterUserInput {
	return usecase.RegisterUserInput{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		RecoveryEmails: req.RecoveryEmails,
		NationalID:     req.NationalID,
		Address:        req.Address,
		Password:       req.Password,
	}
}

// ToUpdateContactInput converts an UpdateContactRequest to use case input.
func ToUpdateContactInput(req UpdateContactRequest) usecase.UpdateContactInput {
	return usecase.UpdateContactInput{
		Email:          req.Email,
		Phone:          req.Phone,
		RecoveryEmails: req.RecoveryEmails,
		Address:        req.Address,
	}
}

// ToUserResponse converts a domain user to its API view.
func ToUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:             user.ID,
		Name:           user.Name,
		Email:          user.Email,
		Phone:          user.Phone,
		RecoveryEmails: user.RecoveryEmails,
		Profile: ProfileResponse{
			NationalID: user.Profile.NationalID,
			Address:    user.Profile.Address,
		},
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
