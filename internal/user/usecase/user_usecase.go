package usecase

import (
	"context"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/piivault/internal/errors"
	"github.com/allisson/piivault/internal/user/domain"
	appValidation "github.com/allisson/piivault/internal/validation"
)

// RegisterUserInput contains the input data for user registration.
type RegisterUserInput struct {
	Name           string
	Email          string
	Phone          string
	RecoveryEmails []string
	NationalID     string
	Address        string
	Password       string
}

// UpdateContactInput lists contact fields to change; nil fields are left untouched.
type UpdateContactInput struct {
	Email          *string
	Phone          *string
	RecoveryEmails *[]string
	Address        *string
}

var passwordRule = appValidation.PasswordStrength{
	MinLength:      8,
	RequireUpper:   true,
	RequireLower:   true,
	RequireNumber:  true,
	RequireSpecial: true,
}

// userUseCase implements UseCase.
type userUseCase struct {
	userRepo  UserRepository
	passwords PasswordService
}

// NewUserUseCase creates a UseCase.
func NewUserUseCase(userRepo UserRepository, passwords PasswordService) UseCase {
	return &userUseCase{userRepo: userRepo, passwords: passwords}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeEmails(emails []string) []string {
	if emails == nil {
		return nil
	}
	out := make([]string, len(emails))
	for i, e := range emails {
		out[i] = normalizeEmail(e)
	}
	return out
}

func validateRegisterUserInput(input RegisterUserInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Name,
			validation.Required.Error("name is required"),
			appValidation.NotBlank,
			validation.Length(1, 255).Error("name must be between 1 and 255 characters"),
		),
		validation.Field(&input.Email,
			validation.Required.Error("email is required"),
			appValidation.Email,
			validation.Length(5, 255).Error("email must be between 5 and 255 characters"),
		),
		validation.Field(&input.Phone, appValidation.Phone),
		validation.Field(&input.RecoveryEmails, appValidation.EachEmail),
		validation.Field(&input.NationalID, validation.Length(1, 64)),
		validation.Field(&input.Address, validation.Length(1, 512)),
		validation.Field(&input.Password,
			validation.Required.Error("password is required"),
			validation.Length(8, 128).Error("password must be between 8 and 128 characters"),
			passwordRule,
		),
	)
	return appValidation.WrapValidationError(err)
}

func validateUpdateContactInput(input UpdateContactInput) error {
	var recovery error
	if input.RecoveryEmails != nil {
		recovery = validation.Validate(*input.RecoveryEmails, appValidation.EachEmail)
	}
	errs := validation.Errors{
		"Email": validation.Validate(input.Email,
			validation.NilOrNotEmpty.Error("email cannot be removed"),
			appValidation.Email,
		),
		"Phone":          validation.Validate(input.Phone, appValidation.Phone),
		"RecoveryEmails": recovery,
		"Address":        validation.Validate(input.Address, validation.Length(0, 512)),
	}
	return appValidation.WrapValidationError(errs.Filter())
}

// Register validates input, hashes the password and stores the user. Contact and
// identity fields are encrypted by the repository.
func (uc *userUseCase) Register(ctx context.Context, input RegisterUserInput) (*domain.User, error) {
	if err := validateRegisterUserInput(input); err != nil {
		return nil, err
	}

	hashed, err := uc.passwords.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:           strings.TrimSpace(input.Name),
		Email:          normalizeEmail(input.Email),
		Phone:          strings.TrimSpace(input.Phone),
		RecoveryEmails: normalizeEmails(input.RecoveryEmails),
		Profile: domain.Profile{
			NationalID: strings.TrimSpace(input.NationalID),
			Address:    strings.TrimSpace(input.Address),
		},
		Password: hashed,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID retrieves a user by id.
func (uc *userUseCase) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return uc.userRepo.GetByID(ctx, id)
}

// GetByEmail retrieves a user by email.
func (uc *userUseCase) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := validation.Validate(email, validation.Required, appValidation.Email); err != nil {
		return nil, appValidation.WrapValidationError(err)
	}
	return uc.userRepo.GetByEmail(ctx, normalizeEmail(email))
}

// UpdateContact changes contact fields and returns the updated user.
func (uc *userUseCase) UpdateContact(
	ctx context.Context,
	id string,
	input UpdateContactInput,
) (*domain.User, error) {
	if err := validateUpdateContactInput(input); err != nil {
		return nil, err
	}

	update := domain.ContactUpdate{Phone: input.Phone, Address: input.Address}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		update.Email = &email
	}
	if input.RecoveryEmails != nil {
		emails := normalizeEmails(*input.RecoveryEmails)
		if emails == nil {
			emails = []string{}
		}
		update.RecoveryEmails = &emails
	}
	if update.IsEmpty() {
		return nil, domain.ErrEmptyContactUpdate
	}

	if err := uc.userRepo.UpdateContact(ctx, id, update); err != nil {
		return nil, err
	}
	return uc.userRepo.GetByID(ctx, id)
}

// Authenticate checks an email and password pair. Unknown emails and wrong passwords
// both return ErrInvalidCredentials.
func (uc *userUseCase) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := uc.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !uc.passwords.Compare(password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}
