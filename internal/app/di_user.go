package app

import (
	"fmt"
	"sync"

	userHTTP "github.com/allisson/piivault/internal/user/http"
	userRepository "github.com/allisson/piivault/internal/user/repository"
	userService "github.com/allisson/piivault/internal/user/service"
	userUseCase "github.com/allisson/piivault/internal/user/usecase"
)

type userComponents struct {
	passwordService userService.PasswordService
	userRepository  *userRepository.UserRepository
	userUseCase     userUseCase.UseCase
	userHandler     *userHTTP.UserHandler

	passwordServiceInit sync.Once
	userRepositoryInit  sync.Once
	userUseCaseInit     sync.Once
	userHandlerInit     sync.Once
}

// PasswordService returns the Argon2id password hasher.
func (c *Container) PasswordService() (userService.PasswordService, error) {
	err := c.lazy("passwordService", &c.passwordServiceInit, func() error {
		passwords, err := userService.NewPasswordService()
		if err != nil {
			return fmt.Errorf("failed to create password service: %w", err)
		}
		c.passwordService = passwords
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.passwordService, nil
}

// UserRepository returns the encrypted user repository.
func (c *Container) UserRepository() (*userRepository.UserRepository, error) {
	err := c.lazy("userRepository", &c.userRepositoryInit, func() error {
		store, err := c.DocumentRepository()
		if err != nil {
			return fmt.Errorf("failed to get document repository for user repository: %w", err)
		}
		binding, err := c.UserBinding()
		if err != nil {
			return fmt.Errorf("failed to get users binding: %w", err)
		}
		indexer, err := c.BlindIndexer()
		if err != nil {
			return err
		}
		c.userRepository = userRepository.NewUserRepository(store, binding, indexer, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.userRepository, nil
}

// UserUseCase returns the instrumented user use case.
func (c *Container) UserUseCase() (userUseCase.UseCase, error) {
	err := c.lazy("userUseCase", &c.userUseCaseInit, func() error {
		repo, err := c.UserRepository()
		if err != nil {
			return err
		}
		passwords, err := c.PasswordService()
		if err != nil {
			return err
		}
		bm, err := c.BusinessMetrics()
		if err != nil {
			return err
		}
		c.userUseCase = userUseCase.NewUserUseCaseWithMetrics(userUseCase.NewUserUseCase(repo, passwords), bm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.userUseCase, nil
}

// UserHandler returns the HTTP handler for the /v1/users routes.
func (c *Container) UserHandler() (*userHTTP.UserHandler, error) {
	err := c.lazy("userHandler", &c.userHandlerInit, func() error {
		useCase, err := c.UserUseCase()
		if err != nil {
			return err
		}
		c.userHandler = userHTTP.NewUserHandler(useCase, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.userHandler, nil
}
