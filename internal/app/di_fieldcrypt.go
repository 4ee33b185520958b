package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
	"github.com/allisson/piivault/internal/fieldcrypt/schema"
	"github.com/allisson/piivault/internal/fieldcrypt/service"
	"github.com/allisson/piivault/internal/fieldcrypt/usecase"
	userRepository "github.com/allisson/piivault/internal/user/repository"
)

type fieldcryptComponents struct {
	kmsService          service.KMSService
	keyManager          *service.KeyManager
	fieldCipher         *service.FieldCipher
	blindIndexer        *service.BlindIndexer
	registry            *schema.Registry
	userBinding         *schema.Binding
	migrationUseCase    usecase.MigrationUseCase
	verificationUseCase usecase.VerificationUseCase

	kmsServiceInit          sync.Once
	keyManagerInit          sync.Once
	fieldCipherInit         sync.Once
	blindIndexerInit        sync.Once
	registryInit            sync.Once
	migrationUseCaseInit    sync.Once
	verificationUseCaseInit sync.Once
}

// KMSService returns the KMS service used to unwrap kms: secrets.
func (c *Container) KMSService() service.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = service.NewKMSService()
	})
	return c.kmsService
}

// KeyManager returns the key manager built from the FIELD_ENCRYPTION_* settings.
// Keys are resolved lazily; call ResolveKeys to resolve them with a caller context.
func (c *Container) KeyManager() (*service.KeyManager, error) {
	err := c.lazy("keyManager", &c.keyManagerInit, func() error {
		var kms service.KMSService
		if c.config.KMSKeyURI != "" {
			kms = c.KMSService()
		}
		c.keyManager = service.NewKeyManager(service.KeySettings{
			PrimarySecret:  c.config.FieldEncryptionKey,
			LegacySecrets:  c.config.FieldEncryptionLegacyKeys,
			FallbackSecret: c.config.AuthTokenSecret,
			RefuseFallback: c.config.FieldEncryptionRequireDedicatedKey,
			KMSKeyURI:      c.config.KMSKeyURI,
		}, kms, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.keyManager, nil
}

// ResolveKeys resolves the key ring now, surfacing KMS and configuration errors.
func (c *Container) ResolveKeys(ctx context.Context) (*service.KeyManager, error) {
	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, err
	}
	if err := keyManager.Resolve(ctx); err != nil {
		return nil, fmt.Errorf("failed to resolve field encryption keys: %w", err)
	}
	return keyManager, nil
}

// CheckFieldEncryption resolves the keys and fails with domain.ErrEncryptionRequired
// when FIELD_ENCRYPTION_REQUIRED is set but no key is available.
func (c *Container) CheckFieldEncryption(ctx context.Context) error {
	keyManager, err := c.ResolveKeys(ctx)
	if err != nil {
		return err
	}
	if c.config.FieldEncryptionRequired && !keyManager.Enabled() {
		return domain.ErrEncryptionRequired
	}
	if !keyManager.Enabled() {
		c.Logger().Warn("field encryption disabled, PII is stored and indexed as plaintext")
	}
	return nil
}

// FieldCipher returns the envelope cipher over the key ring.
func (c *Container) FieldCipher() (*service.FieldCipher, error) {
	err := c.lazy("fieldCipher", &c.fieldCipherInit, func() error {
		keyManager, err := c.KeyManager()
		if err != nil {
			return fmt.Errorf("failed to get key manager for field cipher: %w", err)
		}
		c.fieldCipher = service.NewFieldCipher(keyManager, c.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.fieldCipher, nil
}

// BlindIndexer returns the HMAC blind indexer over the key ring.
func (c *Container) BlindIndexer() (*service.BlindIndexer, error) {
	err := c.lazy("blindIndexer", &c.blindIndexerInit, func() error {
		keyManager, err := c.KeyManager()
		if err != nil {
			return fmt.Errorf("failed to get key manager for blind indexer: %w", err)
		}
		c.blindIndexer = service.NewBlindIndexer(keyManager)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.blindIndexer, nil
}

// Registry returns the schema registry with every entity binding registered.
func (c *Container) Registry() (*schema.Registry, error) {
	err := c.lazy("registry", &c.registryInit, func() error {
		cipher, err := c.FieldCipher()
		if err != nil {
			return err
		}
		indexer, err := c.BlindIndexer()
		if err != nil {
			return err
		}

		registry := schema.NewRegistry(cipher, indexer, c.Logger())
		binding, err := userRepository.Register(registry)
		if err != nil {
			return fmt.Errorf("failed to register users binding: %w", err)
		}

		c.registry = registry
		c.userBinding = binding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.registry, nil
}

// UserBinding returns the binding registered for the users collection.
func (c *Container) UserBinding() (*schema.Binding, error) {
	if _, err := c.Registry(); err != nil {
		return nil, err
	}
	return c.userBinding, nil
}

// MigrationUseCase returns the instrumented migrate-fields use case.
func (c *Container) MigrationUseCase() (usecase.MigrationUseCase, error) {
	err := c.lazy("migrationUseCase", &c.migrationUseCaseInit, func() error {
		registry, repo, err := c.fieldcryptDeps()
		if err != nil {
			return fmt.Errorf("failed to build migration use case: %w", err)
		}
		bm, err := c.BusinessMetrics()
		if err != nil {
			return err
		}
		fm, err := c.FieldMetrics()
		if err != nil {
			return err
		}

		useCase := usecase.NewMigrationUseCase(
			registry,
			repo,
			c.config.MigrationBatchSize,
			c.config.MigrationConcurrency,
			c.Logger().With(slog.String("component", "migrate-fields")),
		)
		c.migrationUseCase = usecase.NewMigrationUseCaseWithMetrics(useCase, bm, fm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.migrationUseCase, nil
}

// VerificationUseCase returns the instrumented verify-fields use case.
func (c *Container) VerificationUseCase() (usecase.VerificationUseCase, error) {
	err := c.lazy("verificationUseCase", &c.verificationUseCaseInit, func() error {
		registry, repo, err := c.fieldcryptDeps()
		if err != nil {
			return fmt.Errorf("failed to build verification use case: %w", err)
		}
		bm, err := c.BusinessMetrics()
		if err != nil {
			return err
		}
		fm, err := c.FieldMetrics()
		if err != nil {
			return err
		}

		useCase := usecase.NewVerificationUseCase(
			registry,
			repo,
			c.config.MigrationBatchSize,
			c.config.MigrationConcurrency,
			c.Logger().With(slog.String("component", "verify-fields")),
		)
		c.verificationUseCase = usecase.NewVerificationUseCaseWithMetrics(useCase, bm, fm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.verificationUseCase, nil
}

func (c *Container) fieldcryptDeps() (*schema.Registry, DocumentRepository, error) {
	registry, err := c.Registry()
	if err != nil {
		return nil, nil, err
	}
	repo, err := c.DocumentRepository()
	if err != nil {
		return nil, nil, err
	}
	return registry, repo, nil
}
