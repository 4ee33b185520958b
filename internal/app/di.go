// Package app provides the dependency injection container that assembles the server
// and the field encryption tooling from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/piivault/internal/config"
	"github.com/allisson/piivault/internal/database"
	documentRepository "github.com/allisson/piivault/internal/document/repository"
	fieldcryptUseCase "github.com/allisson/piivault/internal/fieldcrypt/usecase"
	"github.com/allisson/piivault/internal/http"
	"github.com/allisson/piivault/internal/metrics"
	userRepository "github.com/allisson/piivault/internal/user/repository"
)

// DocumentRepository is the document store shared by the user repository and the
// field encryption batch operations.
type DocumentRepository interface {
	fieldcryptUseCase.DocumentRepository
	userRepository.DocumentStore
}

// Container holds application dependencies. Components are created on first access
// and initialization errors are remembered, so every getter is safe to call repeatedly.
type Container struct {
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	txManager       database.TxManager
	documentRepo    DocumentRepository
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	fieldMetrics    metrics.FieldMetrics

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	fieldcryptComponents
	userComponents

	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	txManagerInit       sync.Once
	documentRepoInit    sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	fieldMetricsInit    sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a container for cfg.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// lazy runs init once under name and returns the error it produced, on this call
// and every later one.
func (c *Container) lazy(name string, once *sync.Once, init func() error) error {
	once.Do(func() {
		if err := init(); err != nil {
			c.mu.Lock()
			c.initErrors[name] = err
			c.mu.Unlock()
		}
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the JSON logger configured with LOG_LEVEL.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	err := c.lazy("db", &c.dbInit, func() error {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	err := c.lazy("txManager", &c.txManagerInit, func() error {
		db, err := c.DB()
		if err != nil {
			return fmt.Errorf("failed to get database for tx manager: %w", err)
		}
		c.txManager = database.NewTxManager(db)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// DocumentRepository returns the document store for the configured driver.
func (c *Container) DocumentRepository() (DocumentRepository, error) {
	err := c.lazy("documentRepo", &c.documentRepoInit, func() error {
		repo, err := c.initDocumentRepository()
		if err != nil {
			return err
		}
		c.documentRepo = repo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.documentRepo, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	err := c.lazy("metricsProvider", &c.metricsProviderInit, func() error {
		provider, err := metrics.NewProvider(c.config.MetricsNamespace, metrics.WithRuntimeCollectors())
		if err != nil {
			return fmt.Errorf("failed to create metrics provider: %w", err)
		}
		c.metricsProvider = provider
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns use case metrics, or a no-op recorder when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	err := c.lazy("businessMetrics", &c.businessMetricsInit, func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return nil
		}
		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create business metrics: %w", err)
		}
		c.businessMetrics = bm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// FieldMetrics returns field tooling metrics, or a no-op recorder when metrics are disabled.
func (c *Container) FieldMetrics() (metrics.FieldMetrics, error) {
	err := c.lazy("fieldMetrics", &c.fieldMetricsInit, func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		if provider == nil {
			c.fieldMetrics = metrics.NewNoOpFieldMetrics()
			return nil
		}
		fm, err := metrics.NewFieldMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			return fmt.Errorf("failed to create field metrics: %w", err)
		}
		c.fieldMetrics = fm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.fieldMetrics, nil
}

// HTTPServer returns the API server with its router configured.
func (c *Container) HTTPServer() (*http.Server, error) {
	err := c.lazy("httpServer", &c.httpServerInit, func() error {
		server, err := c.initHTTPServer()
		if err != nil {
			return err
		}
		c.httpServer = server
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}
	err := c.lazy("metricsServer", &c.metricsServerInit, func() error {
		provider, err := c.MetricsProvider()
		if err != nil {
			return err
		}
		c.metricsServer = http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown releases every initialized resource: servers first, then metrics,
// key material and finally the database.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}
	if c.keyManager != nil {
		c.keyManager.Close()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (c *Container) initLogger() *slog.Logger {
	var level slog.Level
	switch c.config.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func (c *Container) initDocumentRepository() (DocumentRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for document repository: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for document repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return documentRepository.NewMySQLDocumentRepository(db, txManager), nil
	case "postgres":
		return documentRepository.NewPostgreSQLDocumentRepository(db, txManager), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	keyManager, err := c.KeyManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get key manager for http server: %w", err)
	}
	userHandler, err := c.UserHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get user handler for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, keyManager, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(c.config, userHandler, provider)
	return server, nil
}
