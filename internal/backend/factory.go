package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetsense/internal/adapters"
	"budgetsense/internal/amqp"
	"budgetsense/internal/storage"
	"budgetsense/internal/store/firebase"
	"budgetsense/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend, PostgresBackend:
		return f.createSQLBackend(config)
	case FirebaseBackend:
		return f.createFirebaseBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(config Config) (*BackendResult, error) {
	var (
		repo *storage.Repository
		err  error
	)
	if config.Type == PostgresBackend {
		repo, err = storage.NewPostgresRepository(config.PostgresDSN)
	} else {
		repo, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", config.Type, err)
	}

	// AMQP is optional; without it the worker's poll picks rows up.
	var publisher adapters.SyncPublisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	adapter := adapters.NewSQLAdapter(repo, publisher)

	f.logger.Info("Initialized SQL backend",
		"dialect", repo.Dialect(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: adapter,
		Cleanup: func() error {
			var errs []error
			if amqpClient != nil {
				errs = append(errs, amqpClient.Close())
			}
			errs = append(errs, repo.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createFirebaseBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := firebase.New(ctx, config.FirebaseDatabaseURL, config.FirebasePath, config.FirebaseCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase client: %w", err)
	}

	f.logger.Info("Initialized Firebase backend", "path", config.FirebasePath)

	return &BackendResult{
		Backend: cli,
		Cleanup: nil,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Backend: memory.New(),
		Cleanup: nil,
	}, nil
}
