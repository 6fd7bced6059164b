package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"brunance/internal/amqp"
	"brunance/internal/services"
	"brunance/internal/sheets"
	gsheet "brunance/internal/sheets/google"
	"brunance/internal/sheets/webapp"
	"brunance/internal/storage"
)

type persistence interface {
	services.Persistence
	Close() error
}

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
	if config.Registry == nil {
		return nil, fmt.Errorf("account registry is required")
	}

	repo, ready, err := f.createPersistence(config)
	if err != nil {
		return nil, err
	}

	remote, err := f.createRemote(ctx, config)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	// Broker is optional: without it changes are picked up by the sync loop.
	var (
		amqpClient *amqp.Client
		publisher  services.SyncPublisher
	)
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without broker", "error", err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	ledgerSvc, err := services.NewLedgerService(ctx, config.Registry, repo, publisher, services.LedgerConfig{
		Location: config.Location,
	})
	if err != nil {
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		_ = repo.Close()
		return nil, err
	}

	syncConfig := config.Sync
	if syncConfig.Interval <= 0 || syncConfig.Timeout <= 0 {
		syncConfig = services.DefaultSyncConfig()
	}
	syncSvc := services.NewSyncService(ledgerSvc, remote, repo, syncConfig)

	f.logger.Info("Initialized ledger backend",
		"backend", config.Type,
		"remote", config.Remote,
		"amqp_enabled", amqpClient != nil,
		"transactions", len(ledgerSvc.Export()))

	cleanup := func() error {
		var errs []error
		if syncSvc.IsRunning() {
			errs = append(errs, syncSvc.Stop(context.Background()))
		}
		if amqpClient != nil {
			errs = append(errs, amqpClient.Close())
		}
		errs = append(errs, repo.Close())
		return errors.Join(errs...)
	}

	return &BackendResult{
		Ledger:  ledgerSvc,
		Sync:    syncSvc,
		AMQP:    amqpClient,
		Remote:  remote,
		Ready:   ready,
		Cleanup: cleanup,
	}, nil
}

func (f *DefaultFactory) createPersistence(config Config) (persistence, func(context.Context) error, error) {
	switch config.Type {
	case SQLiteBackend:
		sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite persistence", "db_path", config.SQLiteDBPath)
		return sqliteRepo, sqliteRepo.Ping, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory persistence")
		return storage.NewMemoryRepository(), func(context.Context) error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createRemote(ctx context.Context, config Config) (sheets.Remote, error) {
	switch config.Remote {
	case SheetsRemote:
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets remote", "sheet", config.GoogleSheetName)
		return cli, nil
	case WebAppRemote:
		cli, err := webapp.New(config.SheetsWebAppURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize web app client: %w", err)
		}
		f.logger.Info("Initialized web app remote")
		return cli, nil
	default:
		return nil, nil
	}
}
