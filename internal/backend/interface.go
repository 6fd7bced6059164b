package backend

import (
	"context"
	"time"

	"brunance/internal/accounts"
	"brunance/internal/amqp"
	"brunance/internal/services"
	"brunance/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired ledger and everything it depends on.
type BackendResult struct {
	Ledger *services.LedgerService
	Sync   *services.SyncService
	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP *amqp.Client
	// Remote is nil when RemoteBackend is none.
	Remote sheets.Remote
	// Ready reports whether the persistence layer can serve requests.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Persistence
	Type         BackendType
	SQLiteDBPath string

	// Ledger
	Registry *accounts.Registry
	Location *time.Location

	// Remote copy
	Remote                   RemoteType
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsWebAppURL          string

	// Broker (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	Sync services.SyncConfig
}

// BackendType names where the ledger is persisted.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// RemoteType names the shared copy the ledger is synced with.
type RemoteType string

const (
	NoRemote     RemoteType = "none"
	SheetsRemote RemoteType = "sheets"
	WebAppRemote RemoteType = "webapp"
)

func (rt RemoteType) String() string {
	return string(rt)
}

func (rt RemoteType) IsValid() bool {
	switch rt {
	case NoRemote, SheetsRemote, WebAppRemote:
		return true
	default:
		return false
	}
}
