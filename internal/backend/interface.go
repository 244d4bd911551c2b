package backend

import (
	"context"

	"budgetsense/internal/store"
)

// Backend is the prediction store the serving layer talks to.
type Backend interface {
	store.Store
	store.Pinger
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQL specific
	SQLiteDBPath string
	PostgresDSN  string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Firebase specific
	FirebaseDatabaseURL     string
	FirebasePath            string
	FirebaseCredentialsFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	FirebaseBackend BackendType = "firebase"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, FirebaseBackend:
		return true
	default:
		return false
	}
}
