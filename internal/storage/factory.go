package storage

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/internal/storage/influx"
	"github.com/OCAP2/firecontrol/internal/storage/memory"
	"github.com/OCAP2/firecontrol/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/firecontrol/internal/storage/sqlite"
)

// Backend type names accepted in storage.type.
const (
	TypeMemory   = "memory"
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
	TypeInflux   = "influx"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Type {
	case TypePostgres:
		return postgres.New(cfg.Postgres, logger), nil
	case TypeSQLite:
		return sqlitestorage.New(cfg.SQLite, logger), nil
	case TypeInflux:
		return influx.New(cfg.Influx, logger), nil
	case TypeMemory, "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
