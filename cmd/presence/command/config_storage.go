package command

import (
	"context"
	"fmt"
	"os"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-presence/internal/storage"
	"github.com/pixil98/go-presence/internal/storage/bolt"
	"github.com/pixil98/go-presence/internal/storage/postgres"
)

type StorageDriver string

const (
	StorageDriverFile     StorageDriver = "file"
	StorageDriverBolt     StorageDriver = "bolt"
	StorageDriverPostgres StorageDriver = "postgres"
)

func (d *StorageDriver) UnmarshalText(text []byte) error {
	switch v := StorageDriver(text); v {
	case StorageDriverFile, StorageDriverBolt, StorageDriverPostgres:
		*d = v
	default:
		return fmt.Errorf("unknown storage driver: %s", text)
	}
	return nil
}

type StorageConfig struct {
	Driver StorageDriver `json:"driver"`
	Path   string        `json:"path,omitempty"`
	DSN    string        `json:"dsn,omitempty"`
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()

	switch c.Driver {
	case StorageDriverFile:
		if c.Path == "" {
			el.Add(fmt.Errorf("storage: path is required"))
		} else if _, err := os.Stat(c.Path); err != nil {
			el.Add(fmt.Errorf("storage: invalid path %q: %w", c.Path, err))
		}
	case StorageDriverBolt:
		if c.Path == "" {
			el.Add(fmt.Errorf("storage: path is required"))
		}
	case StorageDriverPostgres:
		if c.DSN == "" {
			el.Add(fmt.Errorf("storage: dsn is required"))
		}
	case "":
		el.Add(fmt.Errorf("storage: driver is required"))
	default:
		el.Add(fmt.Errorf("storage: unknown driver %q", c.Driver))
	}

	return el.Err()
}

func (c *StorageConfig) buildDatabase(ctx context.Context) (storage.Database, error) {
	switch c.Driver {
	case StorageDriverFile:
		return storage.NewFileDatabase(c.Path)
	case StorageDriverBolt:
		return bolt.NewFromFile(c.Path, nil)
	case StorageDriverPostgres:
		return postgres.Open(ctx, c.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", c.Driver)
	}
}
