package persistence

import (
	"context"
	"io/fs"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/entity-registry/migrations"
)

// Migrator applies the registry schema with goose. Migrations are read from
// dir when it is set, otherwise from the files embedded in the binary.
type Migrator struct {
	provider *goose.Provider
	logger   *logrus.Logger
}

func NewMigrator(pool *pgxpool.Pool, dir string, logger *logrus.Logger) (*Migrator, error) {
	var fsys fs.FS = migrations.Registry()
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, stdlib.OpenDBFromPool(pool), fsys)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migration provider")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Migrator{provider: provider, logger: logger}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	for _, r := range results {
		m.log(r)
	}
	if err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}

func (m *Migrator) Down(ctx context.Context) error {
	r, err := m.provider.Down(ctx)
	if r != nil {
		m.log(r)
	}
	if err != nil {
		return errors.Wrap(err, "failed to roll back migration")
	}
	return nil
}

func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read migration status")
	}
	return statuses, nil
}

func (m *Migrator) Close() error {
	return m.provider.Close()
}

func (m *Migrator) log(r *goose.MigrationResult) {
	fields := logrus.Fields{
		"version":   r.Source.Version,
		"path":      r.Source.Path,
		"direction": r.Direction,
		"duration":  r.Duration,
	}
	if r.Error != nil {
		m.logger.WithFields(fields).WithError(r.Error).Error("migration failed")
		return
	}
	m.logger.WithFields(fields).Info("migration applied")
}
