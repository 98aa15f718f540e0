package repository

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/goliatone/go-authgate"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/schema"
)

const migrationsDir = "data/sql/migrations"

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// RegisterModels registers the bun models stored by this package.
func RegisterModels() {
	persistence.RegisterModel((*ProfileRecord)(nil))
	persistence.RegisterModel((*KeyValueRecord)(nil))
	persistence.RegisterModel((*ActivityRecord)(nil))
}

// NewPersistence builds a persistence client over db with the package
// models and migrations registered. logger may be nil.
func NewPersistence(cfg persistence.Config, db *sql.DB, dialect schema.Dialect, logger authgate.Logger) (*persistence.Client, error) {
	RegisterModels()

	client, err := persistence.New(cfg, db, dialect)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		client.SetLogger(logger)
	}

	migrations, err := fs.Sub(GetMigrationsFS(), migrationsDir)
	if err != nil {
		return nil, err
	}
	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel(migrationsDir),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	return client, nil
}

// Migrate validates the registered dialect migrations and applies them.
func Migrate(ctx context.Context, client *persistence.Client) error {
	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}
	return client.Migrate(ctx)
}
