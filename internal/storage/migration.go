package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// RunMigrations applies pending schema migrations from cfg.MigrationsPath.
// It opens a dedicated connection so migration state never shares the
// service connection pool.
func RunMigrations(cfg *Config, logger *zap.Logger) error {
	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		return fmt.Errorf("migrations path %s does not exist: %w", cfg.MigrationsPath, err)
	}

	sqlDriver := cfg.Driver
	if sqlDriver == "sqlite" {
		sqlDriver = "sqlite3"
	}

	db, err := sql.Open(sqlDriver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	var driver database.Driver
	switch cfg.Driver {
	case "sqlite":
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case "mysql":
		driver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	case "postgres":
		driver, err = migratepostgres.WithInstance(db, &migratepostgres.Config{})
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s migration driver: %w", cfg.Driver, err)
	}

	instance, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsPath, cfg.Driver, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator instance: %w", err)
	}

	logger.Info("Starting migrations", zap.String("path", cfg.MigrationsPath))

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Migrations completed")
	return nil
}
