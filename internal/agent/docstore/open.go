package docstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/tiomoreno/requiety-sub000/internal/server/config"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// sqliteSchema — схема SQLite. Индексы по выражениям повторяют
// индексы postgres-миграции.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		doc        TEXT NOT NULL,
		UNIQUE (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_parent_id_idx ON documents (collection, json_extract(doc, '$.parentId'))`,
	`CREATE INDEX IF NOT EXISTS documents_request_id_idx ON documents (collection, json_extract(doc, '$.requestId'))`,
	`CREATE INDEX IF NOT EXISTS documents_workspace_id_idx ON documents (collection, json_extract(doc, '$.workspaceId'))`,
	`CREATE INDEX IF NOT EXISTS documents_environment_id_idx ON documents (collection, json_extract(doc, '$.environmentId'))`,
}

// Open выбирает реализацию хранилища по store.driver.
//
// Поведение:
//   - memory — пустой MemoryStore;
//   - file — FileStore поверх cfg.Path;
//   - sqlite — SQLStore поверх cfg.Path, схема создаётся при открытии;
//   - postgres — SQLStore поверх cfg.DSN, миграции применяются, если включены.
func Open(ctx context.Context, cfg config.StoreConfig, log *logger.HTTPLogger) (Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return NewMemoryStore(), nil

	case config.StoreFile:
		return OpenFileStore(cfg.Path)

	case config.StoreSQLite:
		return OpenSQLite(ctx, cfg.Path)

	case config.StorePostgres:
		db, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			log.Error("error to connect db", zap.Error(err))
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("error check db connection", zap.Error(err))
			db.Close()
			return nil, err
		}
		if cfg.Migrations.Enabled {
			if err := MigratePostgres(db); err != nil {
				log.Error("error applying migrations", zap.Error(err))
				db.Close()
				return nil, err
			}
			log.Info("migrations applied successfully")
		}
		return NewPostgresStore(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// OpenSQLite открывает (или создаёт) файл базы и применяет схему.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := EnsureSQLiteSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteStore(db), nil
}

// EnsureSQLiteSchema создаёт таблицу и индексы, если их нет.
func EnsureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

// MigratePostgres применяет встроенные миграции.
// migrate.ErrNoChange ошибкой не считается.
func MigratePostgres(db *sql.DB) error {
	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
