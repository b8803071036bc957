package testutil

import (
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	dbpkg "github.com/yungbote/indoormap-backend/internal/data/db"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

var (
	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// UsingPostgres reports whether DB hands out the shared Postgres handle.
func UsingPostgres() bool {
	return os.Getenv("TEST_POSTGRES_DSN") != ""
}

// DB returns a migrated database. With TEST_POSTGRES_DSN set it is a shared
// Postgres handle (pair it with Tx); otherwise every call gets a fresh
// in-memory sqlite database.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		pgOnce.Do(func() {
			pgDB, pgErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
				DisableForeignKeyConstraintWhenMigrating: true,
				TranslateError:                           true,
				Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
			})
			if pgErr != nil {
				return
			}
			pgErr = dbpkg.AutoMigrateAll(pgDB)
		})
		if pgErr != nil {
			tb.Fatalf("failed to init test db: %v", pgErr)
		}
		return pgDB
	}

	name := "file:" + uuid.NewString() + "?mode=memory&cache=private&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(name), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	if err := dbpkg.AutoMigrateAll(db); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	return db
}

// Tx opens a transaction rolled back when the test ends. Only meaningful on
// the shared Postgres handle; sqlite tests already get a private database.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
