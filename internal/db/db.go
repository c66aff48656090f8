// Package db opens and migrates the Pixelprobe database.
package db

import (
	"fmt"

	gosql "github.com/go-sql-driver/mysql"
	"github.com/pixelprobe/pixelprobe/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database. Driver "sqlite" (the default)
// treats dsn as a file path; driver "mysql" passes dsn straight to the
// go-sql-driver DSN parser.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "pixelprobe.db"
		}
		gdb, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", dsn, err)
		}
		return gdb, nil
	case "mysql":
		gdb, err := gorm.Open(mysql.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open mysql: %w", err)
		}
		return gdb, nil
	default:
		return nil, fmt.Errorf("db: unknown driver %q (want sqlite or mysql)", driver)
	}
}

// MySQLDSN builds a go-sql-driver DSN from connection parts.
func MySQLDSN(user, host string, port int, database string) string {
	cfg := gosql.NewConfig()
	cfg.User = user
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Migrate creates or updates all Pixelprobe tables.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
