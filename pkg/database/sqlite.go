package database

import (
	"fmt"
	"os"
	"path/filepath"

	"chag-go/pkg/log"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenSQLite 打开（必要时创建）SQLite 数据库文件，启用 WAL。
func OpenSQLite(dbPath string) (*gorm.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// 单写者，避免 SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.Infof("SQLite database opened at %s", dbPath)
	return db, nil
}

// CloseSQLite 关闭 gorm 底层的连接池。
func CloseSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
