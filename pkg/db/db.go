package db

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

// sqlite settings are per connection, so they go in the DSN rather than a
// one-off PRAGMA
const (
	memoryDSN   = "file::memory:?cache=shared&_foreign_keys=on"
	fileOptions = "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
)

type DB struct {
	Conn *gorm.DB
}

var (
	instance *DB
	once     sync.Once
)

// GetInstance opens and migrates the database on first call, later calls
// return the same instance whatever dialector they pass.
func GetInstance(dialector gorm.Dialector) *DB {
	once.Do(func() {
		var err error
		if instance, err = open(dialector); err != nil {
			log.Fatal("Failed to open database: ", err)
		}
	})
	return instance
}

func open(dialector gorm.Dialector) (*DB, error) {
	zlogger := common.GetLoggerWith(common.LoggerNameStore)

	conn, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger(zlogger)})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	zlogger.Info("Connected to database with dialector:", zap.String("dialector", dialector.Name()))

	if err := conn.AutoMigrate(&models.Gateway{}, &models.Sensor{}, &models.Reading{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	zlogger.Info("Database migration completed")

	var fk int
	if err := conn.Raw("PRAGMA foreign_keys").Scan(&fk).Error; err != nil || fk != 1 {
		return nil, fmt.Errorf("sqlite foreign key support not enabled: %v", err)
	}
	return &DB{Conn: conn}, nil
}

// gormLogger sends gorm's own messages (slow queries, errors) to the store
// logger.
func gormLogger(zlogger *zap.Logger) logger.Interface {
	return logger.New(zap.NewStdLog(zlogger.WithOptions(zap.AddCallerSkip(2))), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func sqliteFile(path string) gorm.Dialector {
	return sqlite.Open(path + fileOptions)
}

func UseSqliteDialector() gorm.Dialector {
	var dbPath string
	var found bool
	if dbPath, found = os.LookupEnv(common.EnvKeyMADbPath); !found {
		dbPath = "mobilealerts.db"
	}
	return sqliteFile(dbPath)
}

func UseMemorySqliteDialector() gorm.Dialector {
	return sqlite.Open(memoryDSN)
}

// UseDialector picks the dialector for the configured db type and path.
func UseDialector(dbType, dbPath string) gorm.Dialector {
	switch {
	case dbType == "memory":
		return UseMemorySqliteDialector()
	case dbPath != "":
		return sqliteFile(dbPath)
	default:
		return UseSqliteDialector()
	}
}
