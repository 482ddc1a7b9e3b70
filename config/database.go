package config

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DSN builds the go-sql-driver DSN. A host of "/cloudsql/<CONNECTION_NAME>"
// connects through the unix socket of the Cloud SQL Auth Proxy.
func (c DatabaseConfig) DSN() string {
	network := "tcp"
	address := fmt.Sprintf("%s:%s", c.Host, c.Port)
	if strings.HasPrefix(c.Host, "/cloudsql/") {
		network = "unix"
		address = c.Host
	}
	return fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.User,
		c.Password,
		network,
		address,
		c.Name,
	)
}

// ConnectDatabaseWithRetry opens a pool and keeps retrying with back-off
// until it connects or ctx is done. The caller owns the returned pool.
func ConnectDatabaseWithRetry(ctx context.Context, name string, dbConfig DatabaseConfig, gormLog string, logg *logrus.Logger) (*gorm.DB, error) {
	var attempt int
	for {
		attempt++
		db, err := OpenDatabase(dbConfig, gormLog)
		if err == nil {
			logg.WithFields(logrus.Fields{
				"database": name,
				"attempt":  attempt,
			}).Info("connected to database")
			return db, nil
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logg.WithFields(logrus.Fields{
			"database": name,
			"attempt":  attempt,
		}).Warn("failed to connect database; retrying in " + sleep.String() + ": " + err.Error())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func OpenDatabase(dbConfig DatabaseConfig, gormLog string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dbConfig.DSN()), NewGormConfig(gormLog))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	return db, nil
}

// NewGormConfig is shared with the test databases.
func NewGormConfig(gormLog string) *gorm.Config {
	return &gorm.Config{
		Logger:         writeGormLog(gormLog),
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		TranslateError: true,
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  logger.Error,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// writeGormLog logs every statement to the given file, errors only to stdout otherwise.
func writeGormLog(logFile string) logger.Interface {
	if logFile == "" {
		return initLog()
	}
	f, err := os.Create(logFile)
	if err != nil {
		return initLog()
	}
	return logger.New(log.New(io.MultiWriter(f), "\r\n", log.LstdFlags), logger.Config{
		Colorful:      false,
		LogLevel:      logger.Info,
		SlowThreshold: time.Second,
	})
}
