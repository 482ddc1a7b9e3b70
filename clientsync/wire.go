package clientsync

import (
	"context"
	"time"

	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Stores are the gorm stores behind one Service.
type Stores struct {
	Clients  *models.ClientStore
	Users    *models.WpUserStore
	Ignores  *models.IgnoreRuleStore
	Staff    *models.StaffStore
	AuditLog *models.AuditLogStore
}

// NewStores builds the stores over the client and WordPress pools.
func NewStores(clientDB, wordPressDB *gorm.DB, tablePrefix string, cipher models.FieldCipher) Stores {
	return Stores{
		Clients:  models.NewClientStore(clientDB, cipher),
		Users:    models.NewWpUserStore(wordPressDB, tablePrefix),
		Ignores:  models.NewIgnoreRuleStore(clientDB),
		Staff:    models.NewStaffStore(clientDB),
		AuditLog: models.NewAuditLogStore(clientDB),
	}
}

// NewGormService puts the gorm adapters in front of the stores.
func NewGormService(stores Stores, queryTimeout time.Duration, logger *logrus.Logger, tracer trace.Tracer) *Service {
	return NewService(Deps{
		Clients: NewGormClientSource(stores.Clients, queryTimeout, logger),
		Users:   NewGormUserSource(stores.Users, queryTimeout, logger),
		Ignores: NewGormIgnoreStore(stores.Ignores, queryTimeout, logger),
		Staff:   NewGormStaffSource(stores.Staff, queryTimeout, logger),
		Audit:   NewGormAuditSink(stores.AuditLog, queryTimeout, logger),
		Logger:  logger,
		Tracer:  tracer,
	})
}

const migrationLockKey = "lock:clients:migrate"

// Migrate runs the schema migration. With a Redis store, replicas starting
// together take turns.
func Migrate(ctx context.Context, db *gorm.DB, redisStore *config.RedisStore, logger *logrus.Logger) error {
	run := func() error {
		if err := models.MigrateTable(db.WithContext(ctx)); err != nil {
			config.LogError(logger, "clientsync", "Migrate", "AutoMigrate", nil, err)
			return err
		}
		logger.WithFields(logrus.Fields{"field": "migrations"}).Info("schema migrated")
		return nil
	}
	if redisStore == nil {
		return run()
	}
	return redisStore.WithLock(ctx, migrationLockKey, 2*time.Minute, 2*time.Minute, run)
}
