package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/clients_backend/clientsync"
	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

type globalOptions struct {
	operatorID   int
	operatorName string
	jsonOut      bool
}

// operatorContext carries the operator into audit entries.
func (o *globalOptions) operatorContext(ctx context.Context) context.Context {
	name := o.operatorName
	if name == "" {
		name = "cli"
	}
	return utils.SetOperatorInContext(ctx, o.operatorID, name)
}

type app struct {
	cfg         config.Config
	logger      *logrus.Logger
	clientDB    *gorm.DB
	wordPressDB *gorm.DB
	stores      clientsync.Stores
	svc         *clientsync.Service
}

const connectTimeout = 30 * time.Second

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	logger := config.NewLogger(cfg)

	cipher, err := utils.NewFieldCipherFromBase64(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	clientDB, err := config.ConnectDatabaseWithRetry(connectCtx, "clients", cfg.ClientDB, cfg.GormLog, logger)
	if err != nil {
		return nil, err
	}
	wordPressDB := clientDB
	if cfg.WordPressDB.DSN() != cfg.ClientDB.DSN() {
		wordPressDB, err = config.ConnectDatabaseWithRetry(connectCtx, "wordpress", cfg.WordPressDB, cfg.GormLog, logger)
		if err != nil {
			closeDB(clientDB)
			return nil, err
		}
	}

	stores := clientsync.NewStores(clientDB, wordPressDB, cfg.WpTablePrefix, cipher)
	return &app{
		cfg:         cfg,
		logger:      logger,
		clientDB:    clientDB,
		wordPressDB: wordPressDB,
		stores:      stores,
		svc:         clientsync.NewGormService(stores, cfg.QueryTimeout, logger, otel.Tracer("clientsync-cli")),
	}, nil
}

func (a *app) Close() {
	if a.wordPressDB != a.clientDB {
		closeDB(a.wordPressDB)
	}
	closeDB(a.clientDB)
}

func closeDB(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// withApp opens the databases for the duration of fn.
func withApp(opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := opts.operatorContext(context.Background())
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
