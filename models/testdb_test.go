package models_test

import (
	"testing"

	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/models"
	"github.com/mmdatafocus/clients_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testPrefix = "wp_"

// openTestDB returns a migrated in-memory database holding both the client
// tables and the WordPress user tables.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.NewGormConfig(""))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection, so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	if err := models.MigrateWordPressTables(db, testPrefix); err != nil {
		t.Fatalf("MigrateWordPressTables: %v", err)
	}
	return db
}

func newTestCipher(t *testing.T) *utils.FieldCipher {
	t.Helper()
	c, err := utils.NewFieldCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	return c
}

func privateClient(first, last string) *models.NewClient {
	return &models.NewClient{
		CustomerType:  models.CustomerTypePrivate,
		FirstName:     first,
		LastName:      last,
		Email:         first + "@example.com",
		PhonePrimary:  "506-453-2345",
		Address:       "12 King St",
		City:          "Fredericton",
		PostalCode:    "E3B 1A1",
		PaymentMethod: models.PaymentMethodCash,
	}
}
