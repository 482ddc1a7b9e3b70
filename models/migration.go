package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates or alters the tables this service owns in the client
// database. WordPress tables are never migrated here.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Client{},
		&IgnoreRule{},
		&AuditLog{},
		&StaffMember{},
	)
}
