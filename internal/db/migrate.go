package db

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"todoapp/internal/model"
)

// Migrate creates the users and tasks tables. With reset set, both tables are
// dropped first.
func Migrate(db *gorm.DB, reset bool, log *logrus.Logger) error {
	tables := []interface{}{&model.Task{}, &model.User{}}

	if reset {
		log.Warn("RESET_DB=true detected, dropping all tables")
		for _, table := range tables {
			if err := db.Migrator().DropTable(table); err != nil {
				log.WithError(err).Warn("failed to drop table (may not exist)")
			}
		}
	}

	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
