package pgstore

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&userModel{}, &sessionModel{}, &predictionModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("predictions", "sessions", "users")
			},
		},
	})
	return m.Migrate()
}
