package db

import (
	"fmt"
	"log"
	"time"

	"certverify/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Init opens the Postgres connection and migrates the schema. The DSN comes
// from configuration (DATABASE_URL).
func Init(dsn string) {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("connection to db failed:", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("Failed to get db from GORM: ", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	fmt.Println("(SUCCESS): connected to database successfully")

	if err := Migrate(DB); err != nil {
		log.Fatal("AutoMigration failed: ", err)
	}
}

// Migrate creates or updates the tables the verification core reads and the
// append-only attempt log it writes.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.Institution{},
		&models.Certificate{},
		&models.StudentRecord{},
		&models.VerificationLog{},
	)
}
