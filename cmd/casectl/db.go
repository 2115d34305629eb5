package main

import (
	"fmt"

	"github.com/localnerve/casefile/internal/config"
	"github.com/localnerve/casefile/internal/database"
	"gorm.io/gorm"
)

// openDatabase connects with the server's environment configuration and migrates the schema
func openDatabase() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("migrating: %w", err)
	}
	return db, nil
}
