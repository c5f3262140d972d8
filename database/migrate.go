package database

import (
	"fmt"

	"pages-deployer/models"

	"gorm.io/gorm"
)

// AutoMigrate creates or extends the users and deployments tables and their indexes.
// It is non-destructive and safe to run on every start.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Deployment{}); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}
