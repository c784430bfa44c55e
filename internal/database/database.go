package database

import (
	"fmt"

	"github.com/wildatlas/backend/internal/config"
	"github.com/wildatlas/backend/internal/models"
	"github.com/wildatlas/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig, admin config.AdminConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdminUser(db, admin); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Animal{},
		&models.AuditLog{},
	)
}

func seedAdminUser(db *gorm.DB, admin config.AdminConfig) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(admin.SeedPassword)
	if err != nil {
		return err
	}

	seeded := models.User{
		Name:         admin.SeedName,
		Email:        admin.SeedEmail,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
	}

	return db.Create(&seeded).Error
}
