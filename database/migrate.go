package database

import (
	"gorm.io/gorm"

	"github.com/kantinku/kantinku-api/models"
)

// Migrate menjalankan AutoMigrate untuk seluruh model aplikasi.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.FCMToken{},
		&models.Category{},
		&models.Product{},
		&models.ProductOwner{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Notification{},
	)
}
