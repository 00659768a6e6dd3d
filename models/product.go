package models

import "time"

type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(100);unique;not null" json:"name"`
}

type Product struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	Name       string   `gorm:"type:varchar(255);not null" json:"name"`
	Price      int64    `gorm:"not null" json:"price"` // rupiah, minor units
	CategoryID uint     `gorm:"index;not null" json:"category_id"`
	Category   Category `gorm:"foreignKey:CategoryID" json:"-"`
	ImageURL   *string  `gorm:"type:text" json:"image_url,omitempty"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProductOwner adalah pivot staff <-> product. Read-only bagi koordinator order:
// dipakai untuk mempartisi item order per staff pada protokol konfirmasi.
type ProductOwner struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	UserID    uint    `gorm:"index:idx_owner_user_product,unique;not null" json:"user_id"`
	ProductID uint    `gorm:"index:idx_owner_user_product,unique;not null" json:"product_id"`
	User      User    `gorm:"foreignKey:UserID" json:"-"`
	Product   Product `gorm:"foreignKey:ProductID" json:"-"`
}

type CartItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	UserID    uint    `gorm:"index;not null" json:"user_id"`
	ProductID uint    `gorm:"not null" json:"product_id"`
	Product   Product `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time
}
