package models

import "time"

// Role user yang dikenal sistem.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	Phone     string `gorm:"type:varchar(32);unique;not null" json:"phone"`
	Password  string `gorm:"type:varchar(255);not null" json:"-"`
	Role      string `gorm:"type:varchar(20);not null" json:"role"` // customer, staff, admin
	CreatedAt time.Time
	UpdatedAt time.Time
}

type FCMToken struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    uint   `gorm:"index;not null" json:"user_id"`
	User      User   `gorm:"foreignKey:UserID" json:"-"`
	Token     string `gorm:"type:varchar(512);uniqueIndex;not null" json:"token"`
	CreatedAt time.Time
}
