package models

import "time"

// Metode pembayaran yang didukung.
const (
	PaymentMethodCash = "cash"
	PaymentMethodQRIS = "qris"
)

type Order struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        uint        `gorm:"index;not null" json:"user_id"`
	User          User        `gorm:"foreignKey:UserID" json:"-"`
	Status        OrderStatus `gorm:"type:varchar(32);not null;default:'awaiting_confirmation'" json:"status"`
	TotalPrice    int64       `gorm:"not null;default:0" json:"total_price"`
	Note          string      `gorm:"type:text" json:"note"`
	PaymentMethod string      `gorm:"type:varchar(10);not null;default:'qris'" json:"payment_method"`
	RedirectURL   *string     `gorm:"type:text" json:"redirect_url,omitempty"`
	CreatedAt     time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time   `gorm:"not null" json:"updated_at"`
	Items         []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

type OrderItem struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	OrderID   uint       `gorm:"index;not null" json:"order_id"`
	Order     Order      `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ProductID uint       `gorm:"not null" json:"product_id"`
	Product   Product    `gorm:"foreignKey:ProductID" json:"product"`
	StaffID   uint       `gorm:"index;not null" json:"staff_id"`
	Quantity  int        `gorm:"not null" json:"quantity"`
	UnitPrice int64      `gorm:"not null" json:"unit_price"` // snapshot harga saat order dibuat
	Subtotal  int64      `gorm:"not null" json:"subtotal"`
	Status    ItemStatus `gorm:"type:varchar(32);not null;default:'awaiting_confirmation'" json:"status"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}
