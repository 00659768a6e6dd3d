package models

import "time"

// Status internal payment record.
const (
	PaymentPending   = "pending"
	PaymentSettled   = "settled"
	PaymentCancelled = "cancelled"
)

// Payment adalah satu attempt pembayaran untuk sebuah order.
// Update harus idempotent pada (OrderID, TransactionID).
type Payment struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OrderID       uint       `gorm:"index;not null" json:"order_id"`
	Order         Order      `gorm:"foreignKey:OrderID" json:"-"`
	ExternalRef   string     `gorm:"type:varchar(64);index;not null" json:"external_ref"` // "{order_id}-{suffix}" yang dikirim ke gateway
	TransactionID string     `gorm:"type:varchar(64);index" json:"transaction_id"`        // transaction_id dari gateway, bisa placeholder awalnya
	GrossAmount   int64      `gorm:"not null" json:"gross_amount"`
	Method        string     `gorm:"type:varchar(10);not null" json:"method"`
	GatewayStatus string     `gorm:"type:varchar(32)" json:"gateway_status"` // vocabulary mentah dari gateway
	Status        string     `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	RedirectURL   string     `gorm:"type:text" json:"redirect_url"`
	InitiatedAt   time.Time  `gorm:"not null" json:"initiated_at"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `json:"user_id,omitempty"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"-"`
	Title     string    `gorm:"type:varchar(100)" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
