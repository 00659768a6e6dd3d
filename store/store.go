package store

import (
	"context"
	"errors"
	"time"

	"github.com/kantinku/kantinku-api/models"
)

var (
	// ErrNotFound dikembalikan ketika baris yang diminta tidak ada.
	ErrNotFound = errors.New("record not found")
	// ErrPreconditionFailed dikembalikan conditional update ketika status
	// tersimpan tidak sama dengan status yang diharapkan (lost update terdeteksi).
	ErrPreconditionFailed = errors.New("stored status does not match expected status")
)

// Store adalah boundary ke persistent storage: orders, order items,
// product ownership, payments, carts, dan FCM token.
//
// Semua mutasi status dilakukan sebagai conditional update berbasis status
// yang diharapkan sehingga dua penulis yang berlomba terdeteksi, bukan
// saling menimpa.
type Store interface {
	// Transaction menjalankan fn dalam satu transaksi database; Store yang
	// diterima fn beroperasi di dalam transaksi tersebut.
	Transaction(ctx context.Context, fn func(Store) error) error

	// Orders
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	OrderByID(ctx context.Context, id uint) (*models.Order, error)
	OrderWithItems(ctx context.Context, id uint) (*models.Order, error)
	OrdersByUser(ctx context.Context, userID uint) ([]models.Order, error)
	StaffInbox(ctx context.Context, staffID uint, statuses []models.OrderStatus) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uint, from, to models.OrderStatus) error
	SetOrderConfirmed(ctx context.Context, orderID uint, total int64, redirectURL *string) error
	CancelOrder(ctx context.Context, orderID uint, from models.OrderStatus) error
	DeleteOrder(ctx context.Context, orderID uint) error
	CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int64, error)

	// Order items
	ItemsByOrder(ctx context.Context, orderID uint) ([]models.OrderItem, error)
	ItemByID(ctx context.Context, id uint) (*models.OrderItem, error)
	UpdateItemStatus(ctx context.Context, itemID uint, from, to models.ItemStatus) error
	UpdateItemsStatus(ctx context.Context, itemIDs []uint, from, to models.ItemStatus) error
	CascadeItemStatus(ctx context.Context, orderID uint, from, to models.ItemStatus) (int64, error)

	// Product ownership (read-only bagi koordinator)
	OwnersByProducts(ctx context.Context, productIDs []uint) (map[uint][]uint, error)

	// Payments
	CreatePayment(ctx context.Context, p *models.Payment) error
	PaymentByOrder(ctx context.Context, orderID uint) (*models.Payment, error)
	MarkPaymentSettled(ctx context.Context, orderID uint, txnID, gatewayStatus string, settledAt time.Time) error
	MarkPaymentStatus(ctx context.Context, orderID uint, status, txnID, gatewayStatus string) error
	StalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error)

	// Carts
	CartByUser(ctx context.Context, userID uint) ([]models.CartItem, error)
	ClearCart(ctx context.Context, userID uint) error

	// Users (read-only bagi koordinator)
	UserByID(ctx context.Context, id uint) (*models.User, error)

	// FCM tokens
	TokensByUsers(ctx context.Context, userIDs []uint) ([]models.FCMToken, error)
	DeleteTokenValue(ctx context.Context, token string) error

	// Notification audit rows
	SaveNotification(ctx context.Context, n *models.Notification) error
}
