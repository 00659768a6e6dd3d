package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kantinku/kantinku-api/models"
)

// GormStore adalah implementasi Store di atas GORM (MySQL di production,
// sqlite in-memory di test).
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// ---- Orders ----

func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		order.Items = items
		return nil
	})
}

func (s *GormStore) OrderByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *GormStore) OrderWithItems(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").Preload("Items.Product").First(&order, id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (s *GormStore) OrdersByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// StaffInbox mengambil order yang mengandung item milik staff tersebut.
// Item yang di-preload TIDAK difilter per staff; pemfilteran view ada di controller.
func (s *GormStore) StaffInbox(ctx context.Context, staffID uint, statuses []models.OrderStatus) ([]models.Order, error) {
	var orders []models.Order
	q := s.db.WithContext(ctx).Preload("Items").Preload("Items.Product").
		Where("id IN (?)", s.db.Model(&models.OrderItem{}).Select("order_id").Where("staff_id = ?", staffID))
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("created_at ASC").Find(&orders).Error
	return orders, err
}

func (s *GormStore) UpdateOrderStatus(ctx context.Context, orderID uint, from, to models.OrderStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// SetOrderConfirmed memindahkan order ke awaiting_payment sambil menulis total
// hasil pricing dan redirect URL gateway dalam satu update berkondisi.
func (s *GormStore) SetOrderConfirmed(ctx context.Context, orderID uint, total int64, redirectURL *string) error {
	updates := map[string]interface{}{
		"status":      models.OrderAwaitingPayment,
		"total_price": total,
		"updated_at":  time.Now(),
	}
	if redirectURL != nil {
		updates["redirect_url"] = *redirectURL
	}
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderAwaitingConfirmation).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// CancelOrder membatalkan order dari status `from` dan menolkan total.
func (s *GormStore) CancelOrder(ctx context.Context, orderID uint, from models.OrderStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{
			"status":      models.OrderCancelled,
			"total_price": 0,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

func (s *GormStore) DeleteOrder(ctx context.Context, orderID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Order{}, orderID).Error
	})
}

func (s *GormStore) CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int64, error) {
	type row struct {
		Status models.OrderStatus
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.OrderStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// ---- Order items ----

func (s *GormStore) ItemsByOrder(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error
	return items, err
}

func (s *GormStore) ItemByID(ctx context.Context, id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *GormStore) UpdateItemStatus(ctx context.Context, itemID uint, from, to models.ItemStatus) error {
	res := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id = ? AND status = ?", itemID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// UpdateItemsStatus menerapkan satu keputusan ke seluruh item milik satu staff.
// Seluruh item harus masih berstatus `from`; jika tidak, tidak ada yang diubah.
func (s *GormStore) UpdateItemsStatus(ctx context.Context, itemIDs []uint, from, to models.ItemStatus) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OrderItem{}).
			Where("id IN ? AND status = ?", itemIDs, from).
			Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(itemIDs)) {
			return ErrPreconditionFailed
		}
		return nil
	})
}

func (s *GormStore) CascadeItemStatus(ctx context.Context, orderID uint, from, to models.ItemStatus) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// ---- Product ownership ----

func (s *GormStore) OwnersByProducts(ctx context.Context, productIDs []uint) (map[uint][]uint, error) {
	if len(productIDs) == 0 {
		return map[uint][]uint{}, nil
	}
	var rows []models.ProductOwner
	if err := s.db.WithContext(ctx).Where("product_id IN ?", productIDs).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint][]uint)
	for _, r := range rows {
		out[r.ProductID] = append(out[r.ProductID], r.UserID)
	}
	return out, nil
}

// ---- Payments ----

func (s *GormStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) PaymentByOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).
		Order("initiated_at DESC").First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// MarkPaymentSettled menandai payment settled, idempotent: baris yang sudah
// settled tidak tersentuh dan dilaporkan sebagai ErrPreconditionFailed.
func (s *GormStore) MarkPaymentSettled(ctx context.Context, orderID uint, txnID, gatewayStatus string, settledAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status <> ?", orderID, models.PaymentSettled).
		Updates(map[string]interface{}{
			"status":         models.PaymentSettled,
			"transaction_id": txnID,
			"gateway_status": gatewayStatus,
			"settled_at":     settledAt,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

func (s *GormStore) MarkPaymentStatus(ctx context.Context, orderID uint, status, txnID, gatewayStatus string) error {
	updates := map[string]interface{}{
		"status":         status,
		"gateway_status": gatewayStatus,
		"updated_at":     time.Now(),
	}
	if txnID != "" {
		updates["transaction_id"] = txnID
	}
	res := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status <> ?", orderID, models.PaymentSettled).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPreconditionFailed
	}
	return nil
}

// StalePendingPayments mengembalikan payment QRIS pending yang sudah
// menggantung lebih lama dari olderThan, untuk dipoll ulang statusnya ke
// gateway. Payment cash tidak ikut: gateway tidak tahu apa-apa soal cash,
// settlement-nya dicatat manual lewat SettleCash.
func (s *GormStore) StalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("status = ? AND method = ? AND initiated_at < ?",
			models.PaymentPending, models.PaymentMethodQRIS, olderThan).
		Order("initiated_at ASC").Limit(limit).Find(&payments).Error
	return payments, err
}

// ---- Carts ----

func (s *GormStore) CartByUser(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).Preload("Product").Where("user_id = ?", userID).Find(&items).Error
	return items, err
}

func (s *GormStore) ClearCart(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

// ---- Users ----

func (s *GormStore) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ---- FCM tokens ----

func (s *GormStore) TokensByUsers(ctx context.Context, userIDs []uint) ([]models.FCMToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var tokens []models.FCMToken
	err := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&tokens).Error
	return tokens, err
}

func (s *GormStore) DeleteTokenValue(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.FCMToken{}).Error
}

// ---- Notifications ----

func (s *GormStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}
