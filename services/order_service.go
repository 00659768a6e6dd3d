package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kantinku/kantinku-api/cache"
	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

// Status order yang tampil di inbox staff.
var inboxStatuses = []models.OrderStatus{
	models.OrderAwaitingConfirmation,
	models.OrderPaid,
	models.OrderCooking,
	models.OrderReadyForPickup,
}

const orderCacheTTL = 30 * time.Second

// OrderService memegang operasi lifecycle order di luar konfirmasi dan
// rekonsiliasi pembayaran: checkout dari cart, pembacaan, update fulfillment
// per item, penghapusan pra-bayar, dan pembatalan administratif.
type OrderService struct {
	store    store.Store
	notifier *NotificationDispatcher
	cache    *cache.Cache
}

func NewOrderService(st store.Store, notifier *NotificationDispatcher, c *cache.Cache) *OrderService {
	return &OrderService{store: st, notifier: notifier, cache: c}
}

// Checkout membuat order baru dari isi cart customer. StaffID tiap item
// di-snapshot dari pemilik produk saat checkout sehingga perpindahan
// kepemilikan produk tidak mengubah siapa yang memutuskan konfirmasi.
// Cart tidak dikosongkan di sini; pengosongan menunggu settlement.
func (s *OrderService) Checkout(ctx context.Context, userID uint, note, paymentMethod string) (*models.Order, error) {
	if paymentMethod != models.PaymentMethodCash && paymentMethod != models.PaymentMethodQRIS {
		return nil, ErrInvalidPaymentMethod
	}

	cartItems, err := s.store.CartByUser(ctx, userID)
	if err != nil {
		return nil, &UpstreamError{Op: "load cart", Err: err}
	}
	if len(cartItems) == 0 {
		return nil, ErrEmptyCart
	}

	productIDs := make([]uint, 0, len(cartItems))
	for _, ci := range cartItems {
		productIDs = append(productIDs, ci.ProductID)
	}
	owners, err := s.store.OwnersByProducts(ctx, productIDs)
	if err != nil {
		return nil, &UpstreamError{Op: "load product owners", Err: err}
	}

	var (
		items []models.OrderItem
		total int64
	)
	for _, ci := range cartItems {
		staffIDs := owners[ci.ProductID]
		if len(staffIDs) == 0 {
			return nil, fmt.Errorf("product %d: %w", ci.ProductID, ErrProductUnavailable)
		}
		subtotal := ci.Product.Price * int64(ci.Quantity)
		total += subtotal
		items = append(items, models.OrderItem{
			ProductID: ci.ProductID,
			StaffID:   staffIDs[0],
			Quantity:  ci.Quantity,
			UnitPrice: ci.Product.Price,
			Subtotal:  subtotal,
			Status:    models.ItemAwaitingConfirmation,
		})
	}

	order := &models.Order{
		UserID:        userID,
		Status:        models.OrderAwaitingConfirmation,
		TotalPrice:    total,
		Note:          note,
		PaymentMethod: paymentMethod,
	}
	if err := s.store.CreateOrder(ctx, order, items); err != nil {
		return nil, &UpstreamError{Op: "create order", Err: err}
	}

	utils.OrdersCreatedTotal.Inc()
	s.notifier.PublishOrderEvent(ctx, "order_created", order.ID, order.Status)

	staffIDs := make([]uint, 0, len(order.Items))
	for _, it := range order.Items {
		staffIDs = append(staffIDs, it.StaffID)
	}
	s.notifier.NotifyMany(ctx, staffIDs,
		ws.NewOrder(order.ID),
		"Pesanan baru",
		fmt.Sprintf("Pesanan #%d menunggu konfirmasimu", order.ID))

	return order, nil
}

// OrderForActor mengambil detail order dengan kontrol akses: customer hanya
// ordernya sendiri, staff hanya order yang memuat itemnya, admin semua.
func (s *OrderService) OrderForActor(ctx context.Context, orderID, actorID uint, role string) (*models.Order, error) {
	var cached models.Order
	if s.cache.GetOrder(ctx, orderID, &cached) {
		if err := s.authorize(&cached, actorID, role); err != nil {
			return nil, err
		}
		return &cached, nil
	}

	order, err := s.store.OrderWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &UpstreamError{Op: "load order", Err: err}
	}
	if err := s.authorize(order, actorID, role); err != nil {
		return nil, err
	}
	s.cache.SetOrder(ctx, orderID, order, orderCacheTTL)
	return order, nil
}

func (s *OrderService) authorize(order *models.Order, actorID uint, role string) error {
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleStaff:
		for _, it := range order.Items {
			if it.StaffID == actorID {
				return nil
			}
		}
		return ErrForbidden
	default:
		if order.UserID != actorID {
			return ErrForbidden
		}
		return nil
	}
}

// OrdersForCustomer mengembalikan riwayat order milik customer, terbaru dulu.
func (s *OrderService) OrdersForCustomer(ctx context.Context, userID uint) ([]models.Order, error) {
	orders, err := s.store.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, &UpstreamError{Op: "list orders", Err: err}
	}
	return orders, nil
}

// Inbox mengembalikan order aktif yang memuat item milik staff.
func (s *OrderService) Inbox(ctx context.Context, staffID uint) ([]models.Order, error) {
	orders, err := s.store.StaffInbox(ctx, staffID, inboxStatuses)
	if err != nil {
		return nil, &UpstreamError{Op: "load staff inbox", Err: err}
	}
	return orders, nil
}

// AdvanceItem memajukan satu item di jalur fulfillment (paid -> cooking ->
// ready_for_pickup -> completed) lalu menjalankan ulang derivasi status order.
// Hanya staff pemilik item (atau admin) yang boleh.
func (s *OrderService) AdvanceItem(ctx context.Context, itemID, actorID uint, role string, target models.ItemStatus) (*models.OrderItem, *models.Order, error) {
	item, err := s.store.ItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, &UpstreamError{Op: "load item", Err: err}
	}
	if role != models.RoleAdmin && item.StaffID != actorID {
		return nil, nil, ErrForbidden
	}

	event, ok := ItemEventForTarget(target)
	if !ok {
		return nil, nil, &InvalidTransitionError{From: item.Status.String(), Event: "set " + target.String()}
	}
	next, err := ItemTransition(item.Status, event)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.UpdateItemStatus(ctx, itemID, item.Status, next); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			// Penulis lain menggeser item di antara baca dan tulis.
			fresh, ferr := s.store.ItemByID(ctx, itemID)
			if ferr == nil {
				return nil, nil, &InvalidTransitionError{From: fresh.Status.String(), Event: string(event)}
			}
			return nil, nil, &InvalidTransitionError{From: item.Status.String(), Event: string(event)}
		}
		return nil, nil, &UpstreamError{Op: "update item status", Err: err}
	}
	item.Status = next
	s.cache.InvalidateOrder(ctx, item.OrderID)

	order, err := s.store.OrderByID(ctx, item.OrderID)
	if err != nil {
		return item, nil, &UpstreamError{Op: "load order", Err: err}
	}
	items, err := s.store.ItemsByOrder(ctx, item.OrderID)
	if err != nil {
		return item, order, &UpstreamError{Op: "reload items", Err: err}
	}

	derived := DeriveOrderStatus(order.Status, items)
	if derived != order.Status {
		err := s.store.UpdateOrderStatus(ctx, order.ID, order.Status, derived)
		switch {
		case err == nil:
			order.Status = derived
		case errors.Is(err, store.ErrPreconditionFailed):
			// Penulis lain sudah memajukan order; derivasi monoton membuat
			// hasil akhirnya sama.
			if fresh, ferr := s.store.OrderByID(ctx, order.ID); ferr == nil {
				order = fresh
			}
		default:
			return item, order, &UpstreamError{Op: "advance order status", Err: err}
		}
		s.cache.InvalidateOrder(ctx, order.ID)
		s.notifier.PublishOrderEvent(ctx, "order_status_changed", order.ID, order.Status)
	}

	s.notifier.NotifyLive(order.UserID, ws.ItemStatusUpdate(order.ID, item.ID, item.Status.String()))
	switch order.Status {
	case models.OrderReadyForPickup:
		s.notifier.Notify(ctx, order.UserID,
			ws.OrderStatusUpdate(order.ID, order.Status.String(), order.TotalPrice),
			"Pesanan siap diambil",
			fmt.Sprintf("Pesanan #%d sudah siap, silakan diambil", order.ID))
	case models.OrderCompleted:
		s.notifier.Notify(ctx, order.UserID,
			ws.OrderStatusUpdate(order.ID, order.Status.String(), order.TotalPrice),
			"Pesanan selesai",
			fmt.Sprintf("Pesanan #%d selesai, terima kasih", order.ID))
	default:
		s.notifier.NotifyLive(order.UserID, ws.OrderStatusUpdate(order.ID, order.Status.String(), order.TotalPrice))
	}

	return item, order, nil
}

// Delete menghapus order yang belum dibayar. Order yang sudah paid tidak
// bisa dihapus, hanya dibatalkan lewat jalur administratif.
func (s *OrderService) Delete(ctx context.Context, orderID, actorID uint, role string) error {
	order, err := s.store.OrderWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return &UpstreamError{Op: "load order", Err: err}
	}
	if role != models.RoleAdmin && order.UserID != actorID {
		return ErrForbidden
	}
	if order.Status.AtLeastPaid() {
		return &InvalidTransitionError{From: order.Status.String(), Event: "delete"}
	}

	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return &UpstreamError{Op: "delete order", Err: err}
	}
	s.cache.InvalidateOrder(ctx, orderID)
	return nil
}

// AdminCancel membatalkan order dari awaiting_confirmation atau
// awaiting_payment. Status item dibiarkan apa adanya sebagai jejak keputusan.
func (s *OrderService) AdminCancel(ctx context.Context, orderID uint) (*models.Order, error) {
	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &UpstreamError{Op: "load order", Err: err}
	}
	if _, err := OrderTransition(order.Status, OrderEventAdminCancel); err != nil {
		return nil, err
	}
	if err := s.store.CancelOrder(ctx, orderID, order.Status); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return nil, &InvalidTransitionError{From: order.Status.String(), Event: string(OrderEventAdminCancel)}
		}
		return nil, &UpstreamError{Op: "cancel order", Err: err}
	}
	order.Status = models.OrderCancelled
	order.TotalPrice = 0

	utils.OrdersCancelledTotal.WithLabelValues("admin").Inc()
	s.cache.InvalidateOrder(ctx, orderID)
	s.notifier.PublishOrderEvent(ctx, "order_cancelled", orderID, models.OrderCancelled)
	s.notifier.Notify(ctx, order.UserID,
		ws.OrderCancelled(orderID, "pesanan dibatalkan oleh admin"),
		"Pesanan dibatalkan",
		fmt.Sprintf("Pesanan #%d dibatalkan oleh admin kantin", orderID))

	return order, nil
}

// SettleCash mencatat pembayaran tunai yang diterima di kasir: order
// awaiting_payment bergerak ke paid beserta cascade item confirmed -> paid,
// payment ditandai settled, dan cart dikosongkan, dalam satu transaksi.
// Tanpa jalur ini order cash tidak pernah lewat awaiting_payment karena
// gateway tidak tahu apa-apa soal tunai. Hanya staff yang memiliki item di
// order (atau admin) yang boleh.
func (s *OrderService) SettleCash(ctx context.Context, orderID, actorID uint, role string) (*models.Order, error) {
	order, err := s.store.OrderWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &UpstreamError{Op: "load order", Err: err}
	}
	if role != models.RoleAdmin && role != models.RoleStaff {
		return nil, ErrForbidden
	}
	if err := s.authorize(order, actorID, role); err != nil {
		return nil, err
	}
	if order.PaymentMethod != models.PaymentMethodCash {
		return nil, ErrInvalidPaymentMethod
	}
	if _, err := OrderTransition(order.Status, OrderEventPaymentSettled); err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.MarkPaymentSettled(ctx, orderID, fmt.Sprintf("cash-%d", orderID), "cash", now); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, orderID, models.OrderAwaitingPayment, models.OrderPaid); err != nil {
			return err
		}
		if _, err := tx.CascadeItemStatus(ctx, orderID, models.ItemConfirmed, models.ItemPaid); err != nil {
			return err
		}
		return tx.ClearCart(ctx, order.UserID)
	})
	if err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			// Penulis lain (kasir kedua, atau callback) sudah settle lebih dulu.
			fresh, ferr := s.store.OrderByID(ctx, orderID)
			if ferr == nil {
				return nil, &InvalidTransitionError{From: fresh.Status.String(), Event: string(OrderEventPaymentSettled)}
			}
			return nil, &InvalidTransitionError{From: order.Status.String(), Event: string(OrderEventPaymentSettled)}
		}
		return nil, &UpstreamError{Op: "settle cash payment", Err: err}
	}
	order.Status = models.OrderPaid

	utils.OrdersPaidTotal.Inc()
	s.cache.InvalidateOrder(ctx, orderID)
	s.notifier.PublishOrderEvent(ctx, "order_paid", orderID, models.OrderPaid)
	s.notifier.Notify(ctx, order.UserID,
		ws.OrderStatusUpdate(orderID, models.OrderPaid.String(), order.TotalPrice),
		"Pembayaran diterima",
		fmt.Sprintf("Pembayaran tunai pesanan #%d sudah diterima, pesanan sedang disiapkan", orderID))

	return order, nil
}

// DashboardStats menghitung jumlah order per status untuk dashboard admin.
func (s *OrderService) DashboardStats(ctx context.Context) (map[models.OrderStatus]int64, error) {
	stats, err := s.store.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, &UpstreamError{Op: "count orders", Err: err}
	}
	return stats, nil
}
