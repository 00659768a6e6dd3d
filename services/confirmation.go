package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kantinku/kantinku-api/cache"
	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

// Outcome hasil satu keputusan konfirmasi.
const (
	OutcomePartial   = "partial"
	OutcomeConfirmed = "confirmed"
	OutcomeCancelled = "cancelled"
)

// DecisionResult dikembalikan ke controller setelah keputusan diterapkan.
type DecisionResult struct {
	Outcome     string         `json:"outcome"`
	Order       *models.Order  `json:"order"`
	RedirectURL string         `json:"redirect_url,omitempty"`
	SnapToken   string         `json:"snap_token,omitempty"`
}

// ConfirmationAggregator menjalankan protokol konfirmasi unanimitas: setiap
// staff pemilik produk dalam order memutuskan konfirmasi/tolak untuk
// item-itemnya; satu penolakan membatalkan seluruh order, dan order lanjut ke
// pembayaran hanya setelah seluruh item dikonfirmasi.
//
// Aggregator tidak memegang state in-memory: agregasi dibaca ulang dari store
// setiap keputusan, sehingga dua staff yang memutuskan bersamaan diserialkan
// oleh conditional update di store, bukan oleh lock proses.
type ConfirmationAggregator struct {
	store    store.Store
	gateway  PaymentGateway
	pricing  PricingPolicy
	notifier *NotificationDispatcher
	cache    *cache.Cache
}

func NewConfirmationAggregator(st store.Store, gw PaymentGateway, pricing PricingPolicy, notifier *NotificationDispatcher, c *cache.Cache) *ConfirmationAggregator {
	return &ConfirmationAggregator{store: st, gateway: gw, pricing: pricing, notifier: notifier, cache: c}
}

// Decide menerapkan satu keputusan staff atas seluruh item miliknya yang
// masih menunggu dalam order. Keputusan bersifat sekali jalan: keputusan
// kedua untuk item yang sama ditolak dengan ErrAlreadyDecided.
func (a *ConfirmationAggregator) Decide(ctx context.Context, orderID, staffID uint, accept bool) (*DecisionResult, error) {
	order, err := a.store.OrderWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &UpstreamError{Op: "load order", Err: err}
	}
	if order.Status != models.OrderAwaitingConfirmation {
		event := OrderEventAllConfirmed
		if !accept {
			event = OrderEventStaffRejected
		}
		return nil, &InvalidTransitionError{From: order.Status.String(), Event: string(event)}
	}

	var mine, undecided []models.OrderItem
	for _, it := range order.Items {
		if it.StaffID != staffID {
			continue
		}
		mine = append(mine, it)
		if !it.Status.Decided() {
			undecided = append(undecided, it)
		}
	}
	if len(mine) == 0 {
		return nil, ErrForbidden
	}
	if len(undecided) == 0 {
		// Keputusan sudah pernah diterapkan. Satu pengecualian: bila semua
		// item order sudah confirmed tapi order masih menggantung di
		// awaiting_confirmation (pembuatan payment intent sebelumnya gagal),
		// accept ulang boleh mengulang finalisasi.
		if accept && allConfirmed(order.Items) {
			return a.finalize(ctx, order)
		}
		return nil, ErrAlreadyDecided
	}

	target := models.ItemConfirmed
	if !accept {
		target = models.ItemRejected
	}
	ids := make([]uint, 0, len(undecided))
	for _, it := range undecided {
		ids = append(ids, it.ID)
	}
	if err := a.store.UpdateItemsStatus(ctx, ids, models.ItemAwaitingConfirmation, target); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return nil, ErrAlreadyDecided
		}
		return nil, &UpstreamError{Op: "apply decision", Err: err}
	}
	a.cache.InvalidateOrder(ctx, orderID)

	if !accept {
		return a.cancelOnReject(ctx, order, staffID)
	}

	// Baca ulang agregat setelah keputusan diterapkan; keputusan staff lain
	// bisa mendarat di antara dua langkah.
	items, err := a.store.ItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, &UpstreamError{Op: "reload items", Err: err}
	}
	order.Items = items

	if anyRejected(items) {
		// Penolakan staff lain menang; jalur reject-nya yang membatalkan order.
		return &DecisionResult{Outcome: OutcomeCancelled, Order: order}, nil
	}
	if !allConfirmed(items) {
		a.notifier.Notify(ctx, order.UserID,
			ws.OrderPartialConfirmation(orderID, "sebagian penjual sudah mengonfirmasi pesananmu"),
			"Pesanan sedang dikonfirmasi",
			fmt.Sprintf("Sebagian item pesanan #%d sudah dikonfirmasi penjual", orderID))
		return &DecisionResult{Outcome: OutcomePartial, Order: order}, nil
	}
	return a.finalize(ctx, order)
}

// cancelOnReject membatalkan seluruh order setelah satu penolakan. Status
// item yang sudah diputuskan staff lain dibiarkan apa adanya sebagai jejak
// keputusan; hanya status order dan total yang berubah.
func (a *ConfirmationAggregator) cancelOnReject(ctx context.Context, order *models.Order, staffID uint) (*DecisionResult, error) {
	if _, err := OrderTransition(order.Status, OrderEventStaffRejected); err != nil {
		return nil, err
	}
	if err := a.store.CancelOrder(ctx, order.ID, models.OrderAwaitingConfirmation); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			// Penulis lain sudah memindahkan order; kalau hasilnya sama-sama
			// cancelled, keputusan ini tetap tercatat di level item.
			fresh, ferr := a.store.OrderByID(ctx, order.ID)
			if ferr == nil && fresh.Status == models.OrderCancelled {
				return &DecisionResult{Outcome: OutcomeCancelled, Order: fresh}, nil
			}
			return nil, &UpstreamError{Op: "cancel order", Err: err}
		}
		return nil, &UpstreamError{Op: "cancel order", Err: err}
	}

	order.Status = models.OrderCancelled
	order.TotalPrice = 0

	utils.OrdersCancelledTotal.WithLabelValues("staff_reject").Inc()
	a.cache.InvalidateOrder(ctx, order.ID)
	a.notifier.PublishOrderEvent(ctx, "order_cancelled", order.ID, models.OrderCancelled)

	a.notifier.Notify(ctx, order.UserID,
		ws.OrderCancelled(order.ID, "pesanan dibatalkan karena ada item yang ditolak penjual"),
		"Pesanan dibatalkan",
		fmt.Sprintf("Pesanan #%d dibatalkan karena ada item yang tidak tersedia", order.ID))

	// Staff lain yang masih memegang item menunggu ikut diberi tahu supaya
	// inbox mereka berhenti menampilkan order ini.
	var others []uint
	for _, it := range order.Items {
		if it.StaffID != staffID {
			others = append(others, it.StaffID)
		}
	}
	if len(others) > 0 {
		a.notifier.NotifyMany(ctx, others,
			ws.OrderCancelled(order.ID, "order dibatalkan oleh penjual lain"),
			"Pesanan dibatalkan",
			fmt.Sprintf("Pesanan #%d dibatalkan", order.ID))
	}

	return &DecisionResult{Outcome: OutcomeCancelled, Order: order}, nil
}

// finalize membangun payment intent dan memindahkan order ke awaiting_payment.
// Total order dihitung ulang ke gross gateway: harga jual per item (lihat
// PricingPolicy) dikali kuantitas. Snapshot UnitPrice item tidak berubah.
func (a *ConfirmationAggregator) finalize(ctx context.Context, order *models.Order) (*DecisionResult, error) {
	var (
		gross        int64
		gatewayItems []GatewayItem
	)
	for _, it := range order.Items {
		unit := it.UnitPrice
		if order.PaymentMethod == models.PaymentMethodQRIS {
			sale, err := a.pricing.SalePrice(it.UnitPrice)
			if err != nil {
				return nil, err
			}
			unit = sale
		}
		gross += unit * int64(it.Quantity)
		gatewayItems = append(gatewayItems, GatewayItem{
			ID:    strconv.FormatUint(uint64(it.ProductID), 10),
			Name:  it.Product.Name,
			Price: unit,
			Qty:   int32(it.Quantity),
		})
	}

	result := &DecisionResult{Outcome: OutcomeConfirmed, Order: order}

	var redirectURL *string
	payment := &models.Payment{
		OrderID:     order.ID,
		Method:      order.PaymentMethod,
		GrossAmount: gross,
		Status:      models.PaymentPending,
		InitiatedAt: time.Now(),
	}

	if order.PaymentMethod == models.PaymentMethodQRIS {
		ref := ExternalRef(order.ID)
		customer, err := a.store.UserByID(ctx, order.UserID)
		if err != nil {
			return nil, &UpstreamError{Op: "load customer", Err: err}
		}
		intent, err := a.gateway.CreateTransaction(ctx, ref, gross, *customer, gatewayItems)
		if err != nil {
			// Order sengaja dibiarkan awaiting_confirmation: accept ulang
			// dari staff mana pun akan mengulang finalisasi.
			return nil, err
		}
		payment.ExternalRef = ref
		payment.RedirectURL = intent.RedirectURL
		redirectURL = &intent.RedirectURL
		result.RedirectURL = intent.RedirectURL
		result.SnapToken = intent.Token
	} else {
		payment.ExternalRef = ExternalRef(order.ID)
	}

	err := a.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		return tx.SetOrderConfirmed(ctx, order.ID, gross, redirectURL)
	})
	if err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			return nil, ErrAlreadyDecided
		}
		return nil, &UpstreamError{Op: "confirm order", Err: err}
	}

	order.Status = models.OrderAwaitingPayment
	order.TotalPrice = gross
	order.RedirectURL = redirectURL

	utils.OrdersConfirmedTotal.Inc()
	a.cache.InvalidateOrder(ctx, order.ID)
	a.notifier.PublishOrderEvent(ctx, "order_confirmed", order.ID, models.OrderAwaitingPayment)
	a.notifier.Notify(ctx, order.UserID,
		ws.OrderConfirmed(order.ID, gross, result.RedirectURL),
		"Pesanan dikonfirmasi",
		fmt.Sprintf("Semua item pesanan #%d sudah dikonfirmasi, silakan bayar %s", order.ID, utils.FormatRupiah(gross)))

	return result, nil
}

// ExternalRef membangun referensi order untuk gateway: "{orderID}-{uuid8}".
// Suffix acak membuat referensi unik per percobaan pembayaran sehingga intent
// lama yang kedaluwarsa tidak bertabrakan di sisi gateway.
func ExternalRef(orderID uint) string {
	return fmt.Sprintf("%d-%s", orderID, uuid.NewString()[:8])
}

func allConfirmed(items []models.OrderItem) bool {
	for _, it := range items {
		if it.Status != models.ItemConfirmed {
			return false
		}
	}
	return len(items) > 0
}

func anyRejected(items []models.OrderItem) bool {
	for _, it := range items {
		if it.Status == models.ItemRejected {
			return true
		}
	}
	return false
}
