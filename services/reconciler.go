package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kantinku/kantinku-api/cache"
	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

// CallbackPayload adalah notifikasi HTTP dari gateway pembayaran.
type CallbackPayload struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

// PaymentReconciler menerima callback gateway dan merekonsiliasinya ke state
// order. Gateway melakukan retry agresif, jadi seluruh jalur harus idempotent:
// replay settlement untuk order yang sudah paid adalah no-op yang dilaporkan
// sukses, bukan error.
type PaymentReconciler struct {
	store    store.Store
	gateway  PaymentGateway
	notifier *NotificationDispatcher
	cache    *cache.Cache
}

func NewPaymentReconciler(st store.Store, gw PaymentGateway, notifier *NotificationDispatcher, c *cache.Cache) *PaymentReconciler {
	return &PaymentReconciler{store: st, gateway: gw, notifier: notifier, cache: c}
}

// ParseExternalRef mengambil order ID dari referensi gateway "{id}-{suffix}".
// Referensi berupa integer telanjang juga diterima untuk kompatibilitas
// intent lama.
func ParseExternalRef(ref string) (uint, error) {
	head, _, _ := strings.Cut(ref, "-")
	id, err := strconv.ParseUint(head, 10, 64)
	if err != nil || id == 0 {
		return 0, &MalformedCallbackError{Reason: fmt.Sprintf("unparseable order reference %q", ref)}
	}
	return uint(id), nil
}

// mapGatewayStatus memetakan vocabulary gateway ke status internal payment.
// Satu-satunya tempat mapping ini boleh hidup.
func mapGatewayStatus(raw string) (string, error) {
	switch raw {
	case "settlement", "capture":
		return models.PaymentSettled, nil
	case "pending", "authorize":
		return models.PaymentPending, nil
	case "deny", "cancel", "expire", "failure":
		return models.PaymentCancelled, nil
	default:
		return "", &MalformedCallbackError{Reason: fmt.Sprintf("unknown transaction_status %q", raw)}
	}
}

// ProcessCallback memvalidasi lalu menerapkan satu callback. Error yang
// dikembalikan menentukan respons ke gateway: MalformedCallbackError dan
// ErrInvalidSignature dijawab client error (hentikan retry yang sia-sia),
// ErrDuplicateCallback dijawab 200, UpstreamError dijawab 5xx supaya
// gateway mencoba lagi.
func (r *PaymentReconciler) ProcessCallback(ctx context.Context, p CallbackPayload) error {
	if p.OrderID == "" || p.TransactionStatus == "" {
		return &MalformedCallbackError{Reason: "missing order_id or transaction_status"}
	}
	if !r.gateway.ValidateSignature(p.OrderID, p.StatusCode, p.GrossAmount, p.SignatureKey) {
		utils.PaymentCallbacksTotal.WithLabelValues("invalid_signature").Inc()
		return ErrInvalidSignature
	}

	orderID, err := ParseExternalRef(p.OrderID)
	if err != nil {
		utils.PaymentCallbacksTotal.WithLabelValues("malformed").Inc()
		return err
	}

	if err := r.checkGrossAmount(ctx, orderID, p.GrossAmount); err != nil {
		utils.PaymentCallbacksTotal.WithLabelValues("malformed").Inc()
		return err
	}

	return r.ApplyGatewayStatus(ctx, orderID, p.OrderID, p.TransactionID, p.TransactionStatus)
}

// checkGrossAmount membandingkan gross_amount callback dengan record payment.
// Midtrans mengirim format desimal ("10583.00"); selisih nominal berarti
// callback tidak merujuk intent yang kita buat.
func (r *PaymentReconciler) checkGrossAmount(ctx context.Context, orderID uint, raw string) error {
	if raw == "" {
		return nil
	}
	gross, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return &MalformedCallbackError{Reason: fmt.Sprintf("unparseable gross_amount %q", raw)}
	}
	payment, err := r.store.PaymentByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return &UpstreamError{Op: "load payment", Err: err}
	}
	if int64(gross) != payment.GrossAmount {
		return &MalformedCallbackError{Reason: fmt.Sprintf("gross_amount %s does not match payment record %d", raw, payment.GrossAmount)}
	}
	return nil
}

// ApplyGatewayStatus menerapkan satu status gateway ke order. Entry point
// bersama untuk callback (setelah validasi signature) dan poller status
// pembayaran yang menggantung.
func (r *PaymentReconciler) ApplyGatewayStatus(ctx context.Context, orderID uint, ref, txnID, rawStatus string) error {
	internal, err := mapGatewayStatus(rawStatus)
	if err != nil {
		utils.PaymentCallbacksTotal.WithLabelValues("malformed").Inc()
		return err
	}

	p := CallbackPayload{OrderID: ref, TransactionID: txnID, TransactionStatus: rawStatus}
	switch internal {
	case models.PaymentSettled:
		return r.applySettlement(ctx, orderID, p)
	case models.PaymentPending:
		return r.applyPending(ctx, orderID, p)
	default:
		return r.applyFailure(ctx, orderID, p)
	}
}

// applySettlement memindahkan order awaiting_payment -> paid beserta cascade
// item confirmed -> paid, menandai payment settled, dan mengosongkan cart,
// dalam satu transaksi database.
func (r *PaymentReconciler) applySettlement(ctx context.Context, orderID uint, p CallbackPayload) error {
	// Klaim Redis hanya penanda fast-path. claimed=false TIDAK dipercaya
	// sebagai bukti settlement pernah diterapkan: pemegang klaim bisa mati
	// sebelum commit, jadi alur tetap lanjut ke guard kondisional store yang
	// otoritatif. Klaim milik sendiri dilepas di setiap cabang yang tidak
	// berakhir dengan settlement tercatat.
	claimed, claimErr := r.cache.ClaimCallback(ctx, p.OrderID, p.TransactionID, 24*time.Hour)
	ownsClaim := claimErr == nil && claimed
	releaseClaim := func() {
		if ownsClaim {
			r.cache.ReleaseCallback(ctx, p.OrderID, p.TransactionID)
		}
	}

	order, err := r.store.OrderByID(ctx, orderID)
	if err != nil {
		releaseClaim()
		if errors.Is(err, store.ErrNotFound) {
			return &MalformedCallbackError{Reason: fmt.Sprintf("order %d not found", orderID)}
		}
		return &UpstreamError{Op: "load order", Err: err}
	}

	// Replay: settlement untuk order yang sudah melewati paid adalah no-op.
	if order.Status.AtLeastPaid() {
		utils.PaymentCallbacksTotal.WithLabelValues("duplicate").Inc()
		return ErrDuplicateCallback
	}

	if _, err := OrderTransition(order.Status, OrderEventPaymentSettled); err != nil {
		releaseClaim()
		utils.PaymentCallbacksTotal.WithLabelValues("rejected").Inc()
		return err
	}

	now := time.Now()
	err = r.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.MarkPaymentSettled(ctx, orderID, p.TransactionID, p.TransactionStatus, now); err != nil {
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
			// Penulis lain menyelesaikan settlement lebih dulu.
			utils.PaymentCallbacksTotal.WithLabelValues("duplicate").Inc()
			return ErrDuplicateCallback
		}
		releaseClaim()
		return &UpstreamError{Op: "apply settlement", Err: err}
	}

	utils.OrdersPaidTotal.Inc()
	utils.PaymentCallbacksTotal.WithLabelValues("settled").Inc()
	r.cache.InvalidateOrder(ctx, orderID)
	r.notifier.PublishOrderEvent(ctx, "order_paid", orderID, models.OrderPaid)

	r.notifier.Notify(ctx, order.UserID,
		ws.OrderStatusUpdate(orderID, models.OrderPaid.String(), order.TotalPrice),
		"Pembayaran diterima",
		fmt.Sprintf("Pembayaran pesanan #%d sudah diterima, pesanan sedang disiapkan", orderID))

	// Staff pemilik item diberi tahu untuk mulai memasak; ID diambil dari
	// item pasca-cascade, dedup oleh dispatcher.
	items, ierr := r.store.ItemsByOrder(ctx, orderID)
	if ierr != nil {
		utils.ErrorLogger.Printf("ambil items order %d untuk notifikasi staff gagal: %v", orderID, ierr)
		return nil
	}
	staffIDs := make([]uint, 0, len(items))
	for _, it := range items {
		if it.Status == models.ItemPaid {
			staffIDs = append(staffIDs, it.StaffID)
		}
	}
	r.notifier.NotifyMany(ctx, staffIDs,
		ws.OrderStatusUpdate(orderID, models.OrderPaid.String(), order.TotalPrice),
		"Pesanan dibayar",
		fmt.Sprintf("Pesanan #%d sudah dibayar, silakan mulai disiapkan", orderID))

	return nil
}

// applyPending hanya memperbarui record payment; status order tidak bergerak.
func (r *PaymentReconciler) applyPending(ctx context.Context, orderID uint, p CallbackPayload) error {
	err := r.store.MarkPaymentStatus(ctx, orderID, models.PaymentPending, p.TransactionID, p.TransactionStatus)
	if err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrPreconditionFailed) {
		return &UpstreamError{Op: "mark payment pending", Err: err}
	}
	utils.PaymentCallbacksTotal.WithLabelValues("pending").Inc()
	return nil
}

// applyFailure menandai payment gagal dan membatalkan order bila masih
// menunggu pembayaran. Order yang sudah paid tidak tersentuh: settlement
// yang sudah diterapkan menang atas callback failure yang datang terlambat.
func (r *PaymentReconciler) applyFailure(ctx context.Context, orderID uint, p CallbackPayload) error {
	err := r.store.MarkPaymentStatus(ctx, orderID, models.PaymentCancelled, p.TransactionID, p.TransactionStatus)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		if errors.Is(err, store.ErrPreconditionFailed) {
			// Payment sudah settled; failure yang terlambat diabaikan.
			utils.PaymentCallbacksTotal.WithLabelValues("stale_failure").Inc()
			return nil
		}
		return &UpstreamError{Op: "mark payment cancelled", Err: err}
	}

	if err := r.store.CancelOrder(ctx, orderID, models.OrderAwaitingPayment); err != nil {
		if errors.Is(err, store.ErrPreconditionFailed) {
			// Order sudah bergerak (terbayar atau sudah cancelled); biarkan.
			utils.PaymentCallbacksTotal.WithLabelValues("stale_failure").Inc()
			return nil
		}
		return &UpstreamError{Op: "cancel unpaid order", Err: err}
	}

	utils.OrdersCancelledTotal.WithLabelValues("payment_failed").Inc()
	utils.PaymentCallbacksTotal.WithLabelValues("failed").Inc()
	r.cache.InvalidateOrder(ctx, orderID)
	r.notifier.PublishOrderEvent(ctx, "order_cancelled", orderID, models.OrderCancelled)

	if order, oerr := r.store.OrderByID(ctx, orderID); oerr == nil {
		r.notifier.Notify(ctx, order.UserID,
			ws.OrderCancelled(orderID, "pembayaran gagal atau kedaluwarsa"),
			"Pembayaran gagal",
			fmt.Sprintf("Pembayaran pesanan #%d gagal atau kedaluwarsa, pesanan dibatalkan", orderID))
	}
	return nil
}
