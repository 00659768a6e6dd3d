package services

import (
	"context"
	"errors"
	"time"

	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
)

const (
	monitorBatchSize = 50
	// Intent yang masih pending setelah ini dianggap menggantung dan
	// dicek ulang ke gateway.
	stalePendingAfter = 10 * time.Minute
)

// PaymentMonitor mem-poll payment pending yang menggantung dan
// merekonsiliasinya lewat jalur yang sama dengan callback. Jaring pengaman
// untuk callback yang hilang: tanpa monitor, order yang customer-nya sudah
// bayar tapi notifikasinya gagal terkirim akan menggantung selamanya di
// awaiting_payment.
type PaymentMonitor struct {
	store      store.Store
	gateway    PaymentGateway
	reconciler *PaymentReconciler
	interval   time.Duration
}

func NewPaymentMonitor(st store.Store, gw PaymentGateway, rec *PaymentReconciler, interval time.Duration) *PaymentMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PaymentMonitor{store: st, gateway: gw, reconciler: rec, interval: interval}
}

// Start menjalankan loop polling sampai ctx dibatalkan.
func (m *PaymentMonitor) Start(ctx context.Context) {
	go m.run(ctx)
	utils.InfoLogger.Printf("payment monitor berjalan, interval %s", m.interval)
}

func (m *PaymentMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *PaymentMonitor) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-stalePendingAfter)
	payments, err := m.store.StalePendingPayments(ctx, cutoff, monitorBatchSize)
	if err != nil {
		utils.ErrorLogger.Printf("query stale payments gagal: %v", err)
		return
	}
	if len(payments) == 0 {
		return
	}
	utils.InfoLogger.Printf("memeriksa %d payment pending yang menggantung", len(payments))

	for _, p := range payments {
		rawStatus, err := m.gateway.TransactionStatus(ctx, p.ExternalRef)
		if err != nil {
			// Transient; sweep berikutnya mengambil payment yang sama lagi.
			utils.ErrorLogger.Printf("cek status payment order %d gagal: %v", p.OrderID, err)
			continue
		}

		err = m.reconciler.ApplyGatewayStatus(ctx, p.OrderID, p.ExternalRef, p.TransactionID, rawStatus)
		switch {
		case err == nil, errors.Is(err, ErrDuplicateCallback):
			// Selesai atau sudah diproses jalur lain.
		default:
			utils.ErrorLogger.Printf("rekonsiliasi payment order %d (status %q) gagal: %v", p.OrderID, rawStatus, err)
		}
	}
}
