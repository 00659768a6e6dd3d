package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantinku/kantinku-api/models"
)

// backdatePayment menggeser initiated_at ke masa lalu supaya payment masuk
// kriteria sweep.
func backdatePayment(t *testing.T, env *testEnv, paymentID uint, age time.Duration) {
	t.Helper()
	require.NoError(t, env.db.Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Update("initiated_at", time.Now().Add(-age)).Error)
}

func TestSweepReconcilesStaleQRISPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, payment := seedPaidIntent(t, env, models.PaymentMethodQRIS)
	backdatePayment(t, env, payment.ID, time.Hour)
	env.gateway.statusByRef[payment.ExternalRef] = "settlement"

	monitor := NewPaymentMonitor(env.store, env.gateway, env.reconciler(), time.Minute)
	monitor.sweep(ctx)

	got := env.reloadOrder(t, order.ID)
	assert.Equal(t, models.OrderPaid, got.Status)
	assert.Equal(t, 1, env.gateway.statusCalls)
}

// Payment cash tidak punya transaksi di gateway; sweep tidak boleh
// memungutnya, apalagi mem-poll statusnya berulang-ulang.
func TestSweepIgnoresCashPayments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, payment := seedPaidIntent(t, env, models.PaymentMethodCash)
	backdatePayment(t, env, payment.ID, time.Hour)

	monitor := NewPaymentMonitor(env.store, env.gateway, env.reconciler(), time.Minute)
	monitor.sweep(ctx)
	monitor.sweep(ctx)

	assert.Equal(t, 0, env.gateway.statusCalls, "payment cash dipoll ke gateway")
	got := env.reloadOrder(t, order.ID)
	assert.Equal(t, models.OrderAwaitingPayment, got.Status)

	p, err := env.store.PaymentByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.Status)
}
