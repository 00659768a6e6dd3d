package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantinku/kantinku-api/models"
)

func TestOrderTransitions(t *testing.T) {
	cases := []struct {
		from  models.OrderStatus
		event OrderEvent
		want  models.OrderStatus
	}{
		{models.OrderAwaitingConfirmation, OrderEventAllConfirmed, models.OrderAwaitingPayment},
		{models.OrderAwaitingConfirmation, OrderEventStaffRejected, models.OrderCancelled},
		{models.OrderAwaitingConfirmation, OrderEventAdminCancel, models.OrderCancelled},
		{models.OrderAwaitingPayment, OrderEventPaymentSettled, models.OrderPaid},
		{models.OrderAwaitingPayment, OrderEventPaymentFailed, models.OrderCancelled},
		{models.OrderAwaitingPayment, OrderEventAdminCancel, models.OrderCancelled},
		{models.OrderPaid, OrderEventItemsAdvanced, models.OrderCooking},
		{models.OrderCooking, OrderEventItemsAdvanced, models.OrderReadyForPickup},
		{models.OrderReadyForPickup, OrderEventItemsAdvanced, models.OrderCompleted},
	}
	for _, c := range cases {
		got, err := OrderTransition(c.from, c.event)
		require.NoError(t, err, "%s + %s", c.from, c.event)
		assert.Equal(t, c.want, got)
	}
}

func TestOrderTransitionRejectsUnknown(t *testing.T) {
	invalid := []struct {
		from  models.OrderStatus
		event OrderEvent
	}{
		{models.OrderAwaitingConfirmation, OrderEventPaymentSettled},
		{models.OrderPaid, OrderEventPaymentSettled},
		{models.OrderPaid, OrderEventAdminCancel},
		{models.OrderCancelled, OrderEventPaymentSettled},
		{models.OrderCompleted, OrderEventItemsAdvanced},
	}
	for _, c := range invalid {
		_, err := OrderTransition(c.from, c.event)
		var ite *InvalidTransitionError
		require.ErrorAs(t, err, &ite, "%s + %s", c.from, c.event)
		assert.Equal(t, c.from.String(), ite.From)
	}
}

func TestItemTransitions(t *testing.T) {
	got, err := ItemTransition(models.ItemAwaitingConfirmation, ItemEventAccept)
	require.NoError(t, err)
	assert.Equal(t, models.ItemConfirmed, got)

	got, err = ItemTransition(models.ItemAwaitingConfirmation, ItemEventReject)
	require.NoError(t, err)
	assert.Equal(t, models.ItemRejected, got)

	// Rejected adalah terminal.
	_, err = ItemTransition(models.ItemRejected, ItemEventPaymentSettled)
	assert.Error(t, err)

	// Jalur fulfillment lengkap.
	path := []struct {
		event ItemEvent
		want  models.ItemStatus
	}{
		{ItemEventPaymentSettled, models.ItemPaid},
		{ItemEventStartCooking, models.ItemCooking},
		{ItemEventMarkReady, models.ItemReadyForPickup},
		{ItemEventComplete, models.ItemCompleted},
	}
	cur := models.ItemConfirmed
	for _, p := range path {
		cur, err = ItemTransition(cur, p.event)
		require.NoError(t, err)
		assert.Equal(t, p.want, cur)
	}

	// Tidak boleh melompat.
	_, err = ItemTransition(models.ItemPaid, ItemEventMarkReady)
	assert.Error(t, err)
}

func TestDeriveOrderStatusWeakestItem(t *testing.T) {
	items := []models.OrderItem{
		{Status: models.ItemCooking},
		{Status: models.ItemPaid},
	}
	// Item terlemah masih paid: order belum boleh maju.
	assert.Equal(t, models.OrderPaid, DeriveOrderStatus(models.OrderPaid, items))

	items[1].Status = models.ItemCooking
	assert.Equal(t, models.OrderCooking, DeriveOrderStatus(models.OrderPaid, items))

	items[0].Status = models.ItemCompleted
	items[1].Status = models.ItemCompleted
	assert.Equal(t, models.OrderCompleted, DeriveOrderStatus(models.OrderCooking, items))
}

func TestDeriveOrderStatusIsMonotonic(t *testing.T) {
	// Status order tidak pernah mundur meski item "terlihat" lebih lemah.
	items := []models.OrderItem{{Status: models.ItemPaid}}
	assert.Equal(t, models.OrderCooking, DeriveOrderStatus(models.OrderCooking, items))
}

func TestDeriveOrderStatusOnlyAfterPaid(t *testing.T) {
	// Sebelum paid, protokol konfirmasi yang mengatur status order.
	items := []models.OrderItem{{Status: models.ItemConfirmed}}
	assert.Equal(t, models.OrderAwaitingConfirmation,
		DeriveOrderStatus(models.OrderAwaitingConfirmation, items))
	assert.Equal(t, models.OrderAwaitingPayment,
		DeriveOrderStatus(models.OrderAwaitingPayment, items))
}

func TestDeriveOrderStatusSkipsRejectedItems(t *testing.T) {
	items := []models.OrderItem{
		{Status: models.ItemCompleted},
		{Status: models.ItemRejected},
	}
	assert.Equal(t, models.OrderCompleted, DeriveOrderStatus(models.OrderPaid, items))
}
