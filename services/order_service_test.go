package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantinku/kantinku-api/models"
)

func TestCheckoutBuildsOrderFromCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customer := env.seedUser(t, "budi", models.RoleCustomer)
	staffA := env.seedUser(t, "warung-a", models.RoleStaff)
	staffB := env.seedUser(t, "warung-b", models.RoleStaff)
	nasi := env.seedProduct(t, "nasi", 15000, staffA.ID)
	es := env.seedProduct(t, "es teh", 5000, staffB.ID)

	require.NoError(t, env.db.Create(&models.CartItem{UserID: customer.ID, ProductID: nasi.ID, Quantity: 1}).Error)
	require.NoError(t, env.db.Create(&models.CartItem{UserID: customer.ID, ProductID: es.ID, Quantity: 3}).Error)

	order, err := env.orders().Checkout(ctx, customer.ID, "pedas ya", models.PaymentMethodQRIS)
	require.NoError(t, err)

	assert.Equal(t, models.OrderAwaitingConfirmation, order.Status)
	assert.Equal(t, int64(15000+3*5000), order.TotalPrice)
	assert.Equal(t, "pedas ya", order.Note)
	require.Len(t, order.Items, 2)

	byProduct := map[uint]models.OrderItem{}
	for _, it := range order.Items {
		byProduct[it.ProductID] = it
	}
	// StaffID di-snapshot dari pemilik produk saat checkout.
	assert.Equal(t, staffA.ID, byProduct[nasi.ID].StaffID)
	assert.Equal(t, staffB.ID, byProduct[es.ID].StaffID)
	assert.Equal(t, int64(15000), byProduct[nasi.ID].UnitPrice)
	assert.Equal(t, models.ItemAwaitingConfirmation, byProduct[es.ID].Status)

	// Cart belum dikosongkan; itu terjadi saat settlement.
	cart, err := env.store.CartByUser(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, cart, 2)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedUser(t, "budi", models.RoleCustomer)

	_, err := env.orders().Checkout(context.Background(), customer.ID, "", models.PaymentMethodQRIS)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutUnknownPaymentMethod(t *testing.T) {
	env := newTestEnv(t)
	customer := env.seedUser(t, "budi", models.RoleCustomer)

	_, err := env.orders().Checkout(context.Background(), customer.ID, "", "gopay")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestAdvanceItemDrivesOrderDerivation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customer := env.seedUser(t, "budi", models.RoleCustomer)
	staffA := env.seedUser(t, "warung-a", models.RoleStaff)
	staffB := env.seedUser(t, "warung-b", models.RoleStaff)
	nasi := env.seedProduct(t, "nasi", 15000, staffA.ID)
	es := env.seedProduct(t, "es teh", 5000, staffB.ID)

	order := env.seedOrder(t, customer.ID, models.OrderPaid, models.PaymentMethodQRIS, []seedItem{
		{staffID: staffA.ID, product: nasi, qty: 1, status: models.ItemPaid},
		{staffID: staffB.ID, product: es, qty: 1, status: models.ItemPaid},
	})
	got := env.reloadOrder(t, order.ID)
	itemA, itemB := got.Items[0], got.Items[1]
	if itemA.StaffID != staffA.ID {
		itemA, itemB = itemB, itemA
	}

	svc := env.orders()

	// Satu item cooking, satunya masih paid: order tetap paid.
	_, o, err := svc.AdvanceItem(ctx, itemA.ID, staffA.ID, models.RoleStaff, models.ItemCooking)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, o.Status)

	// Kedua item cooking: order ikut cooking.
	_, o, err = svc.AdvanceItem(ctx, itemB.ID, staffB.ID, models.RoleStaff, models.ItemCooking)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCooking, o.Status)

	// Jalan terus sampai completed.
	_, _, err = svc.AdvanceItem(ctx, itemA.ID, staffA.ID, models.RoleStaff, models.ItemReadyForPickup)
	require.NoError(t, err)
	_, o, err = svc.AdvanceItem(ctx, itemB.ID, staffB.ID, models.RoleStaff, models.ItemReadyForPickup)
	require.NoError(t, err)
	assert.Equal(t, models.OrderReadyForPickup, o.Status)

	_, _, err = svc.AdvanceItem(ctx, itemA.ID, staffA.ID, models.RoleStaff, models.ItemCompleted)
	require.NoError(t, err)
	_, o, err = svc.AdvanceItem(ctx, itemB.ID, staffB.ID, models.RoleStaff, models.ItemCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, o.Status)
}

func TestAdvanceItemOwnershipAndTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customer := env.seedUser(t, "budi", models.RoleCustomer)
	staffA := env.seedUser(t, "warung-a", models.RoleStaff)
	other := env.seedUser(t, "warung-x", models.RoleStaff)
	nasi := env.seedProduct(t, "nasi", 15000, staffA.ID)

	order := env.seedOrder(t, customer.ID, models.OrderPaid, models.PaymentMethodQRIS, []seedItem{
		{staffID: staffA.ID, product: nasi, qty: 1, status: models.ItemPaid},
	})
	itemID := env.reloadOrder(t, order.ID).Items[0].ID

	svc := env.orders()

	// Bukan pemilik item.
	_, _, err := svc.AdvanceItem(ctx, itemID, other.ID, models.RoleStaff, models.ItemCooking)
	assert.ErrorIs(t, err, ErrForbidden)

	// Melompati cooking langsung ke ready: ditolak tabel transisi.
	_, _, err = svc.AdvanceItem(ctx, itemID, staffA.ID, models.RoleStaff, models.ItemReadyForPickup)
	var ite *InvalidTransitionError
	assert.ErrorAs(t, err, &ite)

	// Status di luar jalur fulfillment.
	_, _, err = svc.AdvanceItem(ctx, itemID, staffA.ID, models.RoleStaff, models.ItemConfirmed)
	assert.ErrorAs(t, err, &ite)
}

func TestDeleteOrderOnlyBeforePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customer := env.seedUser(t, "budi", models.RoleCustomer)
	staffA := env.seedUser(t, "warung-a", models.RoleStaff)
	nasi := env.seedProduct(t, "nasi", 15000, staffA.ID)

	unpaid := env.seedOrder(t, customer.ID, models.OrderAwaitingConfirmation, models.PaymentMethodQRIS, []seedItem{
		{staffID: staffA.ID, product: nasi, qty: 1, status: models.ItemAwaitingConfirmation},
	})
	paid := env.seedOrder(t, customer.ID, models.OrderPaid, models.PaymentMethodQRIS, []seedItem{
		{staffID: staffA.ID, product: nasi, qty: 1, status: models.ItemPaid},
	})

	svc := env.orders()

	// Order orang lain tidak bisa dihapus.
	stranger := env.seedUser(t, "lain", models.RoleCustomer)
	assert.ErrorIs(t, svc.Delete(ctx, unpaid.ID, stranger.ID, models.RoleCustomer), ErrForbidden)

	require.NoError(t, svc.Delete(ctx, unpaid.ID, customer.ID, models.RoleCustomer))
	_, err := env.store.OrderByID(ctx, unpaid.ID)
	assert.Error(t, err)

	var ite *InvalidTransitionError
	err = svc.Delete(ctx, paid.ID, customer.ID, models.RoleCustomer)
	assert.ErrorAs(t, err, &ite)
}

func TestAdminCancelPreservesItemStatuses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customer := env.seedUser(t, "budi", models.RoleCustomer)
	staffA := env.seedUser(t, "warung-a", models.RoleStaff)
	nasi := env.seedProduct(t, "nasi", 15000, staffA.ID)

	order := env.seedOrder(t, customer.ID, models.OrderAwaitingPayment, models.PaymentMethodQRIS, []seedItem{
		{staffID: staffA.ID, product: nasi, qty: 1, status: models.ItemConfirmed},
	})

	got, err := env.orders().AdminCancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Zero(t, got.TotalPrice)

	// Item tetap confirmed sebagai jejak; jalur administratif tidak
	// menyentuh status item.
	reloaded := env.reloadOrder(t, order.ID)
	assert.Equal(t, models.ItemConfirmed, reloaded.Items[0].Status)

	// Order paid tidak bisa dibatalkan admin.
	paidOrder := env.seedOrder(t, customer.ID, models.OrderPaid, models.PaymentMethodQRIS, []seedItem{
		{staffID: staffA.ID, product: nasi, qty: 1, status: models.ItemPaid},
	})
	_, err = env.orders().AdminCancel(ctx, paidOrder.ID)
	var ite *InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
}

func TestOrderForActorAccessControl(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	customer := env.seedUser(t, "budi", models.RoleCustomer)
	stranger := env.seedUser(t, "lain", models.RoleCustomer)
	staffA := env.seedUser(t, "warung-a", models.RoleStaff)
	otherStaff := env.seedUser(t, "warung-x", models.RoleStaff)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	nasi := env.seedProduct(t, "nasi", 15000, staffA.ID)

	order := env.seedOrder(t, customer.ID, models.OrderAwaitingConfirmation, models.PaymentMethodQRIS, []seedItem{
		{staffID: staffA.ID, product: nasi, qty: 1, status: models.ItemAwaitingConfirmation},
	})

	svc := env.orders()

	_, err := svc.OrderForActor(ctx, order.ID, customer.ID, models.RoleCustomer)
	assert.NoError(t, err)
	_, err = svc.OrderForActor(ctx, order.ID, staffA.ID, models.RoleStaff)
	assert.NoError(t, err)
	_, err = svc.OrderForActor(ctx, order.ID, admin.ID, models.RoleAdmin)
	assert.NoError(t, err)

	_, err = svc.OrderForActor(ctx, order.ID, stranger.ID, models.RoleCustomer)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.OrderForActor(ctx, order.ID, otherStaff.ID, models.RoleStaff)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSettleCashMovesOrderToPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := seedPaidIntent(t, env, models.PaymentMethodCash)
	seeded := env.reloadOrder(t, order.ID)
	staffID := seeded.Items[0].StaffID

	require.NoError(t, env.db.Create(&models.CartItem{UserID: order.UserID, ProductID: seeded.Items[0].ProductID, Quantity: 1}).Error)

	got, err := env.orders().SettleCash(ctx, order.ID, staffID, models.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)

	fresh := env.reloadOrder(t, order.ID)
	assert.Equal(t, models.OrderPaid, fresh.Status)
	for _, it := range fresh.Items {
		assert.Equal(t, models.ItemPaid, it.Status)
	}

	p, err := env.store.PaymentByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentSettled, p.Status)
	require.NotNil(t, p.SettledAt)

	// Cart dikosongkan saat settlement, sama seperti jalur callback.
	cart, err := env.store.CartByUser(ctx, order.UserID)
	require.NoError(t, err)
	assert.Empty(t, cart)

	// Settle kedua: order sudah paid, bukan awaiting_payment lagi.
	_, err = env.orders().SettleCash(ctx, order.ID, staffID, models.RoleStaff)
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestSettleCashAccessControl(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := seedPaidIntent(t, env, models.PaymentMethodCash)
	stranger := env.seedUser(t, "warung-lain", models.RoleStaff)
	admin := env.seedUser(t, "admin", models.RoleAdmin)

	// Staff tanpa item di order ditolak, begitu juga customer-nya sendiri.
	_, err := env.orders().SettleCash(ctx, order.ID, stranger.ID, models.RoleStaff)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.orders().SettleCash(ctx, order.ID, order.UserID, models.RoleCustomer)
	assert.ErrorIs(t, err, ErrForbidden)

	// Admin boleh tanpa kepemilikan item.
	got, err := env.orders().SettleCash(ctx, order.ID, admin.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
}

func TestSettleCashRejectsQRISOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order, _ := seedPaidIntent(t, env, models.PaymentMethodQRIS)
	staffID := env.reloadOrder(t, order.ID).Items[0].StaffID

	_, err := env.orders().SettleCash(ctx, order.ID, staffID, models.RoleStaff)
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	got := env.reloadOrder(t, order.ID)
	assert.Equal(t, models.OrderAwaitingPayment, got.Status)
}
