package services

import (
	"github.com/kantinku/kantinku-api/models"
)

// Event yang menggerakkan state machine order dan item. Setiap entry point
// yang memutasi status wajib lewat tabel di bawah; transisi yang tidak
// terdaftar ditolak dengan InvalidTransitionError.
type OrderEvent string

const (
	OrderEventAllConfirmed    OrderEvent = "all_staff_confirmed"
	OrderEventStaffRejected   OrderEvent = "staff_rejected"
	OrderEventPaymentSettled  OrderEvent = "payment_settled"
	OrderEventPaymentFailed   OrderEvent = "payment_failed"
	OrderEventAdminCancel     OrderEvent = "admin_cancel"
	OrderEventItemsAdvanced   OrderEvent = "items_advanced" // dipakai derivasi, lihat DeriveOrderStatus
)

type ItemEvent string

const (
	ItemEventAccept         ItemEvent = "staff_accept"
	ItemEventReject         ItemEvent = "staff_reject"
	ItemEventPaymentSettled ItemEvent = "payment_settled"
	ItemEventStartCooking   ItemEvent = "start_cooking"
	ItemEventMarkReady      ItemEvent = "mark_ready"
	ItemEventComplete       ItemEvent = "complete"
)

// orderTransitions: current state x event -> next state.
var orderTransitions = map[models.OrderStatus]map[OrderEvent]models.OrderStatus{
	models.OrderAwaitingConfirmation: {
		OrderEventAllConfirmed:  models.OrderAwaitingPayment,
		OrderEventStaffRejected: models.OrderCancelled,
		OrderEventAdminCancel:   models.OrderCancelled,
	},
	models.OrderAwaitingPayment: {
		OrderEventPaymentSettled: models.OrderPaid,
		OrderEventPaymentFailed:  models.OrderCancelled,
		// Pembatalan dari awaiting_payment hanya lewat jalur administratif.
		OrderEventAdminCancel: models.OrderCancelled,
	},
	models.OrderPaid: {
		OrderEventItemsAdvanced: models.OrderCooking,
	},
	models.OrderCooking: {
		OrderEventItemsAdvanced: models.OrderReadyForPickup,
	},
	models.OrderReadyForPickup: {
		OrderEventItemsAdvanced: models.OrderCompleted,
	},
}

var itemTransitions = map[models.ItemStatus]map[ItemEvent]models.ItemStatus{
	models.ItemAwaitingConfirmation: {
		ItemEventAccept: models.ItemConfirmed,
		ItemEventReject: models.ItemRejected,
	},
	models.ItemConfirmed: {
		ItemEventPaymentSettled: models.ItemPaid,
	},
	models.ItemPaid: {
		ItemEventStartCooking: models.ItemCooking,
	},
	models.ItemCooking: {
		ItemEventMarkReady: models.ItemReadyForPickup,
	},
	models.ItemReadyForPickup: {
		ItemEventComplete: models.ItemCompleted,
	},
}

// OrderTransition adalah fungsi murni: tidak menyentuh store maupun notifikasi.
// Side effect dikerjakan caller setelah transisi diterima.
func OrderTransition(current models.OrderStatus, event OrderEvent) (models.OrderStatus, error) {
	if next, ok := orderTransitions[current][event]; ok {
		return next, nil
	}
	return "", &InvalidTransitionError{From: current.String(), Event: string(event)}
}

func ItemTransition(current models.ItemStatus, event ItemEvent) (models.ItemStatus, error) {
	if next, ok := itemTransitions[current][event]; ok {
		return next, nil
	}
	return "", &InvalidTransitionError{From: current.String(), Event: string(event)}
}

// ItemEventForTarget memetakan status tujuan yang diminta staff ke event
// fulfillment; status tujuan di luar jalur fulfillment ditolak caller lewat
// ItemTransition.
func ItemEventForTarget(target models.ItemStatus) (ItemEvent, bool) {
	switch target {
	case models.ItemCooking:
		return ItemEventStartCooking, true
	case models.ItemReadyForPickup:
		return ItemEventMarkReady, true
	case models.ItemCompleted:
		return ItemEventComplete, true
	}
	return "", false
}

// DeriveOrderStatus menghitung status order dari kumpulan status item dengan
// promosi monoton: order maju ke status terlemah yang sudah dicapai SEMUA item
// (paling jauh completed), dan tidak pernah mundur. Hanya berlaku setelah
// order berstatus paid; sebelum itu status order diatur protokol konfirmasi.
// Wajib dijalankan ulang setelah setiap mutasi item.
func DeriveOrderStatus(current models.OrderStatus, items []models.OrderItem) models.OrderStatus {
	if current.Rank() < models.OrderPaid.Rank() || len(items) == 0 {
		return current
	}

	weakest := models.ItemCompleted.Rank()
	for _, it := range items {
		r := it.Status.Rank()
		if r < 0 {
			// Item rejected tidak menahan derivasi pasca-pembayaran;
			// jalur administratif yang meninggalkannya tidak dihitung.
			continue
		}
		if r < weakest {
			weakest = r
		}
	}

	derived, err := models.OrderStatusForItems(weakest)
	if err != nil || derived.Rank() <= current.Rank() {
		return current
	}
	return derived
}
