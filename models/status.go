package models

import "fmt"

// OrderStatus adalah enum tertutup untuk status order.
type OrderStatus string

const (
	OrderAwaitingConfirmation OrderStatus = "awaiting_confirmation"
	OrderAwaitingPayment      OrderStatus = "awaiting_payment"
	OrderPaid                 OrderStatus = "paid"
	OrderCooking              OrderStatus = "cooking"
	OrderReadyForPickup       OrderStatus = "ready_for_pickup"
	OrderCompleted            OrderStatus = "completed"
	OrderCancelled            OrderStatus = "cancelled"
)

// orderRank mengurutkan status sesuai lifecycle. Cancelled tidak punya rank
// karena berada di luar jalur maju.
var orderRank = map[OrderStatus]int{
	OrderAwaitingConfirmation: 0,
	OrderAwaitingPayment:      1,
	OrderPaid:                 2,
	OrderCooking:              3,
	OrderReadyForPickup:       4,
	OrderCompleted:            5,
}

func (s OrderStatus) Valid() bool {
	if s == OrderCancelled {
		return true
	}
	_, ok := orderRank[s]
	return ok
}

// Rank mengembalikan posisi status pada jalur maju; -1 untuk cancelled.
func (s OrderStatus) Rank() int {
	if r, ok := orderRank[s]; ok {
		return r
	}
	return -1
}

// AtLeastPaid menandakan order sudah melewati settlement.
func (s OrderStatus) AtLeastPaid() bool {
	return s.Rank() >= orderRank[OrderPaid]
}

func (s OrderStatus) String() string { return string(s) }

// ItemStatus adalah enum tertutup untuk status order item.
type ItemStatus string

const (
	ItemAwaitingConfirmation ItemStatus = "awaiting_confirmation"
	ItemConfirmed            ItemStatus = "confirmed"
	ItemRejected             ItemStatus = "rejected"
	ItemPaid                 ItemStatus = "paid"
	ItemCooking              ItemStatus = "cooking"
	ItemReadyForPickup       ItemStatus = "ready_for_pickup"
	ItemCompleted            ItemStatus = "completed"
)

var itemRank = map[ItemStatus]int{
	ItemAwaitingConfirmation: 0,
	ItemConfirmed:            1,
	ItemPaid:                 2,
	ItemCooking:              3,
	ItemReadyForPickup:       4,
	ItemCompleted:            5,
}

func (s ItemStatus) Valid() bool {
	if s == ItemRejected {
		return true
	}
	_, ok := itemRank[s]
	return ok
}

// Rank mengembalikan posisi item pada jalur maju; -1 untuk rejected.
func (s ItemStatus) Rank() int {
	if r, ok := itemRank[s]; ok {
		return r
	}
	return -1
}

// Decided menandakan staff pemilik item sudah memberi keputusan.
func (s ItemStatus) Decided() bool {
	return s != ItemAwaitingConfirmation
}

func (s ItemStatus) String() string { return string(s) }

// OrderStatusForItems memetakan rank item ke status order padanannya.
// Dipakai derivasi status order dari kumpulan item.
func OrderStatusForItems(rank int) (OrderStatus, error) {
	for st, r := range orderRank {
		if r == rank {
			return st, nil
		}
	}
	return "", fmt.Errorf("no order status for rank %d", rank)
}
