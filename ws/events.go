package ws

import "strconv"

// Tipe event realtime yang dikirim ke client.
const (
	EventOrderStatusUpdate        = "order_status_update"
	EventItemStatusUpdate         = "item_status_update"
	EventNewOrder                 = "new_order"
	EventOrderPartialConfirmation = "order_partial_confirmation"
	EventOrderCancelled           = "order_cancelled"
	EventOrderConfirmed           = "order_confirmed"
	EventProductUpdate            = "product_update"
)

// Event adalah payload yang dikirim lewat websocket. Skema eksplisit per
// type; field yang tidak relevan untuk sebuah type dibiarkan kosong dan
// tidak diserialisasi.
type Event struct {
	Type        string `json:"type"`
	OrderID     uint   `json:"order_id,omitempty"`
	ItemID      uint   `json:"item_id,omitempty"`
	ProductID   uint   `json:"product_id,omitempty"`
	Status      string `json:"status,omitempty"`
	ItemStatus  string `json:"item_status,omitempty"`
	TotalPrice  int64  `json:"total_price,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

// PushData meringkas event menjadi data payload FCM: cukup untuk client
// membuka layar yang tepat, tanpa mengulang seluruh body.
func (e Event) PushData() map[string]string {
	data := map[string]string{"type": e.Type}
	if e.OrderID != 0 {
		data["order_id"] = strconv.FormatUint(uint64(e.OrderID), 10)
	}
	if e.Status != "" {
		data["status"] = e.Status
	}
	return data
}

func OrderStatusUpdate(orderID uint, status string, total int64) Event {
	return Event{Type: EventOrderStatusUpdate, OrderID: orderID, Status: status, TotalPrice: total}
}

func ItemStatusUpdate(orderID, itemID uint, status string) Event {
	return Event{Type: EventItemStatusUpdate, OrderID: orderID, ItemID: itemID, ItemStatus: status}
}

func NewOrder(orderID uint) Event {
	return Event{Type: EventNewOrder, OrderID: orderID}
}

func OrderPartialConfirmation(orderID uint, message string) Event {
	return Event{Type: EventOrderPartialConfirmation, OrderID: orderID, Message: message}
}

func OrderCancelled(orderID uint, message string) Event {
	return Event{Type: EventOrderCancelled, OrderID: orderID, Status: "cancelled", Message: message}
}

func OrderConfirmed(orderID uint, total int64, redirectURL string) Event {
	return Event{Type: EventOrderConfirmed, OrderID: orderID, TotalPrice: total, RedirectURL: redirectURL}
}

func ProductUpdate(productID uint) Event {
	return Event{Type: EventProductUpdate, ProductID: productID}
}
