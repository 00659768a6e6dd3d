package services

import (
	"context"

	"github.com/kantinku/kantinku-api/broker"
	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

// NotificationDispatcher mengirim update ke actor yang tepat: websocket bila
// identity sedang terhubung, FCM push sebagai fallback, plus event Kafka dan
// baris audit untuk riwayat.
//
// Seluruh pengiriman bersifat best-effort. Kegagalan delivery tidak pernah
// dipropagasikan ke operasi order yang memicunya; state order sudah final
// di database sebelum dispatcher dipanggil.
type NotificationDispatcher struct {
	hub      *ws.Hub
	push     PushSender
	producer *broker.Producer
	store    store.Store
}

func NewNotificationDispatcher(hub *ws.Hub, push PushSender, producer *broker.Producer, st store.Store) *NotificationDispatcher {
	return &NotificationDispatcher{hub: hub, push: push, producer: producer, store: st}
}

// Notify mengirim satu event ke satu user: websocket dulu, push kalau
// offline, lalu simpan baris notifikasi.
func (d *NotificationDispatcher) Notify(ctx context.Context, userID uint, evt ws.Event, title, body string) {
	d.NotifyMany(ctx, []uint{userID}, evt, title, body)
}

// NotifyMany mengirim satu event ke banyak user sekaligus. userIDs boleh
// mengandung duplikat (mis. staff yang memiliki dua produk dalam satu
// order); setiap user hanya menerima satu delivery.
func (d *NotificationDispatcher) NotifyMany(ctx context.Context, userIDs []uint, evt ws.Event, title, body string) {
	unique := dedupIDs(userIDs)
	if len(unique) == 0 {
		return
	}

	online, offline := d.hub.SplitOnline(unique)
	for _, id := range online {
		d.hub.Broadcast(id, evt)
	}
	if len(offline) > 0 {
		d.sendPush(ctx, offline, title, body, evt.PushData())
	}

	for _, id := range unique {
		uid := id
		n := models.Notification{UserID: &uid, Title: title, Body: body}
		if err := d.store.SaveNotification(ctx, &n); err != nil {
			utils.ErrorLogger.Printf("simpan notifikasi user %d gagal: %v", id, err)
		}
	}
}

// NotifyLive hanya mengirim lewat websocket, tanpa push dan tanpa baris
// audit. Dipakai untuk update layar yang tidak berguna saat offline
// (mis. perubahan katalog produk).
func (d *NotificationDispatcher) NotifyLive(userID uint, evt ws.Event) {
	d.hub.Broadcast(userID, evt)
}

// BroadcastAll mengirim event ke seluruh koneksi aktif.
func (d *NotificationDispatcher) BroadcastAll(evt ws.Event) {
	d.hub.BroadcastAll(evt)
}

// PublishOrderEvent meneruskan event lifecycle ke Kafka untuk konsumen
// downstream. No-op bila broker tidak dikonfigurasi.
func (d *NotificationDispatcher) PublishOrderEvent(ctx context.Context, eventType string, orderID uint, status models.OrderStatus) {
	d.producer.PublishOrderEvent(ctx, eventType, orderID, string(status))
}

func (d *NotificationDispatcher) sendPush(ctx context.Context, userIDs []uint, title, body string, data map[string]string) {
	if d.push == nil {
		return
	}
	rows, err := d.store.TokensByUsers(ctx, userIDs)
	if err != nil {
		utils.ErrorLogger.Printf("ambil fcm token gagal: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	tokens := make([]string, 0, len(rows))
	for _, r := range rows {
		tokens = append(tokens, r.Token)
	}

	invalid, err := d.push.Send(ctx, tokens, title, body, data)
	if err != nil {
		utils.PushDeliveriesTotal.WithLabelValues("error").Inc()
		utils.ErrorLogger.Printf("fcm send gagal: %v", err)
		return
	}
	utils.PushDeliveriesTotal.WithLabelValues("ok").Inc()

	// Token yang sudah tidak terdaftar dibersihkan supaya multicast
	// berikutnya tidak membengkak.
	for _, tok := range invalid {
		if err := d.store.DeleteTokenValue(ctx, tok); err != nil {
			utils.ErrorLogger.Printf("hapus fcm token invalid gagal: %v", err)
		}
	}
}

func dedupIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
