package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kantinku/kantinku-api/utils"
)

// writeWait membatasi lamanya satu pengiriman boleh menahan broadcast.
const writeWait = 5 * time.Second

// Conn adalah bagian dari *websocket.Conn yang dipakai hub; interface ini
// memungkinkan test memakai koneksi palsu.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// userConns menampung seluruh koneksi aktif milik satu identitas (multi-device),
// dengan mutex per identitas supaya broadcast ke user lain tidak saling menunggu.
type userConns struct {
	mu    sync.Mutex
	conns map[Conn]struct{}
}

// Hub adalah registry koneksi live per identitas. Akses map dilindungi RWMutex;
// pengiriman per identitas diserialisasi oleh mutex milik userConns.
type Hub struct {
	mu    sync.RWMutex
	users map[uint]*userConns
}

func NewHub() *Hub {
	return &Hub{users: make(map[uint]*userConns)}
}

// Register menambahkan koneksi untuk sebuah identitas. Koneksi dimasukkan
// selagi masih memegang lock registry: Unregister koneksi terakhir bisa
// menghapus entry user di sela pelepasan h.mu dan pengambilan uc.mu,
// sehingga koneksi baru mendarat di struct yatim dan user tampak offline.
func (h *Hub) Register(userID uint, c Conn) {
	h.mu.Lock()
	uc, ok := h.users[userID]
	if !ok {
		uc = &userConns{conns: make(map[Conn]struct{})}
		h.users[userID] = uc
	}
	uc.mu.Lock()
	uc.conns[c] = struct{}{}
	n := len(uc.conns)
	uc.mu.Unlock()
	h.mu.Unlock()

	utils.InfoLogger.Printf("ws: user #%d connected (%d active connections)", userID, n)
}

// Unregister melepas koneksi; entry user dihapus saat koneksi terakhir tutup.
func (h *Hub) Unregister(userID uint, c Conn) {
	h.mu.Lock()
	uc, ok := h.users[userID]
	h.mu.Unlock()
	if !ok {
		return
	}

	uc.mu.Lock()
	delete(uc.conns, c)
	empty := len(uc.conns) == 0
	uc.mu.Unlock()

	c.Close()

	if empty {
		h.mu.Lock()
		// Re-check: koneksi baru bisa masuk di antara dua lock.
		uc.mu.Lock()
		if len(uc.conns) == 0 {
			delete(h.users, userID)
		}
		uc.mu.Unlock()
		h.mu.Unlock()
	}

	utils.InfoLogger.Printf("ws: user #%d disconnected", userID)
}

// Broadcast mengirim event ke seluruh koneksi milik userID. Tanpa koneksi
// live, ini no-op; koneksi yang gagal dikirimi langsung di-prune. Tidak pernah
// mengembalikan error: kegagalan delivery tidak boleh menggagalkan transisi
// bisnis yang memicunya.
func (h *Hub) Broadcast(userID uint, event Event) {
	h.mu.RLock()
	uc, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		utils.ErrorLogger.Printf("ws: marshal event %s: %v", event.Type, err)
		return
	}

	uc.mu.Lock()
	var dead []Conn
	for c := range uc.conns {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("ws: send %s to user #%d: %v", event.Type, userID, err)
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		delete(uc.conns, c)
	}
	uc.mu.Unlock()

	for _, c := range dead {
		c.Close()
	}
}

// BroadcastMany mengirim event ke beberapa identitas sekaligus.
func (h *Hub) BroadcastMany(userIDs []uint, event Event) {
	for _, id := range userIDs {
		h.Broadcast(id, event)
	}
}

// BroadcastAll mengirim event ke seluruh identitas yang sedang terhubung.
func (h *Hub) BroadcastAll(event Event) {
	h.mu.RLock()
	ids := make([]uint, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	h.BroadcastMany(ids, event)
}

// IsOnline melaporkan apakah identitas punya minimal satu koneksi live.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	uc, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return len(uc.conns) > 0
}

// SplitOnline memisahkan identitas yang online dan offline; dipakai caller
// untuk memutuskan fallback push notification.
func (h *Hub) SplitOnline(userIDs []uint) (online, offline []uint) {
	for _, id := range userIDs {
		if h.IsOnline(id) {
			online = append(online, id)
		} else {
			offline = append(offline, id)
		}
	}
	return online, offline
}
