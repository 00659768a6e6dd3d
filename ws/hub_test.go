package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantinku/kantinku-api/utils"
)

func init() {
	utils.InitLogger()
}

// fakeConn merekam pesan yang ditulis; bisa diset gagal untuk menguji pruning.
type fakeConn struct {
	messages [][]byte
	fail     bool
	closed   bool
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	if f.fail {
		return errors.New("broken pipe")
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestBroadcastReachesAllConnectionsOfIdentity(t *testing.T) {
	hub := NewHub()
	c1, c2 := &fakeConn{}, &fakeConn{}
	hub.Register(7, c1)
	hub.Register(7, c2)

	hub.Broadcast(7, OrderStatusUpdate(42, "paid", 10583))

	require.Len(t, c1.messages, 1)
	require.Len(t, c2.messages, 1)

	var evt Event
	require.NoError(t, json.Unmarshal(c1.messages[0], &evt))
	assert.Equal(t, EventOrderStatusUpdate, evt.Type)
	assert.Equal(t, uint(42), evt.OrderID)
	assert.Equal(t, "paid", evt.Status)
}

func TestBroadcastToAbsentIdentityIsNoop(t *testing.T) {
	hub := NewHub()
	// Tidak boleh panic atau error untuk identity tanpa koneksi.
	hub.Broadcast(99, NewOrder(1))
}

func TestBroadcastPrunesDeadConnections(t *testing.T) {
	hub := NewHub()
	alive, dead := &fakeConn{}, &fakeConn{fail: true}
	hub.Register(7, alive)
	hub.Register(7, dead)

	hub.Broadcast(7, NewOrder(1))
	assert.True(t, dead.closed)

	// Kiriman berikutnya hanya ke koneksi yang hidup.
	hub.Broadcast(7, NewOrder(2))
	assert.Len(t, alive.messages, 2)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}
	hub.Register(7, c)
	hub.Unregister(7, c)

	hub.Broadcast(7, NewOrder(1))
	assert.Empty(t, c.messages)
	assert.False(t, hub.IsOnline(7))
}

func TestSplitOnline(t *testing.T) {
	hub := NewHub()
	hub.Register(1, &fakeConn{})
	hub.Register(3, &fakeConn{})

	online, offline := hub.SplitOnline([]uint{1, 2, 3, 4})
	assert.Equal(t, []uint{1, 3}, online)
	assert.Equal(t, []uint{2, 4}, offline)
}

func TestBroadcastAllReachesEveryIdentity(t *testing.T) {
	hub := NewHub()
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(1, a)
	hub.Register(2, b)

	hub.BroadcastAll(ProductUpdate(5))
	assert.Len(t, a.messages, 1)
	assert.Len(t, b.messages, 1)
}

// Register koneksi baru yang berpacu dengan Unregister koneksi terakhir milik
// identitas yang sama tidak boleh meninggalkan user dalam keadaan offline.
func TestRegisterDuringLastUnregisterKeepsUserOnline(t *testing.T) {
	hub := NewHub()
	for i := 0; i < 5000; i++ {
		c1, c2 := &fakeConn{}, &fakeConn{}
		hub.Register(7, c1)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Unregister(7, c1)
		}()
		go func() {
			defer wg.Done()
			hub.Register(7, c2)
		}()
		wg.Wait()

		require.True(t, hub.IsOnline(7), "iterasi %d: koneksi baru masuk ke entry yatim", i)
		hub.Broadcast(7, NewOrder(uint(i)))
		require.NotEmpty(t, c2.messages, "iterasi %d: broadcast tidak sampai ke koneksi baru", i)

		hub.Unregister(7, c2)
	}
}
