package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin sudah disaring CORS middleware; handshake websocket tidak
	// membawa header custom, jadi origin check di sini dilonggarkan.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSController struct {
	Hub *ws.Hub
}

func NewWSController(hub *ws.Hub) *WSController {
	return &WSController{Hub: hub}
}

// Connect meng-upgrade request ke websocket dan mendaftarkan koneksi atas
// identitas dari token. Server tidak memproses pesan masuk; read loop hanya
// menjaga koneksi dan mendeteksi close dari client.
func (wc *WSController) Connect(c *gin.Context) {
	userID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("ws upgrade untuk user %d gagal: %v", userID, err)
		return
	}

	wc.Hub.Register(userID, conn)
	utils.InfoLogger.Printf("ws: user %d terhubung", userID)

	go func() {
		defer func() {
			wc.Hub.Unregister(userID, conn)
			conn.Close()
			utils.InfoLogger.Printf("ws: user %d terputus", userID)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
