package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kantinku/kantinku-api/services"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
)

type PaymentController struct {
	Reconciler *services.PaymentReconciler
	Store      store.Store
}

func NewPaymentController(rec *services.PaymentReconciler, st store.Store) *PaymentController {
	return &PaymentController{Reconciler: rec, Store: st}
}

// Callback menerima notifikasi pembayaran dari gateway. Replay dijawab 200
// tanpa efek supaya gateway berhenti me-retry; payload rusak dijawab 4xx.
func (pc *PaymentController) Callback(c *gin.Context) {
	var payload services.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	utils.InfoLogger.Printf("callback pembayaran diterima: ref=%s status=%s txn=%s",
		payload.OrderID, payload.TransactionStatus, payload.TransactionID)

	err := pc.Reconciler.ProcessCallback(c.Request.Context(), payload)
	if errors.Is(err, services.ErrDuplicateCallback) {
		utils.RespondJSON(c, http.StatusOK, "Callback already processed", nil)
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Callback processed", nil)
}

// Status mengembalikan record payment terakhir sebuah order, untuk polling
// frontend saat menunggu settlement.
func (pc *PaymentController) Status(c *gin.Context) {
	actorID, role, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	orderID, err := parseIDParam(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := pc.Store.OrderByID(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, services.ErrNotFound)
		return
	}
	if role != "admin" && order.UserID != actorID {
		respondServiceError(c, services.ErrForbidden)
		return
	}

	payment, err := pc.Store.PaymentByOrder(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, services.ErrNotFound)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment fetched", payment)
}
