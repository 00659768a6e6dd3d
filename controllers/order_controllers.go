package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/services"
	"github.com/kantinku/kantinku-api/utils"
)

type OrderController struct {
	Orders       *services.OrderService
	Confirmation *services.ConfirmationAggregator
}

func NewOrderController(orders *services.OrderService, confirmation *services.ConfirmationAggregator) *OrderController {
	return &OrderController{Orders: orders, Confirmation: confirmation}
}

// Checkout membuat order dari isi keranjang customer.
func (oc *OrderController) Checkout(c *gin.Context) {
	userID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	var req struct {
		Note          string `json:"note"`
		PaymentMethod string `json:"payment_method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.Checkout(c.Request.Context(), userID, req.Note, req.PaymentMethod)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// ListMine mengembalikan riwayat order customer yang login.
func (oc *OrderController) ListMine(c *gin.Context) {
	userID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	orders, err := oc.Orders.OrdersForCustomer(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Orders fetched", orders)
}

func (oc *OrderController) Detail(c *gin.Context) {
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

	order, err := oc.Orders.OrderForActor(c.Request.Context(), orderID, actorID, role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order fetched", order)
}

// Delete menghapus order yang belum dibayar.
func (oc *OrderController) Delete(c *gin.Context) {
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

	if err := oc.Orders.Delete(c.Request.Context(), orderID, actorID, role); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order deleted", nil)
}

// Inbox mengembalikan order aktif yang memuat item milik staff.
func (oc *OrderController) Inbox(c *gin.Context) {
	staffID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	orders, err := oc.Orders.Inbox(c.Request.Context(), staffID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Inbox fetched", orders)
}

// Confirm menerima keputusan konfirmasi staff untuk seluruh item miliknya
// dalam satu order.
func (oc *OrderController) Confirm(c *gin.Context) {
	staffID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	orderID, err := parseIDParam(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Decision string `json:"decision" binding:"required,oneof=accept reject"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := oc.Confirmation.Decide(c.Request.Context(), orderID, staffID, req.Decision == "accept")
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Decision applied", result)
}

// UpdateItemStatus memajukan satu item di jalur fulfillment.
func (oc *OrderController) UpdateItemStatus(c *gin.Context) {
	actorID, role, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	itemID, err := parseIDParam(c, "item_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	target := models.ItemStatus(req.Status)
	if !target.Valid() {
		utils.RespondError(c, http.StatusBadRequest, errors.New("unknown item status"))
		return
	}

	item, order, err := oc.Orders.AdvanceItem(c.Request.Context(), itemID, actorID, role, target)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item status updated", gin.H{
		"item":         item,
		"order_status": order.Status,
	})
}

// SettleCash mencatat pembayaran tunai yang diterima di kasir untuk order cash.
func (oc *OrderController) SettleCash(c *gin.Context) {
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

	order, err := oc.Orders.SettleCash(c.Request.Context(), orderID, actorID, role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cash payment settled", order)
}

// AdminCancel membatalkan order yang belum dibayar (jalur administratif).
func (oc *OrderController) AdminCancel(c *gin.Context) {
	orderID, err := parseIDParam(c, "order_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.AdminCancel(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}

// DashboardStats menghitung order per status untuk dashboard admin.
func (oc *OrderController) DashboardStats(c *gin.Context) {
	stats, err := oc.Orders.DashboardStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stats fetched", stats)
}

func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}
