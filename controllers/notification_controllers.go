package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/utils"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// List mengembalikan riwayat notifikasi user, terbaru dulu.
func (nc *NotificationController) List(c *gin.Context) {
	userID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	var notifications []models.Notification
	err := nc.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(100).
		Find(&notifications).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications fetched", notifications)
}
