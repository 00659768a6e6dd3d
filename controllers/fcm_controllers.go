package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/utils"
)

type FCMController struct {
	DB *gorm.DB
}

func NewFCMController(db *gorm.DB) *FCMController {
	return &FCMController{DB: db}
}

// RegisterToken menyimpan device token untuk push fallback. Token yang sama
// dikirim ulang (mis. setelah re-login) di-upsert ke user terakhir.
func (fc *FCMController) RegisterToken(c *gin.Context) {
	userID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	row := models.FCMToken{UserID: userID, Token: req.Token}
	err := fc.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id"}),
	}).Create(&row).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Token registered", nil)
}

// DeleteToken menghapus device token saat logout.
func (fc *FCMController) DeleteToken(c *gin.Context) {
	userID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := fc.DB.Where("user_id = ? AND token = ?", userID, req.Token).
		Delete(&models.FCMToken{}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Token removed", nil)
}
