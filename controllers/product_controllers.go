package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/services"
	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

type ProductController struct {
	DB       *gorm.DB
	Notifier *services.NotificationDispatcher
}

func NewProductController(db *gorm.DB, notifier *services.NotificationDispatcher) *ProductController {
	return &ProductController{DB: db, Notifier: notifier}
}

// List mengembalikan katalog, opsional difilter category_id.
func (pc *ProductController) List(c *gin.Context) {
	var products []models.Product
	q := pc.DB.Model(&models.Product{})
	if cat := c.Query("category_id"); cat != "" {
		q = q.Where("category_id = ?", cat)
	}
	if err := q.Find(&products).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Products fetched", products)
}

func (pc *ProductController) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid product id"))
		return
	}
	var product models.Product
	if err := pc.DB.First(&product, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("product not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product fetched", product)
}

// MyProducts mengembalikan produk milik staff yang login.
func (pc *ProductController) MyProducts(c *gin.Context) {
	staffID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	var products []models.Product
	err := pc.DB.Joins("JOIN product_owners ON product_owners.product_id = products.id").
		Where("product_owners.user_id = ?", staffID).
		Find(&products).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Products fetched", products)
}

// Create membuat produk baru; staff pembuat otomatis tercatat sebagai pemilik.
func (pc *ProductController) Create(c *gin.Context) {
	staffID, _, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}

	type request struct {
		Name       string  `json:"name" binding:"required"`
		Price      int64   `json:"price" binding:"required,gt=0"`
		CategoryID uint    `json:"category_id" binding:"required"`
		ImageURL   *string `json:"image_url"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	product := models.Product{
		Name:       req.Name,
		Price:      req.Price,
		CategoryID: req.CategoryID,
		ImageURL:   req.ImageURL,
	}
	err := pc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProductOwner{UserID: staffID, ProductID: product.ID}).Error
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	pc.Notifier.BroadcastAll(ws.ProductUpdate(product.ID))
	utils.RespondJSON(c, http.StatusCreated, "Product created", product)
}

// Update mengubah produk; hanya pemilik atau admin. Harga yang berubah tidak
// menyentuh snapshot UnitPrice pada order yang sudah dibuat.
func (pc *ProductController) Update(c *gin.Context) {
	actorID, role, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	id, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid product id"))
		return
	}
	if err := pc.requireOwnership(uint(id), actorID, role); err != nil {
		utils.RespondError(c, http.StatusForbidden, err)
		return
	}

	type request struct {
		Name       *string `json:"name"`
		Price      *int64  `json:"price"`
		CategoryID *uint   `json:"category_id"`
		ImageURL   *string `json:"image_url"`
	}
	var req request
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("price must be positive"))
			return
		}
		updates["price"] = *req.Price
	}
	if req.CategoryID != nil {
		updates["category_id"] = *req.CategoryID
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if len(updates) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	if err := pc.DB.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	pc.Notifier.BroadcastAll(ws.ProductUpdate(uint(id)))
	utils.RespondJSON(c, http.StatusOK, "Product updated", gin.H{"product_id": id})
}

// Delete menghapus produk beserta pivot kepemilikannya.
func (pc *ProductController) Delete(c *gin.Context) {
	actorID, role, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("user id not found in context"))
		return
	}
	id, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid product id"))
		return
	}
	if err := pc.requireOwnership(uint(id), actorID, role); err != nil {
		utils.RespondError(c, http.StatusForbidden, err)
		return
	}

	err = pc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductOwner{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, id).Error
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	pc.Notifier.BroadcastAll(ws.ProductUpdate(uint(id)))
	utils.RespondJSON(c, http.StatusOK, "Product deleted", nil)
}

func (pc *ProductController) requireOwnership(productID, actorID uint, role string) error {
	if role == models.RoleAdmin {
		return nil
	}
	var count int64
	pc.DB.Model(&models.ProductOwner{}).
		Where("product_id = ? AND user_id = ?", productID, actorID).
		Count(&count)
	if count == 0 {
		return errors.New("you do not own this product")
	}
	return nil
}
