package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/kantinku/kantinku-api/controllers"
	"github.com/kantinku/kantinku-api/middlewares"
	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/services"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/ws"
)

// Deps menampung seluruh dependency yang dibutuhkan route table.
type Deps struct {
	DB           *gorm.DB
	Store        store.Store
	Hub          *ws.Hub
	Notifier     *services.NotificationDispatcher
	Orders       *services.OrderService
	Confirmation *services.ConfirmationAggregator
	Reconciler   *services.PaymentReconciler
}

// SetupRouter membangun route table. ctx mengikat umur goroutine pembersih
// rate limiter ke umur proses.
func SetupRouter(ctx context.Context, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.Metrics())
	r.Use(middlewares.RateLimit(ctx, 50, 100))

	userCtrl := controllers.NewUserController(d.DB)
	productCtrl := controllers.NewProductController(d.DB, d.Notifier)
	categoryCtrl := controllers.NewCategoryController(d.DB)
	cartCtrl := controllers.NewCartController(d.DB)
	orderCtrl := controllers.NewOrderController(d.Orders, d.Confirmation)
	paymentCtrl := controllers.NewPaymentController(d.Reconciler, d.Store)
	fcmCtrl := controllers.NewFCMController(d.DB)
	notifCtrl := controllers.NewNotificationController(d.DB)
	wsCtrl := controllers.NewWSController(d.Hub)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Callback gateway tidak pakai JWT; autentikasinya signature SHA512
	// di dalam reconciler.
	r.POST("/payments/callback", paymentCtrl.Callback)

	auth := r.Group("/auth")
	auth.Use(middlewares.StrictRateLimit(ctx))
	{
		auth.POST("/register", userCtrl.Register)
		auth.POST("/login", userCtrl.Login)
	}

	// Katalog publik
	r.GET("/products", productCtrl.List)
	r.GET("/products/:product_id", productCtrl.Get)
	r.GET("/categories", categoryCtrl.List)

	r.GET("/ws", middlewares.WebSocketAuthMiddleware(), wsCtrl.Connect)

	api := r.Group("/")
	api.Use(middlewares.AuthMiddleware())
	{
		api.POST("/auth/logout", userCtrl.Logout)
		api.GET("/profile", userCtrl.GetProfile)

		api.POST("/fcm/token", fcmCtrl.RegisterToken)
		api.DELETE("/fcm/token", fcmCtrl.DeleteToken)
		api.GET("/notifications", notifCtrl.List)

		// Customer
		api.GET("/cart", cartCtrl.List)
		api.POST("/cart", cartCtrl.Add)
		api.PATCH("/cart/:item_id", cartCtrl.UpdateQuantity)
		api.DELETE("/cart/:item_id", cartCtrl.Remove)
		api.DELETE("/cart", cartCtrl.Clear)

		api.POST("/orders", orderCtrl.Checkout)
		api.GET("/orders", orderCtrl.ListMine)
		api.GET("/orders/:order_id", orderCtrl.Detail)
		api.DELETE("/orders/:order_id", orderCtrl.Delete)
		api.GET("/orders/:order_id/payment", paymentCtrl.Status)

		// Staff
		staff := api.Group("/", middlewares.RequireRole(models.RoleStaff))
		{
			staff.GET("/staff/orders", orderCtrl.Inbox)
			staff.POST("/orders/:order_id/confirm", orderCtrl.Confirm)
			staff.POST("/orders/:order_id/settle-cash", orderCtrl.SettleCash)
			staff.PATCH("/order-items/:item_id/status", orderCtrl.UpdateItemStatus)
			staff.GET("/staff/products", productCtrl.MyProducts)
			staff.POST("/products", productCtrl.Create)
			staff.PATCH("/products/:product_id", productCtrl.Update)
			staff.DELETE("/products/:product_id", productCtrl.Delete)
		}

		// Admin
		admin := api.Group("/admin", middlewares.RequireRole(models.RoleAdmin))
		{
			admin.POST("/users", userCtrl.CreateStaff)
			admin.POST("/categories", categoryCtrl.Create)
			admin.DELETE("/categories/:category_id", categoryCtrl.Delete)
			admin.POST("/orders/:order_id/cancel", orderCtrl.AdminCancel)
			admin.GET("/dashboard/stats", orderCtrl.DashboardStats)
		}
	}

	return r
}
