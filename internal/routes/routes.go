package routes

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"veyra_back_end/internal/handlers/admin"
	"veyra_back_end/internal/handlers/cart"
	"veyra_back_end/internal/handlers/order"
	"veyra_back_end/internal/handlers/payement"
	"veyra_back_end/internal/handlers/product"
	"veyra_back_end/internal/middleware"
	"veyra_back_end/internal/utils"
)

func RegisterRoutes(r *gin.Engine) {
	r.Use(cors.New(corsConfig()))
	r.Use(middleware.RequestID())

	api := r.Group("/api")
	api.Use(middleware.APIRateLimit())

	// Catalogue (public)
	api.GET("/products/variants/:sku", product.GetVariant)
	api.GET("/products/variants/:sku/stock", product.GetVariantStock)

	// Panier (connecté)
	cartGroup := api.Group("/cart", middleware.AuthRequired())
	cartGroup.GET("", cart.GetCart)
	cartGroup.PUT("", cart.SaveCart)
	cartGroup.DELETE("", cart.ClearCart)

	// Checkout, ouvert aux invités
	api.POST("/checkout", middleware.OptionalAuth(), middleware.CheckoutRateLimit(), order.Checkout)

	// Commandes
	orders := api.Group("/orders")
	orders.GET("", middleware.AuthRequired(), order.GetMyOrders)
	orders.GET("/:id", middleware.OptionalAuth(), order.GetOrderByID)
	orders.POST("/:id/cancel", middleware.OptionalAuth(), order.CancelOrder)
	orders.POST("/:id/refund-request", middleware.AuthRequired(), order.RequestRefund)
	orders.GET("/:id/invoice", middleware.OptionalAuth(), order.GetInvoiceURL)
	orders.POST("/:id/payment-url", middleware.OptionalAuth(), payement.CreatePaymentURL)

	// Canaux passerelle : le retour navigateur et la notification
	// serveur-à-serveur, tous deux authentifiés par signature HMAC
	api.GET("/payment/return", payement.PaymentReturn)
	api.GET("/payment/notify", payement.PaymentNotify)
	api.POST("/payment/notify", payement.PaymentNotify)

	// Administration
	adminGroup := api.Group("/admin", middleware.AuthRequired(), middleware.RequireAdmin)
	adminGroup.PATCH("/orders/:id/status",
		middleware.AuditCriticalActions(utils.ACTION_ORDER_STATUS_CHANGE, utils.RESOURCE_ORDER),
		admin.UpdateOrderStatus)
	adminGroup.POST("/orders/:id/cancel",
		middleware.AuditCriticalActions(utils.ACTION_ORDER_CANCEL, utils.RESOURCE_ORDER),
		admin.CancelOrder)
	adminGroup.POST("/orders/:id/refund",
		middleware.AuditCriticalActions(utils.ACTION_PAYMENT_REFUND, utils.RESOURCE_ORDER),
		payement.RefundOrder)
	adminGroup.POST("/sweep",
		middleware.AuditCriticalActions(utils.ACTION_ORDER_SWEEP, utils.RESOURCE_ORDER),
		admin.TriggerSweep)
	adminGroup.GET("/search", middleware.SearchRateLimit(), admin.SearchOrders)
	adminGroup.GET("/stats", admin.GetDashboardStats)
	adminGroup.GET("/audit", admin.GetAuditLogs)
	adminGroup.GET("/audit/:resource/:resource_id", admin.GetAuditLogsByResource)
}

func corsConfig() cors.Config {
	origins := []string{"http://localhost:3000"}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		origins = strings.Split(env, ",")
	}

	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
