package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Williamonyango/Scented-muse-Backend/internal/config"
	"github.com/Williamonyango/Scented-muse-Backend/internal/handlers"
	"github.com/Williamonyango/Scented-muse-Backend/internal/middleware"
	"github.com/Williamonyango/Scented-muse-Backend/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, rdb *redis.Client, payments *services.PaymentService, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(db, rdb, cfg)
	productHandler := handlers.NewProductHandler(db, rdb)
	cartHandler := handlers.NewCartHandler(db)
	couponHandler := handlers.NewCouponHandler(db)
	paymentHandler := handlers.NewPaymentHandler(payments)
	analyticsHandler := handlers.NewAnalyticsHandler(db)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", authHandler.Signup)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/refresh-token", authHandler.Refresh)
	auth.Get("/profile", middleware.AuthMiddleware(cfg), authHandler.Profile)

	products := api.Group("/products")
	products.Get("/featured", productHandler.GetFeaturedProducts)
	products.Get("/recommendations", productHandler.GetRecommendedProducts)
	products.Get("/category/:category", productHandler.GetProductsByCategory)
	products.Get("/", middleware.AuthMiddleware(cfg), middleware.RequireAdmin(db), productHandler.ListProducts)
	products.Post("/", middleware.AuthMiddleware(cfg), middleware.RequireAdmin(db), productHandler.CreateProduct)
	products.Patch("/:id", middleware.AuthMiddleware(cfg), middleware.RequireAdmin(db), productHandler.ToggleFeaturedProduct)
	products.Delete("/:id", middleware.AuthMiddleware(cfg), middleware.RequireAdmin(db), productHandler.DeleteProduct)

	cart := api.Group("/cart", middleware.AuthMiddleware(cfg))
	cart.Get("/", cartHandler.GetCartProducts)
	cart.Post("/", cartHandler.AddToCart)
	cart.Delete("/", cartHandler.RemoveFromCart)
	cart.Put("/:id", cartHandler.UpdateQuantity)

	coupons := api.Group("/coupons", middleware.AuthMiddleware(cfg))
	coupons.Get("/", couponHandler.GetCoupon)
	coupons.Post("/validate", couponHandler.ValidateCoupon)

	// The callback is unauthenticated by the gateway's delivery contract;
	// it is trusted by network topology only.
	paymentRoutes := api.Group("/payments")
	paymentRoutes.Post("/lipa-na-mpesa", middleware.AuthMiddleware(cfg), paymentHandler.LipaNaMpesa)
	paymentRoutes.Post("/mpesa/callback", paymentHandler.MpesaCallback)

	api.Get("/analytics", middleware.AuthMiddleware(cfg), middleware.RequireAdmin(db), analyticsHandler.GetAnalytics)
}
