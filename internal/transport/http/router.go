package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/handlers"
)

type Deps struct {
	Auth     *auth.Middleware
	Users    *handlers.UserHandler
	AuthH    *handlers.AuthHandler
	Products *handlers.ProductHandler
	Cart     *handlers.CartHandler
	Orders   *handlers.OrderHandler
	Payments *handlers.PaymentHandler
	Reviews  *handlers.ReviewHandler
	Wishlist *handlers.WishlistHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	a := v1.Group("/auth")
	a.POST("/register", d.AuthH.Register)
	a.POST("/login", d.AuthH.Login)
	a.POST("/verify-email", d.AuthH.VerifyEmail)
	a.POST("/resend-verification", d.AuthH.ResendVerification)
	a.POST("/forgot-password", d.AuthH.ForgotPassword)
	a.PATCH("/reset-password/:token", d.AuthH.ResetPassword)

	users := v1.Group("/users", d.Auth.RequireUser)
	users.GET("/me", d.Users.GetMe)
	users.PATCH("/me", d.Users.UpdateMe)
	users.GET("", d.Users.ListUsers, d.Auth.RequireAdmin)
	users.GET("/:id", d.Users.GetUser, d.Auth.RequireAdmin)
	users.PUT("/:id", d.Users.UpdateUser, d.Auth.RequireAdmin)
	users.DELETE("/:id", d.Users.DeleteUser, d.Auth.RequireAdmin)

	products := v1.Group("/products")
	products.GET("", d.Products.GetProducts)
	products.GET("/search", d.Products.SearchProducts)
	products.GET("/:id", d.Products.GetProduct)
	products.POST("", d.Products.CreateProduct, d.Auth.RequireAdmin)
	products.PUT("/:id", d.Products.UpdateProduct, d.Auth.RequireAdmin)
	products.DELETE("/:id", d.Products.DeleteProduct, d.Auth.RequireAdmin)

	cart := v1.Group("/cart", d.Auth.RequireUser)
	cart.GET("", d.Cart.GetCart)
	cart.POST("", d.Cart.AddToCart)
	cart.PUT("", d.Cart.UpdateCartItem)
	cart.DELETE("/clear", d.Cart.ClearCart)
	cart.DELETE("/:productId", d.Cart.RemoveFromCart)

	orders := v1.Group("/orders", d.Auth.RequireUser)
	orders.POST("", d.Orders.CreateOrder)
	orders.GET("", d.Orders.GetOrders)
	orders.GET("/:id", d.Orders.GetOrder)
	orders.POST("/:id/cancel", d.Orders.CancelOrder)
	orders.PUT("/:id/status", d.Orders.UpdateStatus, d.Auth.RequireAdmin)

	pay := v1.Group("/payments")
	pay.POST("/webhook", d.Payments.HandleWebhook)
	pay.POST("/create-payment-intent", d.Payments.CreatePaymentIntent, d.Auth.RequireUser)
	pay.GET("/status/:orderId", d.Payments.GetPaymentStatus, d.Auth.RequireUser)
	pay.POST("/refund/:orderId", d.Payments.RefundPayment, d.Auth.RequireUser)

	v1.POST("/reviews", d.Reviews.CreateReview, d.Auth.RequireUser)

	wishlist := v1.Group("/wishlist", d.Auth.RequireUser)
	wishlist.GET("", d.Wishlist.GetWishlist)
	wishlist.POST("", d.Wishlist.AddToWishlist)
	wishlist.DELETE("/:productId", d.Wishlist.RemoveFromWishlist)
}
