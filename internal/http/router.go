// Package http assembles the gin engine for the payments API.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/alaska-tech/veciapp-backend/internal/http/handlers"
	"github.com/alaska-tech/veciapp-backend/internal/http/middleware"
)

type Deps struct {
	Logger    *slog.Logger
	JWTSecret []byte
	DB        handlers.Pinger

	Payments *handlers.PaymentHandler
	Webhooks *handlers.WebhookHandler
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Logger, "/healthz"),
		middleware.ErrorHandler(d.Logger),
		middleware.Recovery(d.Logger),
	)

	r.GET("/healthz", handlers.Health(d.DB))

	api := r.Group("/api/payments")

	// gateway callbacks carry their own signature
	api.POST("/webhook", d.Webhooks.Handle)

	authed := api.Group("", middleware.RequireAuth(d.JWTSecret))
	authed.POST("/token", d.Payments.CreateToken)
	authed.POST("/card", d.Payments.ChargeCard)
	authed.GET("/customer/:customerId", d.Payments.ListByCustomer)
	authed.GET("/vendor/:vendorId", d.Payments.ListByVendor)
	authed.GET("/order/:orderId", d.Payments.ListByOrder)
	authed.PUT("/sync/:paymentId", d.Payments.Sync)
	authed.GET("/:paymentId", d.Payments.Get)

	return r
}
