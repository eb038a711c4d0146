package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/config"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/handlers"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/interfaces"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/middleware"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/provider"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/signature"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

type Deps struct {
	Config      *config.Config
	Customers   interfaces.CustomerRepository
	Fetcher     provider.TransactionFetcher
	Reconciler  handlers.Reconciler
	ReplayGuard middleware.ReplayGuard
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "navegantes-payments"})
	})

	registrationHandler := handlers.NewRegistrationHandler(d.Config, d.Customers)
	r.GET("/plans", registrationHandler.ListPlans)
	registrations := r.Group("/registrations")
	{
		registrations.POST("", registrationHandler.CreateRegistration)
		registrations.GET("/:reference", registrationHandler.GetRegistration)
	}

	paymentHandler := handlers.NewPaymentHandler(d.Config, d.Fetcher, d.Reconciler)
	r.POST("/integrity-signature", paymentHandler.IntegritySignature)
	r.POST("/verify-transaction", paymentHandler.VerifyTransaction)
	r.POST("/webhook",
		middleware.RawBody(),
		middleware.WebhookSignature(signature.NewVerifier(d.Config.WebhookSecret)),
		middleware.WebhookReplay(d.ReplayGuard, d.Config.WebhookDedupTTL),
		paymentHandler.Webhook,
	)

	return r
}
