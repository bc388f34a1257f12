package main

import (
	"log"
	"net/http"

	"swiftmart-be/internal/address"
	"swiftmart-be/internal/config"
	"swiftmart-be/internal/db"
	"swiftmart-be/internal/logger"
	"swiftmart-be/internal/middleware"
	"swiftmart-be/internal/notify"
	"swiftmart-be/internal/order"
	"swiftmart-be/internal/payment"
	"swiftmart-be/internal/payment/webhook"
	"swiftmart-be/internal/product"
	"swiftmart-be/internal/user"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	orderRepo := order.NewRepository(database)
	productRepo := product.NewRepository(database)
	addressRepo := address.NewRepository(database)
	userRepo := user.NewRepository(database)

	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.FrontendURL)

	var events notify.EventPublisher
	if cfg.AmqpURL != "" {
		publisher, err := notify.New(cfg.AmqpURL)
		if err != nil {
			logger.L().Warn("event publisher unavailable, continuing without it", zap.Error(err))
		} else {
			defer publisher.Close()
			events = publisher
		}
	}

	orderSvc := order.NewService(orderRepo, productRepo, addressRepo, userRepo, gateway, events)

	mux := http.NewServeMux()
	order.NewHandler(orderSvc).Register(mux)
	webhook.NewHandler(orderSvc, gateway).Register(mux)

	handler := middleware.CORS(cfg.FrontendURL)(
		middleware.AuthMiddleware(
			middleware.RateLimitMiddleware(
				middleware.LoggingMiddleware(mux),
			),
		),
	)

	log.Printf("🚀 order server running at http://localhost:%s/", cfg.AppPort)
	log.Fatal(http.ListenAndServe(":"+cfg.AppPort, handler))
}
