package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Skrewild/shop/internal/api"
	"github.com/Skrewild/shop/internal/api/handlers"
	"github.com/Skrewild/shop/internal/auth"
	"github.com/Skrewild/shop/internal/cache"
	"github.com/Skrewild/shop/internal/config"
	"github.com/Skrewild/shop/internal/database"
	"github.com/Skrewild/shop/internal/metrics"
	"github.com/Skrewild/shop/internal/notify"
	"github.com/Skrewild/shop/internal/orders"
	"github.com/Skrewild/shop/internal/repository"
	"github.com/Skrewild/shop/internal/storage"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	userRepo := repository.NewUserRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	var productRepo repository.ProductRepository = repository.NewProductRepository(pool)
	if rdb, err := cache.ConnectRedis(cfg); err != nil {
		log.Printf("redis unavailable, serving catalog without cache: %v", err)
	} else {
		productRepo = cache.NewCachedProductRepository(productRepo, rdb)
		defer rdb.Close()
	}

	sinks := []notify.Sink{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		sinks = append(sinks, notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID))
	} else {
		log.Println("telegram not configured, order notifications disabled")
	}
	kafkaSink := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
	if kafkaSink.Enabled() {
		sinks = append(sinks, kafkaSink)
		defer kafkaSink.Close()
	}

	dispatcher := notify.NewDispatcher(64, sinks...)
	defer dispatcher.Close()

	workflow := orders.NewWorkflow(orderRepo, dispatcher)

	uploadStore, err := storage.NewUploadStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("upload store error: %v", err)
	}

	guard := auth.NewAdminGuard(cfg.AdminSecret)
	authSvc := auth.NewService(userRepo, cfg.JWTSecret)

	srvMetrics := metrics.NewServerMetrics("api")

	router := api.NewRouter(api.Handlers{
		Auth:    handlers.NewAuthHandler(authSvc),
		Product: handlers.NewProductHandler(productRepo),
		Cart:    handlers.NewCartHandler(cartRepo),
		Order:   handlers.NewOrderHandler(workflow, cartRepo),
		Admin:   handlers.NewAdminHandler(guard, productRepo, orderRepo, workflow),
		Upload:  handlers.NewUploadHandler(uploadStore),
	}, srvMetrics, uploadStore.Dir())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
