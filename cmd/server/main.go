// Package main runs the synagogue site API: storefront checkout, content editing and admin permissions.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shul-site/backend/config"
	"github.com/shul-site/backend/internal/auth"
	"github.com/shul-site/backend/internal/catalog"
	"github.com/shul-site/backend/internal/checkout"
	"github.com/shul-site/backend/internal/content"
	"github.com/shul-site/backend/internal/middleware"
	"github.com/shul-site/backend/internal/models"
	"github.com/shul-site/backend/internal/payments"
	"github.com/shul-site/backend/internal/paypal"
	"github.com/shul-site/backend/internal/permissions"
	"github.com/shul-site/backend/internal/posts"
	"github.com/shul-site/backend/internal/storefront"
	"github.com/shul-site/backend/pkg/database"
	"github.com/shul-site/backend/pkg/logger"
	"github.com/shul-site/backend/pkg/queue"
	"github.com/shul-site/backend/pkg/redis"
	"github.com/shul-site/backend/pkg/storage"
)

const sweepInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("load config", zap.Error(err))
	}
	log := logger.New(cfg.Log.Level)
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var sectionImages content.ImageStore
	var postImages posts.ImageStore
	if cfg.AWS.ImagesBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ImagesBucket:    cfg.AWS.ImagesBucket,
		}, log)
		if err != nil {
			log.Fatal("s3", zap.Error(err))
		}
		sectionImages, postImages = s3Client, s3Client
	} else {
		log.Warn("AWS_S3_IMAGES_BUCKET not set; image uploads disabled")
	}

	catalogs, err := catalog.LoadEmbedded()
	if err != nil {
		log.Fatal("catalogs", zap.Error(err))
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	ttl := time.Duration(cfg.Cart.SessionTTLMinutes) * time.Minute
	var sessions storefront.Store
	switch cfg.Cart.Store {
	case "memory":
		mem := storefront.NewMemoryStore(ttl)
		go sweepSessions(workerCtx, mem, log)
		sessions = mem
	default:
		sessions = storefront.NewRedisStore(rdb.Client, ttl)
	}

	var gateway checkout.PaymentGateway
	if cfg.PayPal.Configured() {
		gateway = paypal.NewClient(paypal.Config{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			BaseURL:      cfg.PayPal.APIBaseURL(),
			Timeout:      time.Duration(cfg.PayPal.TimeoutSeconds) * time.Second,
		}, log)
	} else {
		log.Warn("PayPal client id missing or placeholder; checkout disabled")
	}

	jobQueue := queue.NewQueue(rdb.Client, log)
	orchestrator := checkout.NewOrchestrator(gateway, gateway != nil, payments.NewQueueRecorder(jobQueue), log)
	shop := storefront.NewService(catalogs, sessions, orchestrator, log)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	gate := permissions.NewService(permissions.NewRepository(pool), log)

	authHandler := auth.NewHandler(authRepo, jwtService, log)
	permHandler := permissions.NewHandler(gate, log)
	contentHandler := content.NewHandler(content.NewRepository(pool), sectionImages, log)
	postsHandler := posts.NewHandler(posts.NewRepository(pool), gate, postImages, log)
	paymentsHandler := payments.NewHandler(payments.NewRepository(pool), log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checkout_enabled": shop.CheckoutEnabled()})
	})

	// Public
	storefront.NewHandler(shop, catalogs, log).Register(router)
	router.POST("/auth/login", authHandler.Login)
	router.GET("/sections", contentHandler.List)
	router.GET("/sections/:id", contentHandler.Get)
	router.GET("/section-keys/:key", contentHandler.GetByKey)
	router.GET("/posts", postsHandler.List)
	router.GET("/posts/:id", postsHandler.Get)

	// Admin (JWT)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/me/permissions", permHandler.Mine)

		api.PUT("/sections/:id", permissions.RequireSectionPermission(gate, "id"), contentHandler.Upsert)
		api.POST("/sections/:id/image", permissions.RequireSectionPermission(gate, "id"), contentHandler.UploadImage)

		postGuard := permissions.RequirePostPermission(gate, postsHandler.CategoryOf)
		api.POST("/posts", postsHandler.Create)
		api.PUT("/posts/:id", postGuard, postsHandler.Update)
		api.DELETE("/posts/:id", postGuard, postsHandler.Delete)
		api.POST("/posts/:id/image", postGuard, postsHandler.UploadImage)
	}

	// Super-admin
	super := api.Group("")
	super.Use(middleware.RequireRole(models.RoleSuperAdmin))
	{
		super.POST("/users", authHandler.CreateUser)
		super.GET("/users", authHandler.List)
		super.GET("/users/:id/permissions", permHandler.ForUser)
		super.POST("/permissions", permHandler.Grant)
		super.DELETE("/permissions", permHandler.Revoke)
		super.DELETE("/sections/:id", contentHandler.Delete)
		super.GET("/payments", paymentsHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("cart_store", cfg.Cart.Store),
			zap.Bool("checkout_enabled", shop.CheckoutEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWorkers()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func sweepSessions(ctx context.Context, mem *storefront.MemoryStore, log *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.Sweep(); n > 0 {
				log.Debug("expired cart sessions swept", zap.Int("count", n))
			}
		}
	}
}
