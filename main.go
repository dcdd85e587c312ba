package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"estatehub/api/internal/api"
	"estatehub/api/internal/api/handlers"
	"estatehub/api/internal/api/middleware"
	"estatehub/api/internal/auth"
	"estatehub/api/internal/cache"
	"estatehub/api/internal/config"
	"estatehub/api/internal/db"
	"estatehub/api/internal/email"
	"estatehub/api/internal/lifecycle"
	"estatehub/api/internal/repository"
	"estatehub/api/internal/services"
	"estatehub/api/internal/storage"
	"estatehub/api/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, cfg.DBTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), cfg.DBTimeout)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndexes()

	// Initialize Cache (Redis)
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Initialize S3 (presigned uploads for the API, object access for the image worker)
	s3Client, err := storage.NewS3Client(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 client: %v", err)
	}
	s3StorageService := storage.NewS3Storage(cfg, s3Client)

	// Initialize Email Sender
	var primaryEmailSender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg.SmtpFromAddress)
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg)
	}
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)
	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(logEmailsPath)
		if err != nil {
			log.Printf("WARN: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", logEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Printf("LOG_EMAILS set, copying outgoing email to %s.", logEmailsPath)
		}
	}

	// Repositories and services
	listingRepo := repository.NewListingRepository(mongoDb, cfg.DBTimeout)
	userRepo := repository.NewUserRepository(mongoDb, cfg.DBTimeout)
	listingCache := cache.NewListingCache(redisClient, cfg.GetCacheTTL)

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	dispatcher := services.NewTaskDispatcher(taskClient)

	cascadeService := services.NewCascadeService(
		repository.NewDependentRepositories(mongoDb, cfg.DBTimeout), userRepo, cfg.CascadeTimeout)
	listingService := services.NewListingService(cfg, listingRepo, userRepo,
		lifecycle.NewEngine(cfg.DefaultRejectionReason), listingCache, cascadeService, dispatcher, s3StorageService)
	favoriteService := services.NewFavoriteService(listingRepo, userRepo, listingCache)
	sessionService := services.NewSessionService(userRepo, cfg.JwtSecret, cfg.JwtTTL)
	emailTemplateService := services.NewEmailTemplateService(mongoDb)

	taskProcessor := tasks.NewTaskProcessor(cfg, compositeSender, emailTemplateService,
		listingRepo, userRepo, listingService, s3Client)

	// WaitGroup for managing goroutines
	var wg sync.WaitGroup

	// Channel to signal shutdown from Service API
	shutdownChan := make(chan struct{}, 1)

	// Start Service API (always runs)
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Service API listening on :%s", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("CRITICAL: Service API ListenAndServe error: %v", err)
		}
	}()

	// --- Mode-specific servers ---
	var mainApiSrv *http.Server
	var rateLimiter *middleware.RateLimiterMiddleware
	var taskSrv *asynq.Server

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		rateLimiter = middleware.NewRateLimiterMiddleware(cfg)
		router := api.SetupRouter(cfg, api.Handlers{
			Listings:    handlers.NewListingHandler(listingService, favoriteService),
			Auth:        handlers.NewAuthHandler(sessionService),
			Verifier:    auth.NewVerifier(cfg.JwtSecret),
			RateLimiter: rateLimiter,
		})
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: router,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("Main API listening on :%s", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("CRITICAL: Main API ListenAndServe error: %v", err)
			}
		}()
	}

	bgMode := func() {
		taskSrv = tasks.NewServer(redisClient)
		if err := taskSrv.Start(tasks.NewServeMux(taskProcessor)); err != nil {
			log.Fatalf("CRITICAL: Background task server error: %v", err)
		}
		log.Println("Background task server started.")
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received signal: %s. Shutting down gracefully...", sig)
	case <-shutdownChan:
		log.Println("Shutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	if rateLimiter != nil {
		rateLimiter.Close()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	wg.Wait()
	log.Println("Server gracefully stopped")
}
