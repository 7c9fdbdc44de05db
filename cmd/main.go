package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"cast-bridge/internal/auth"
	"cast-bridge/internal/blockchain"
	"cast-bridge/internal/config"
	"cast-bridge/internal/database"
	"cast-bridge/internal/farcaster"
	"cast-bridge/internal/handlers"
	"cast-bridge/internal/jobs"
	"cast-bridge/internal/lock"
	"cast-bridge/internal/logger"
	"cast-bridge/internal/metrics"
	"cast-bridge/internal/ratelimit"
	"cast-bridge/internal/repository"
	"cast-bridge/internal/services"
	"cast-bridge/internal/twitter"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.New(cfg.Logging.Level)

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	repo := repository.NewRepository(database.GetDB())

	// External APIs
	farcasterClient, err := farcaster.NewClient(cfg.Neynar.APIKey, cfg.Neynar.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Farcaster client")
	}
	if !farcasterClient.Configured() {
		log.Warn().Msg("NEYNAR_API_KEY not set, casting is disabled")
	}

	limiter := ratelimit.New(
		cfg.RapidAPI.RequestsPerWindow,
		cfg.RapidAPI.Window,
		ratelimit.WithWaitObserver(metrics.RecordRateLimitWait),
	)
	var fetcher services.TweetFetcher
	if twitterClient := twitter.NewClient(cfg.RapidAPI.Key, cfg.RapidAPI.Host, "", limiter); twitterClient.Configured() {
		fetcher = twitterClient
	} else {
		log.Warn().Msg("RAPIDAPI_KEY not set, truncated tweets will not be backfilled")
	}

	// Chain
	var token services.TokenClient
	var diagnoser handlers.ChainDiagnoser
	var spenderAddress string
	if cfg.Chain.SpenderPrivateKey != "" {
		usdcClient, err := blockchain.NewUSDCClient(
			ctx,
			cfg.Chain.RPCURL,
			cfg.Chain.ChainID,
			cfg.Chain.USDCAddress,
			cfg.Chain.SpenderPrivateKey,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create USDC client")
		}
		defer usdcClient.Close()

		spenderAddress, err = blockchain.ResolveSpender(cfg.Chain.SpenderAddress, usdcClient.SpenderAddress())
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid SPENDER_ADDRESS")
		}

		token = usdcClient
		diagnoser = usdcClient
		log.Info().
			Int64("chain_id", cfg.Chain.ChainID).
			Str("spender", spenderAddress).
			Msg("USDC client initialized")
	} else {
		log.Warn().Msg("SPENDER_PRIVATE_KEY not set, payments are disabled")
	}

	locker := lock.New(ctx, cfg.Redis.URL)

	// Initialize services
	paymentService := services.NewPaymentService(token, spenderAddress)
	transformer := services.NewContentTransformer(farcasterClient, twitter.NewLinkResolver(), cfg.App.MaxEmbeds)
	castService := services.NewCastService(repo, transformer, farcasterClient, fetcher, paymentService, cfg.App.CastPrice)
	threadCastService := services.NewThreadCastService(castService, locker, cfg.App.ThreadPostDelay)
	userService := services.NewUserService(repo, paymentService)
	tweetService := services.NewTweetService(repo)
	transactionService := services.NewTransactionService(repo)

	// Initialize handlers
	castHandler := handlers.NewCastHandler(castService, threadCastService)
	userHandler := handlers.NewUserHandler(userService, transactionService, cfg.App.CastPrice)
	tweetHandler := handlers.NewTweetHandler(tweetService)
	healthHandler := handlers.NewHealthHandler(database.GetDB(), diagnoser)

	// Background balance sync
	if token != nil {
		jobs.NewBalanceSyncJob(userService, jobs.DefaultBatchSize).Start(ctx, cfg.Jobs.BalanceSyncInterval)
		log.Info().Dur("interval", cfg.Jobs.BalanceSyncInterval).Msg("Balance sync job started")
	}

	// Set up Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handlers.RequestID())
	router.Use(handlers.RequestLogger())

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if cfg.App.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.App.FrontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler.Health)
	router.GET("/health/chain", healthHandler.Chain)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// Cast endpoints
		api.POST("/casts", castHandler.CastTweet)
		api.POST("/casts/thread", castHandler.CastThread)
		api.POST("/casts/thread/:conversation_id/settle", castHandler.SettleThread)
		api.POST("/casts/:tweet_id/settle", castHandler.SettleTweet)

		// User endpoints
		userRoutes := api.Group("/user")
		{
			userRoutes.GET("", userHandler.GetProfile)
			userRoutes.PUT("/spending", userHandler.UpdateSpending)
			userRoutes.POST("/balance/refresh", userHandler.RefreshBalance)
		}
		api.GET("/transactions", userHandler.GetTransactions)

		// Tweet endpoints
		api.GET("/tweets", tweetHandler.ListTweets)
		api.POST("/tweets/:tweet_id/reject", tweetHandler.RejectTweet)
		api.POST("/tweets/:tweet_id/restore", tweetHandler.RestoreTweet)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stop()

	// Casts in flight may be waiting on a transaction receipt
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
