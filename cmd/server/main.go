package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/content"
	"github.com/maheshrc27/postflow/internal/events"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/scheduling"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/pkg/logger"
	"github.com/maheshrc27/postflow/pkg/ratelimit"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("database is unreachable")
	}

	if cfg.MigrateOnStart {
		if err := repository.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
	}

	cipher, err := utils.NewTokenCipher(cfg.SecretKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build token cipher")
	}

	limiter := ratelimit.NewDefaultLimiter()
	bus := events.NewBus()

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	ruleRepo := repository.NewScheduleRuleRepository(db)
	creditRepo := repository.NewCreditRepository(db)
	connectedRepo := repository.NewConnectedPlatformRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	postLogRepo := repository.NewPostLogRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)

	redisConn := asynq.RedisClientOpt{Addr: cfg.Queue.RedisURI}
	useAsynq := cfg.Queue.Driver == "asynq"
	verifier := queue.NewVerifier(cfg.Queue.CurrentSigningKey, cfg.Queue.NextSigningKey, cfg.Queue.CallbackURL)

	var (
		publisher   queue.Publisher
		asynqClient *queue.AsynqPublisher
	)
	if useAsynq {
		asynqClient = queue.NewAsynqPublisher(redisConn, cfg.Queue.AsynqQueue, cfg.Queue.Retries)
		defer asynqClient.Close()
		publisher = asynqClient
	} else {
		publisher = queue.NewQStashPublisher(queue.QStashOptions{
			BaseURL:     cfg.Queue.QStashURL,
			Token:       cfg.Queue.QStashToken,
			CallbackURL: cfg.Queue.CallbackURL,
			Retries:     cfg.Queue.Retries,
			Timeout:     cfg.Dispatch.HTTPTimeout,
			Limiter:     limiter,
		})
		if !verifier.Enabled() {
			log.Warn().Msg("no QStash signing key configured, dispatch webhook accepts unsigned calls")
		}
	}

	var storage service.MediaStorage
	if cfg.R2.BucketName != "" {
		r2, err := service.NewR2Service(context.Background(), service.R2Options{
			AccountID:  cfg.R2.AccountID,
			AccessKey:  cfg.R2.AccessKey,
			SecretKey:  cfg.R2.SecretKey,
			BucketName: cfg.R2.BucketName,
			PublicURL:  cfg.R2.PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure media storage")
		}
		storage = r2
	}

	validator := content.NewValidator(cfg.Dispatch.MaxContentLength)
	adapters := platform.NewRegistry(platform.Options{
		Timeout:          cfg.Dispatch.HTTPTimeout,
		Limiter:          limiter,
		TwitterBaseURL:   cfg.Twitter.BaseURL,
		LinkedInBaseURL:  cfg.LinkedIn.BaseURL,
		FacebookBaseURL:  cfg.Facebook.BaseURL,
		InstagramBaseURL: cfg.Instagram.BaseURL,
	})
	stagger := scheduling.NewStaggerPlanner(cfg.Scheduling.StaggerWindow, cfg.Scheduling.MinStagger, cfg.Scheduling.MaxRandomStagger)

	userService := service.NewUserService(userRepo)
	creditService := service.NewCreditService(creditRepo, service.CostTable{
		Twitter: cfg.Credits.TwitterCost,
		Default: cfg.Credits.DefaultCost,
	}, cfg.Credits.MonthlyAllotment)
	ruleService := service.NewRuleService(ruleRepo)
	postService := service.NewPostService(db, postRepo, scheduleRepo, mediaAssetRepo, postMediaRepo, postLogRepo, storage, publisher, validator, bus)
	scheduleService := service.NewScheduleService(postRepo, scheduleRepo, ruleRepo, creditService, publisher, stagger, bus, service.Horizons{
		Bulk:       cfg.Scheduling.BulkHorizon,
		Reschedule: cfg.Scheduling.RescheduleHorizon,
	})
	platformService := service.NewPlatformService(connectedRepo)
	tokenService := service.NewTokenService(connectedRepo, cipher, map[platform.Platform]service.OAuthClient{
		platform.Twitter:  oauthClient(cfg.Twitter),
		platform.LinkedIn: oauthClient(cfg.LinkedIn),
	}, utils.NewHTTPClient(cfg.Dispatch.HTTPTimeout))
	dispatchService := service.NewDispatchService(postRepo, scheduleRepo, connectedRepo, usageRepo, postLogRepo, mediaAssetRepo,
		tokenService, adapters, validator, bus, service.DispatchOptions{
			MonthlyQuota: cfg.Dispatch.MonthlyQuota,
			MaxRetries:   cfg.Dispatch.MaxRetries,
		})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		BodyLimit:    4 * service.MaxMediaSize,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey, cfg.CookieName)

	dispatch := handlers.NewDispatchHandler(dispatchService)
	app.Post("/api/dispatch", middleware.VerifySignature(verifier), dispatch.Dispatch)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Put("/user/timezone", user.UpdateTimezone)

	credits := handlers.NewCreditsHandler(creditService)
	api.Get("/credits", credits.GetCredits)

	post := handlers.NewPostHandler(postService)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/create", post.CreatePost)
	api.Post("/posts/remove", post.RemovePost)
	api.Post("/posts/reorder", post.ReorderPosts)
	api.Put("/posts/:id", post.UpdatePost)
	api.Post("/posts/:id/media", post.UploadMedia)
	api.Get("/posts/:id/media", post.ListMedia)
	api.Delete("/posts/:id/media", post.ClearMedia)
	api.Get("/posts/:id/logs", post.PostLogs)

	schedule := handlers.NewScheduleHandler(scheduleService)
	api.Post("/posts/bulk-schedule", schedule.BulkSchedule)
	api.Post("/posts/:id/schedule", schedule.SchedulePost)
	api.Post("/posts/:id/cancel", schedule.CancelSchedule)
	api.Get("/posts/:id/schedules", schedule.ListSchedules)
	api.Post("/schedule/preview", schedule.Preview)

	rules := handlers.NewRuleHandler(ruleService)
	api.Get("/rules", rules.ListRules)
	api.Post("/rules", rules.CreateRule)
	api.Get("/rules/:id", rules.GetRule)
	api.Put("/rules/:id", rules.UpdateRule)
	api.Post("/rules/:id/toggle", rules.ToggleRule)
	api.Delete("/rules/:id", rules.RemoveRule)

	// connected platform accounts
	accounts := handlers.NewPlatformHandler(platformService)
	api.Get("/accounts", accounts.ListAccounts)
	api.Post("/accounts/remove", accounts.RemoveAccount)

	stream := handlers.NewEventsHandler(bus)
	api.Get("/events", stream.Stream)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(connectedRepo, tokenService)
	reconcileJob := job.NewReconcileJob(postRepo, scheduleRepo, bus, cfg.Scheduling.ReconcileGrace)

	c := cron.New()
	if err := c.AddFunc(cfg.Scheduling.TokenRefreshSpec, refreshTokenJob.RefreshTokens); err != nil {
		log.Fatal().Err(err).Msg("invalid token refresh schedule")
	}
	if err := c.AddFunc(cfg.Scheduling.ReconcileSpec, reconcileJob.Reconcile); err != nil {
		log.Fatal().Err(err).Msg("invalid reconcile schedule")
	}
	c.Start()
	defer c.Stop()

	var worker *asynq.Server
	if useAsynq {
		worker = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.Queue.AsynqConcurrency,
			Queues:      map[string]int{asynqClient.Queue(): 1},
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDispatchPost, queue.NewWorker(dispatchService).HandleDispatchTask)

		log.Info().Str("queue", asynqClient.Queue()).Msg("starting the asynq worker")
		if err := worker.Start(mux); err != nil {
			log.Fatal().Err(err).Msg("could not start asynq worker")
		}
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("queue", cfg.Queue.Driver).Msg("server is running")

	gracefulShutdown(app, worker)
}

func oauthClient(api config.PlatformAPI) service.OAuthClient {
	return service.OAuthClient{
		ClientID:     api.ClientID,
		ClientSecret: api.ClientSecret,
		TokenURL:     api.TokenURL,
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
		return
	}
	log.Info().Msg("database connection closed")
}

func gracefulShutdown(app *fiber.App, worker *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("shutting down server")

	if worker != nil {
		worker.Shutdown()
	}
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		log.Error().Err(err).Msg("failed to shut down server")
	}

	log.Info().Msg("server shutdown complete")
}
