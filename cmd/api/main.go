package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/mentorconnect/mentorconnect-api/api/swagger"
	"github.com/mentorconnect/mentorconnect-api/internal/handler"
	"github.com/mentorconnect/mentorconnect-api/internal/middleware"
	"github.com/mentorconnect/mentorconnect-api/internal/models"
	"github.com/mentorconnect/mentorconnect-api/internal/repository"
	"github.com/mentorconnect/mentorconnect-api/internal/service"
	"github.com/mentorconnect/mentorconnect-api/pkg/cache"
	"github.com/mentorconnect/mentorconnect-api/pkg/config"
	"github.com/mentorconnect/mentorconnect-api/pkg/database"
	"github.com/mentorconnect/mentorconnect-api/pkg/logger"
	"github.com/mentorconnect/mentorconnect-api/pkg/mail"
	corsmiddleware "github.com/mentorconnect/mentorconnect-api/pkg/middleware/cors"
	reqidmiddleware "github.com/mentorconnect/mentorconnect-api/pkg/middleware/requestid"
	"github.com/mentorconnect/mentorconnect-api/pkg/storage"
)

const financeSummaryTTL = 5 * time.Minute

// @title MentorConnect API
// @version 1.0.0
// @description Mentorship matching platform: application wizard, payment gate, admin review and mentor availability
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	uploads, err := storage.NewUploadStore(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload store", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	mailer := mail.NewMailer(cfg.SMTP)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	guestRepo := repository.NewGuestRepository(db)
	facilitatorRepo := repository.NewFacilitatorRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	notifications := service.NewNotificationService(notificationRepo, cacheRepo, mailer, service.NotificationConfig{
		Enabled:     cfg.Notifications.Enabled,
		MailEnabled: cfg.Notifications.MailEnabled && mailer.Configured(),
		SiteName:    cfg.SiteName,
		SiteURL:     cfg.SiteURL,
		Workers:     cfg.Notifications.WorkerConcurrency,
		Retries:     cfg.Notifications.WorkerRetries,
	}, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	authService := service.NewAuthService(userRepo, guestRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.SiteName,
		Audience:           []string{cfg.SiteURL},
	})
	applicationService := service.NewApplicationService(applicationRepo, availabilityRepo, activityRepo, userRepo, notifications, validate, logr)
	paymentService := service.NewPaymentService(paymentRepo, applicationRepo, availabilityRepo, activityRepo, cacheRepo, notifications, service.PaymentConfig{
		ApplicationFee:  cfg.Payments.ApplicationFee,
		Currency:        cfg.Payments.Currency,
		SummaryCacheTTL: financeSummaryTTL,
	}, validate, logr)
	availabilityService := service.NewAvailabilityService(availabilityRepo, cacheRepo, cfg.Matching.CacheTTL, validate, logr)
	profileService := service.NewProfileService(profileRepo, validate, logr)
	matchingService := service.NewMatchingService(profileRepo, availabilityRepo, cacheRepo, cfg.Matching.CacheTTL, logr)
	guestService := service.NewGuestService(guestRepo, userRepo, activityRepo, notifications, cfg.Invitations.TokenTTL, validate, logr)
	facilitatorService := service.NewFacilitatorService(facilitatorRepo, userRepo, applicationService, validate, logr)
	exportService := service.NewExportService(paymentRepo, logr)
	metricsService := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authService, applicationService)
	applicationHandler := handler.NewApplicationHandler(applicationService)
	paymentHandler := handler.NewPaymentHandler(paymentService, exportService, uploads, signer)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	profileHandler := handler.NewProfileHandler(profileService)
	matchingHandler := handler.NewMatchingHandler(matchingService)
	guestHandler := handler.NewGuestHandler(guestService, uploads, signer)
	facilitatorHandler := handler.NewFacilitatorHandler(facilitatorService)
	notificationHandler := handler.NewNotificationHandler(notifications)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public surface: registration, tracking, the mentor directory and
	// the guest contact flow need no account at all.
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", middleware.Audit(userRepo, "login", "auth"), authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.GET("/track/:code", applicationHandler.Track)
	api.GET("/mentors", profileHandler.Directory)
	api.GET("/mentors/:mentorId/slots", availabilityHandler.ListOpen)
	api.POST("/guest-applications", guestHandler.Create)
	api.GET("/files/receipts", paymentHandler.DownloadReceipt)
	api.GET("/files/cvs", guestHandler.DownloadCV)

	// The wizard runs on an anonymous session key; a signed-in student
	// is recognized too and the draft follows the account.
	wizard := api.Group("")
	wizard.Use(middleware.Session(), middleware.OptionalJWT(authService))
	{
		wizard.POST("/applications", applicationHandler.Start)
		wizard.GET("/applications/resume", applicationHandler.Resume)
		wizard.PUT("/applications/:id/steps/personal", applicationHandler.SavePersonal)
		wizard.PUT("/applications/:id/steps/guardian", applicationHandler.SaveGuardian)
		wizard.PUT("/applications/:id/steps/education", applicationHandler.SaveEducation)
		wizard.PUT("/applications/:id/steps/mentor", applicationHandler.SaveMentor)
		wizard.POST("/applications/:id/submit", applicationHandler.Submit)
		wizard.POST("/applications/:id/payments", paymentHandler.Submit)
		wizard.GET("/applications/:id", applicationHandler.Get)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/applications/mine", applicationHandler.ListMine)

		authed.GET("/notifications", notificationHandler.List)
		authed.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		authed.POST("/notifications/:id/read", notificationHandler.MarkRead)
		authed.POST("/notifications/read-all", notificationHandler.MarkAllRead)

		authed.GET("/profiles/student", profileHandler.GetStudent)
		authed.PUT("/profiles/student", profileHandler.UpdateStudent)
		authed.GET("/profiles/mentor", profileHandler.GetMentor)
		authed.PUT("/profiles/mentor", profileHandler.UpdateMentor)

		if cfg.Matching.Enabled {
			authed.GET("/matching/suggestions", matchingHandler.Suggest)
		}
	}

	admin := api.Group("")
	admin.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/applications", applicationHandler.List)
		admin.GET("/applications/counts", applicationHandler.Counts)
		admin.GET("/applications/:id/history", applicationHandler.History)
		admin.POST("/applications/:id/approve", middleware.Audit(userRepo, "approve", "application"), applicationHandler.Approve)
		admin.POST("/applications/:id/reject", middleware.Audit(userRepo, "reject", "application"), applicationHandler.Reject)
		admin.POST("/applications/:id/enroll", middleware.Audit(userRepo, "enroll", "application"), applicationHandler.Enroll)

		admin.POST("/facilitators/assignments", facilitatorHandler.Assign)
		admin.DELETE("/facilitators/assignments/:id", facilitatorHandler.Unassign)
	}

	finance := api.Group("")
	finance.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleFinanceOfficer, models.RoleAdmin))
	{
		finance.GET("/payments", paymentHandler.List)
		finance.GET("/payments/summary", paymentHandler.Summary)
		finance.GET("/payments/export", paymentHandler.Export)
		finance.POST("/applications/:id/payments/verify", middleware.Audit(userRepo, "verify", "payment"), paymentHandler.Verify)
		finance.POST("/applications/:id/payments/reject", middleware.Audit(userRepo, "reject", "payment"), paymentHandler.Reject)
		finance.GET("/payments/:id/receipt-url", paymentHandler.ReceiptURL)
	}

	mentor := api.Group("")
	mentor.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleMentor))
	{
		mentor.POST("/slots", availabilityHandler.Create)
		mentor.GET("/slots", availabilityHandler.List)
		mentor.GET("/slots/:id", availabilityHandler.Get)
		mentor.PUT("/slots/:id", availabilityHandler.Update)
		mentor.DELETE("/slots/:id", availabilityHandler.Delete)
	}

	guestInbox := api.Group("")
	guestInbox.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleMentor, models.RoleAdmin))
	{
		guestInbox.GET("/guest-applications", guestHandler.List)
		guestInbox.GET("/guest-applications/:id", guestHandler.Get)
		guestInbox.POST("/guest-applications/:id/approve", guestHandler.Approve)
		guestInbox.POST("/guest-applications/:id/reject", guestHandler.Reject)
		guestInbox.GET("/guest-applications/:id/cv-url", guestHandler.CVURL)
	}

	facilitator := api.Group("")
	facilitator.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleMentorFacilitator, models.RoleAdmin))
	{
		facilitator.GET("/facilitators/assignments", facilitatorHandler.Assignments)
		facilitator.GET("/facilitators/applications", facilitatorHandler.Applications)
		facilitator.POST("/facilitators/applications/:id/reassign", facilitatorHandler.Reassign)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
